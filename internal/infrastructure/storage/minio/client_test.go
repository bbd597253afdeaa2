package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/biomarker-engine/internal/config"
	pkgerrors "github.com/turtacn/biomarker-engine/pkg/errors"
)

// memoryStore is an in-memory ObjectAPI.
type memoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	err     error
}

func newMemoryStore(buckets ...string) *memoryStore {
	m := &memoryStore{buckets: map[string]map[string][]byte{}}
	for _, b := range buckets {
		m.buckets[b] = map[string][]byte{}
	}
	return m
}

func (m *memoryStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *memoryStore) MakeBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = map[string][]byte{}
	return nil
}

func (m *memoryStore) object(bucket, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}
	}
	data, ok := b[key]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	}
	return data, nil
}

func (m *memoryStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := m.object(bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) StatObject(_ context.Context, bucket, key string) (ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := m.object(bucket, key)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, ETag: etag(data), Size: int64(len(data))}, nil
}

func (m *memoryStore) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) (ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ObjectInfo{}, m.err
	}
	if _, ok := m.buckets[bucket]; !ok {
		return ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}
	}
	m.buckets[bucket][key] = data
	return ObjectInfo{Key: key, ETag: etag(data), Size: int64(len(data)), LastModified: time.Now()}, nil
}

func etag(data []byte) string { return string(rune('a' + len(data)%26)) }

type ClientTestSuite struct {
	suite.Suite
	store  *memoryStore
	client *Client
	ctx    context.Context
}

func (s *ClientTestSuite) SetupTest() {
	s.store = newMemoryStore("reference")
	s.client = NewClientWithAPI(s.store, "reference", nil)
	s.ctx = context.Background()
}

func (s *ClientTestSuite) TestPutGetStat() {
	body := []byte(`{"biomarkers":[]}`)
	info, err := s.client.Put(s.ctx, "spec/v1.json", body, "application/json")
	s.Require().NoError(err)
	s.Equal(int64(len(body)), info.Size)

	got, err := s.client.Get(s.ctx, "spec/v1.json")
	s.Require().NoError(err)
	s.Equal(body, got)

	st, err := s.client.Stat(s.ctx, "spec/v1.json")
	s.Require().NoError(err)
	s.Equal(info.ETag, st.ETag)
}

func (s *ClientTestSuite) TestGet_NotFound() {
	_, err := s.client.Get(s.ctx, "missing.json")
	s.Require().Error(err)
	s.True(pkgerrors.IsNotFound(err))
}

func (s *ClientTestSuite) TestStat_NotFound() {
	_, err := s.client.Stat(s.ctx, "missing.json")
	s.True(pkgerrors.IsNotFound(err))
}

func (s *ClientTestSuite) TestGet_TooLarge() {
	s.store.buckets["reference"]["big"] = make([]byte, MaxObjectSize+1)
	_, err := s.client.Get(s.ctx, "big")
	s.Require().Error(err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestBackendError() {
	s.store.err = errors.New("connection reset")
	_, err := s.client.Get(s.ctx, "x")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestEnsureBucket() {
	c := NewClientWithAPI(s.store, "fresh", nil)
	s.Require().NoError(c.EnsureBucket(s.ctx))
	ok, _ := s.store.BucketExists(s.ctx, "fresh")
	s.True(ok)
	s.Require().NoError(c.EnsureBucket(s.ctx), "existing bucket is fine")
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestNewClient_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewClient(context.Background(), config.MinIOConfig{Endpoint: "minio:9000"}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidConfig))
}
