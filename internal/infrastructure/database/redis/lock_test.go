package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

func newLockClient(t *testing.T) (*Client, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return NewClientWithUniversal(db, config.RedisConfig{KeyPrefix: "test:"}, logging.NewNopLogger()), mock
}

func TestMutex_LockUnlock(t *testing.T) {
	client, mock := newLockClient(t)
	m := client.NewMutex("spec-import", WithLockTTL(time.Second))
	ctx := context.Background()

	mock.ExpectSetNX("test:lock:spec-import", m.token, time.Second).SetVal(true)
	require.NoError(t, m.Lock(ctx))

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"test:lock:spec-import"}, m.token).SetVal(int64(1))
	require.NoError(t, m.Unlock(ctx))
}

func TestMutex_LockContention(t *testing.T) {
	client, mock := newLockClient(t)
	m := client.NewMutex("spec-import", WithLockTTL(time.Second), WithRetry(2, time.Millisecond))

	mock.ExpectSetNX("test:lock:spec-import", m.token, time.Second).SetVal(false)
	mock.ExpectSetNX("test:lock:spec-import", m.token, time.Second).SetVal(false)

	err := m.Lock(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
}

func TestMutex_OwnersAreDistinct(t *testing.T) {
	client, _ := newLockClient(t)
	a := client.NewMutex("spec-import")
	b := client.NewMutex("spec-import")
	assert.Equal(t, a.key, b.key)
	assert.NotEqual(t, a.token, b.token)
}

func TestMutex_UnlockNotHeld(t *testing.T) {
	client, mock := newLockClient(t)
	m := client.NewMutex("spec-import")

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"test:lock:spec-import"}, m.token).SetVal(int64(0))
	err := m.Unlock(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
}

func TestMutex_Extend(t *testing.T) {
	client, mock := newLockClient(t)
	m := client.NewMutex("spec-import")

	mock.ExpectEvalSha(extendScript.Hash(), []string{"test:lock:spec-import"}, m.token, int64(5000)).SetVal(int64(1))
	ok, err := m.Extend(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutex_ClosedClient(t *testing.T) {
	client, _ := newLockClient(t)
	m := client.NewMutex("spec-import")
	require.NoError(t, client.Close())

	_, err := m.TryLock(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, m.Unlock(context.Background()), ErrClientClosed)
}
