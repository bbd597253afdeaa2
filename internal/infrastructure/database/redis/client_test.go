package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

func TestNewClient_RequiresAddr(t *testing.T) {
	_, err := NewClient(config.RedisConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestClient_Defaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	c := NewClientWithUniversal(db, config.RedisConfig{}, nil)

	assert.Equal(t, config.DefaultRedisTTL, c.TTL())
	assert.Equal(t, config.DefaultRedisKeyPrefix+"ref:override:x", c.Key("ref", "override", "x"))
}

func TestClient_PingAndClose(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewClientWithUniversal(db, config.RedisConfig{KeyPrefix: "t:"}, nil)

	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, c.Ping(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")
	assert.Nil(t, c.Underlying())
	assert.ErrorIs(t, c.Ping(context.Background()), ErrClientClosed)

	_, err := c.DeleteByPattern(context.Background(), "t:*")
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_PingError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewClientWithUniversal(db, config.RedisConfig{}, nil)

	mock.ExpectPing().SetErr(assert.AnError)
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
}

func TestMutex_LockUnlock_Client(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewClientWithUniversal(db, config.RedisConfig{KeyPrefix: "t:"}, nil)
	m := c.NewMutex("spec-import", WithLockTTL(time.Minute), WithRetry(2, time.Millisecond))

	mock.ExpectSetNX("t:lock:spec-import", m.token, time.Minute).SetVal(true)
	require.NoError(t, m.Lock(context.Background()))

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"t:lock:spec-import"}, m.token).SetVal(int64(1))
	require.NoError(t, m.Unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_LockBusy(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewClientWithUniversal(db, config.RedisConfig{KeyPrefix: "t:"}, nil)
	m := c.NewMutex("spec-import", WithLockTTL(time.Minute), WithRetry(2, time.Millisecond))

	mock.ExpectSetNX("t:lock:spec-import", m.token, time.Minute).SetVal(false)
	mock.ExpectSetNX("t:lock:spec-import", m.token, time.Minute).SetVal(false)

	err := m.Lock(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_UnlockNotHeld_Client(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewClientWithUniversal(db, config.RedisConfig{KeyPrefix: "t:"}, nil)
	m := c.NewMutex("spec-import")

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"t:lock:spec-import"}, m.token).SetVal(int64(0))
	assert.ErrorIs(t, m.Unlock(context.Background()), ErrLockNotHeld)
}

func TestMutex_Extend_Client(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewClientWithUniversal(db, config.RedisConfig{KeyPrefix: "t:"}, nil)
	m := c.NewMutex("spec-import")

	mock.ExpectEvalSha(extendScript.Hash(), []string{"t:lock:spec-import"}, m.token, int64(30000)).SetVal(int64(1))
	ok, err := m.Extend(context.Background(), 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
