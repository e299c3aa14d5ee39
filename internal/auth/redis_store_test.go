package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-oauth2/oauth2/v4/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedisStore connects to REDIS_ADDR (default localhost:6379, DB 15) and
// skips when Redis is unavailable.
func testRedisStore(t *testing.T) *RedisTokenStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 15)
	if err != nil {
		t.Skipf("skipping integration test: Redis not reachable: %v", err)
	}
	prefix := "oauth2-test:" + t.Name() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return NewRedisTokenStore(client, prefix)
}

func TestRedisTokenStore(t *testing.T) {
	store := testRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	token := &models.Token{
		ClientID:         "web",
		UserID:           "user-1",
		Access:           "access-1",
		AccessCreateAt:   now,
		AccessExpiresIn:  time.Minute,
		Refresh:          "refresh-1",
		RefreshCreateAt:  now,
		RefreshExpiresIn: time.Hour,
	}
	require.NoError(t, store.Create(ctx, token))

	got, err := store.GetByAccess(ctx, "access-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.GetUserID())
	assert.Equal(t, "refresh-1", got.GetRefresh())

	got, err = store.GetByRefresh(ctx, "refresh-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.GetAccess())

	require.NoError(t, store.RemoveByAccess(ctx, "access-1"))
	got, err = store.GetByAccess(ctx, "access-1")
	assert.NoError(t, err)
	assert.Nil(t, got)

	// The refresh pointer outlives the removed access token.
	got, err = store.GetByRefresh(ctx, "refresh-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, store.RemoveByRefresh(ctx, "refresh-1"))
	got, err = store.GetByRefresh(ctx, "refresh-1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestTTLOf(t *testing.T) {
	assert.Zero(t, ttlOf(time.Now(), 0))
	assert.Equal(t, time.Second, ttlOf(time.Now().Add(-time.Hour), time.Minute))
	ttl := ttlOf(time.Now(), time.Hour)
	assert.InDelta(t, float64(time.Hour), float64(ttl), float64(time.Second))
}
