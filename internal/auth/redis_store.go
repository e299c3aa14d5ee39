package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "oauth2:"

// RedisTokenStore keeps issued tokens in Redis. The token payload lives under
// a basic key; the access and refresh keys point at it and expire on their own.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisTokenStore(client *redis.Client, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisTokenStore{client: client, prefix: prefix}
}

func (s *RedisTokenStore) key(kind, value string) string {
	return s.prefix + kind + ":" + value
}

func (s *RedisTokenStore) Create(ctx context.Context, info oauth2.TokenInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	accessTTL := ttlOf(info.GetAccessCreateAt(), info.GetAccessExpiresIn())
	basicTTL := accessTTL
	var refreshTTL time.Duration
	if info.GetRefresh() != "" {
		refreshTTL = ttlOf(info.GetRefreshCreateAt(), info.GetRefreshExpiresIn())
		if refreshTTL == 0 || (basicTTL != 0 && refreshTTL > basicTTL) {
			basicTTL = refreshTTL
		}
	}

	basicID := uuid.NewString()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key("basic", basicID), data, basicTTL)
	pipe.Set(ctx, s.key("access", info.GetAccess()), basicID, accessTTL)
	if refresh := info.GetRefresh(); refresh != "" {
		pipe.Set(ctx, s.key("refresh", refresh), basicID, refreshTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// ttlOf is the remaining lifetime of a token; 0 means no expiry.
func ttlOf(created time.Time, expiresIn time.Duration) time.Duration {
	if expiresIn <= 0 {
		return 0
	}
	if ttl := time.Until(created.Add(expiresIn)); ttl > time.Second {
		return ttl
	}
	return time.Second
}

func (s *RedisTokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return s.client.Del(ctx, s.key("access", access)).Err()
}

func (s *RedisTokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	return s.client.Del(ctx, s.key("refresh", refresh)).Err()
}

func (s *RedisTokenStore) GetByAccess(ctx context.Context, access string) (oauth2.TokenInfo, error) {
	return s.load(ctx, s.key("access", access))
}

func (s *RedisTokenStore) GetByRefresh(ctx context.Context, refresh string) (oauth2.TokenInfo, error) {
	if refresh == "" {
		return nil, nil
	}
	return s.load(ctx, s.key("refresh", refresh))
}

// load follows a pointer key to the token payload; a missing key is a nil token.
func (s *RedisTokenStore) load(ctx context.Context, pointer string) (oauth2.TokenInfo, error) {
	basicID, err := s.client.Get(ctx, pointer).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key("basic", basicID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var token models.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &token, nil
}

func (s *RedisTokenStore) GetByCode(ctx context.Context, code string) (oauth2.TokenInfo, error) {
	return nil, nil
}

func (s *RedisTokenStore) RemoveByCode(ctx context.Context, code string) error {
	return nil
}
