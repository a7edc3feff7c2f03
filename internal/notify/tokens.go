package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisTokenStore keeps the per-user device push-token registry in Redis.
// Tokens are a set per user: one entry per device.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func tokenKey(userID string) string {
	return "push_tokens:" + userID
}

func (s *RedisTokenStore) Tokens(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.client.SMembers(ctx, tokenKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load push tokens: %w", err)
	}
	return tokens, nil
}

// Register adds a device token for the user.
func (s *RedisTokenStore) Register(ctx context.Context, userID, token string) error {
	if err := s.client.SAdd(ctx, tokenKey(userID), token).Err(); err != nil {
		return fmt.Errorf("register push token: %w", err)
	}
	return nil
}

// Remove deletes a device token, e.g. on logout or when the gateway reports
// the token invalid.
func (s *RedisTokenStore) Remove(ctx context.Context, userID, token string) error {
	if err := s.client.SRem(ctx, tokenKey(userID), token).Err(); err != nil {
		return fmt.Errorf("remove push token: %w", err)
	}
	return nil
}
