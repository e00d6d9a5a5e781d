package articles

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenKeyPrefix = "newslens:seen:"

// SeenCache remembers ingested URLs in redis so repeat fetches can skip the
// database lookup. The articles table stays authoritative.
type SeenCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSeenCache(client *redis.Client, ttl time.Duration) *SeenCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SeenCache{Client: client, TTL: ttl}
}

// NewSeenCacheFromURL parses a redis:// URL and checks the connection.
func NewSeenCacheFromURL(ctx context.Context, url string, ttl time.Duration) (*SeenCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewSeenCache(client, ttl), nil
}

func (s *SeenCache) Seen(ctx context.Context, url string) (bool, error) {
	n, err := s.Client.Exists(ctx, seenKeyPrefix+url).Result()
	if err != nil {
		return false, fmt.Errorf("seen lookup: %w", err)
	}
	return n > 0, nil
}

func (s *SeenCache) Mark(ctx context.Context, url string) error {
	if err := s.Client.Set(ctx, seenKeyPrefix+url, 1, s.TTL).Err(); err != nil {
		return fmt.Errorf("seen mark: %w", err)
	}
	return nil
}

func (s *SeenCache) Close() error {
	return s.Client.Close()
}
