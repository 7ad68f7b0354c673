package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheSearchPage stores a raw catalog search page in cache
func (s *Store) CacheSearchPage(ctx context.Context, query string, page int, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, SearchPageKey(query, page), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache search page: %w", err)
	}
	return nil
}

// GetCachedSearchPage retrieves a cached search page. A miss returns nil, nil.
func (s *Store) GetCachedSearchPage(ctx context.Context, query string, page int) ([]byte, error) {
	data, err := s.client.Get(ctx, SearchPageKey(query, page)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached search page: %w", err)
	}
	return data, nil
}

// FlushCache removes all cached search pages
func (s *Store) FlushCache(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixSearchCache+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}
