package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store handles Redis operations for bookmark records, accounts and the search cache
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// ListAccounts returns the IDs of every account holding a bookmark record
func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	iter := s.client.Scan(ctx, 0, KeyPrefixAccountBookmarks+"*", 0).Iterator()
	for iter.Next(ctx) {
		id, err := ExtractAccountID(iter.Val())
		if err != nil {
			continue
		}
		accounts = append(accounts, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}
