package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/redis/go-redis/v9"
)

// bookmarkRecord is the JSON document stored per account
type bookmarkRecord struct {
	Entries   []domain.BookmarkEntry `json:"entries"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// LoadBookmarks reads the bookmark list of an account.
// A missing record is an empty list, not an error.
func (s *Store) LoadBookmarks(ctx context.Context, accountID string) ([]domain.BookmarkEntry, error) {
	data, err := s.client.Get(ctx, AccountBookmarksKey(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.BookmarkEntry{}, nil
		}
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	var record bookmarkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookmarks: %w", err)
	}
	if record.Entries == nil {
		record.Entries = []domain.BookmarkEntry{}
	}

	return record.Entries, nil
}

// SaveBookmarks replaces the bookmark list of an account.
// Records have no TTL: they are the durable copy.
func (s *Store) SaveBookmarks(ctx context.Context, accountID string, entries []domain.BookmarkEntry) error {
	if entries == nil {
		entries = []domain.BookmarkEntry{}
	}
	data, err := json.Marshal(bookmarkRecord{Entries: entries, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal bookmarks: %w", err)
	}

	if err := s.client.Set(ctx, AccountBookmarksKey(accountID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save bookmarks: %w", err)
	}

	return nil
}
