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

// CreateUser stores a new account record.
// It returns domain.ErrEmailTaken when the email is already registered.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	created, err := s.client.SetNX(ctx, UserKey(user.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if !created {
		return domain.ErrEmailTaken
	}

	return nil
}

// GetUser retrieves an account record by normalized email.
// It returns domain.ErrNotFound when no such account exists.
func (s *Store) GetUser(ctx context.Context, email string) (*domain.User, error) {
	data, err := s.client.Get(ctx, UserKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

// RevokeToken marks a session token ID as revoked until the token would have expired anyway
func (s *Store) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, RevokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether a session token ID was revoked
func (s *Store) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, RevokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}
