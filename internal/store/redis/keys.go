package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixAccountBookmarks is the prefix for per-account bookmark records
	KeyPrefixAccountBookmarks = "watchlist:bookmarks:"
	// KeyPrefixUser is the prefix for account records
	KeyPrefixUser = "watchlist:user:"
	// KeyPrefixRevoked is the prefix for revoked session token IDs
	KeyPrefixRevoked = "watchlist:revoked:"
	// KeyPrefixSearchCache is the prefix for cached catalog search pages
	KeyPrefixSearchCache = "watchlist:cache:search:"
)

// AccountBookmarksKey returns the Redis key for an account's bookmark record
func AccountBookmarksKey(accountID string) string {
	return KeyPrefixAccountBookmarks + accountID
}

// UserKey returns the Redis key for an account record
func UserKey(email string) string {
	return KeyPrefixUser + email
}

// RevokedKey returns the Redis key marking a session token ID as revoked
func RevokedKey(tokenID string) string {
	return KeyPrefixRevoked + tokenID
}

// SearchPageKey returns the Redis key for a cached search page.
// Queries are lower-cased so "Insidious" and "insidious" share an entry.
func SearchPageKey(query string, page int) string {
	return fmt.Sprintf("%s%s:%d", KeyPrefixSearchCache, strings.ToLower(strings.TrimSpace(query)), page)
}

// ExtractAccountID extracts the account ID from a bookmark record key
func ExtractAccountID(key string) (string, error) {
	if len(key) <= len(KeyPrefixAccountBookmarks) || !strings.HasPrefix(key, KeyPrefixAccountBookmarks) {
		return "", fmt.Errorf("invalid bookmark record key: %s", key)
	}
	return key[len(KeyPrefixAccountBookmarks):], nil
}
