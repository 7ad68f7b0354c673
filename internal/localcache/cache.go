package localcache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
)

// IdentityRecord is the last identity resolved on this machine.
type IdentityRecord struct {
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name"`
}

// BookmarkRecord is one mirrored bookmark entry.
type BookmarkRecord struct {
	Key     string    `yaml:"key"`
	Title   string    `yaml:"title"`
	Year    string    `yaml:"year,omitempty"`
	Poster  string    `yaml:"poster,omitempty"`
	Type    string    `yaml:"type,omitempty"`
	AddedAt time.Time `yaml:"added_at"`
}

// Record is the root structure of the cache file.
// It never holds guest data.
type Record struct {
	SessionToken string                      `yaml:"session_token,omitempty"`
	LastIdentity *IdentityRecord             `yaml:"last_identity,omitempty"`
	Bookmarks    map[string][]BookmarkRecord `yaml:"bookmarks,omitempty"`
}

// File is a YAML-backed local key-value record.
type File struct {
	mu     sync.Mutex
	path   string
	record Record
}

// Open loads the cache file at path. A missing file is an empty record.
// On a read or parse error the returned File is still usable and empty;
// its next write replaces the unreadable file.
func Open(path string) (*File, error) {
	f := &File{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("failed to read local cache: %w", err)
	}

	if err := yaml.Unmarshal(data, &f.record); err != nil {
		f.record = Record{}
		return f, fmt.Errorf("failed to parse local cache yaml: %w", err)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// SessionToken returns the stored session token, or "".
func (f *File) SessionToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record.SessionToken
}

// LastIdentity returns the last account identity, if any.
func (f *File) LastIdentity() (domain.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record.LastIdentity == nil {
		return domain.Identity{}, false
	}
	return domain.Account(f.record.LastIdentity.Email, f.record.LastIdentity.DisplayName), true
}

// SaveSession stores the token and the account it belongs to.
func (f *File) SaveSession(token string, id domain.Identity) error {
	if !id.IsAccount() {
		return fmt.Errorf("refusing to store a session for %s", id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.record.SessionToken = token
	f.record.LastIdentity = &IdentityRecord{Email: id.AccountID, DisplayName: id.DisplayName}
	return f.writeLocked()
}

// ClearSession forgets the token and the last identity.
// Bookmark mirrors are kept for the next sign-in.
func (f *File) ClearSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.record.SessionToken == "" && f.record.LastIdentity == nil {
		return nil
	}
	f.record.SessionToken = ""
	f.record.LastIdentity = nil
	return f.writeLocked()
}

// LoadMirror returns the mirrored bookmarks of an account.
func (f *File) LoadMirror(accountID string) ([]domain.BookmarkEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, ok := f.record.Bookmarks[accountID]
	if !ok {
		return nil, false
	}
	entries := make([]domain.BookmarkEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, domain.BookmarkEntry{
			Movie: domain.Movie{
				Key:    r.Key,
				Title:  r.Title,
				Year:   r.Year,
				Poster: r.Poster,
				Type:   r.Type,
			},
			AddedAt: r.AddedAt,
		})
	}
	return entries, true
}

// SaveMirror replaces the mirrored bookmarks of an account.
func (f *File) SaveMirror(accountID string, entries []domain.BookmarkEntry) error {
	if accountID == "" {
		return errors.New("mirror requires an account id")
	}

	records := make([]BookmarkRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, BookmarkRecord{
			Key:     e.Movie.Key,
			Title:   e.Movie.Title,
			Year:    e.Movie.Year,
			Poster:  e.Movie.Poster,
			Type:    e.Movie.Type,
			AddedAt: e.AddedAt.UTC(),
		})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.record.Bookmarks == nil {
		f.record.Bookmarks = make(map[string][]BookmarkRecord)
	}
	f.record.Bookmarks[accountID] = records
	return f.writeLocked()
}

// writeLocked replaces the file atomically (temp file + rename).
func (f *File) writeLocked() error {
	data, err := yaml.Marshal(&f.record)
	if err != nil {
		return fmt.Errorf("failed to encode local cache: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create local cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".local-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write local cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close local cache: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace local cache: %w", err)
	}
	return nil
}
