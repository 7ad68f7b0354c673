package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
)

// BookmarkSet is an insertion-ordered set of bookmark entries keyed by catalog key.
// Entries live in an arena slice; byKey maps a catalog key to its arena slot.
type BookmarkSet struct {
	mu         sync.RWMutex
	entries    []domain.BookmarkEntry
	byKey      map[string]int
	lastChange time.Time
}

// NewBookmarkSet creates an empty set.
func NewBookmarkSet() *BookmarkSet {
	return &BookmarkSet{
		byKey: make(map[string]int),
	}
}

// NewBookmarkSetFrom builds a set from persisted entries.
// Later duplicates of a key are dropped, entries without a key are ignored.
func NewBookmarkSetFrom(entries []domain.BookmarkEntry) *BookmarkSet {
	s := &BookmarkSet{
		entries: make([]domain.BookmarkEntry, 0, len(entries)),
		byKey:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		key := e.Key()
		if key == "" {
			continue
		}
		if _, dup := s.byKey[key]; dup {
			continue
		}
		s.byKey[key] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return s
}

// Contains reports whether key is in the set.
func (s *BookmarkSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byKey[key]
	return ok
}

// Toggle removes movie if present, otherwise appends it with addedAt.
// It returns true when the movie was added.
func (s *BookmarkSet) Toggle(movie domain.Movie, addedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastChange = addedAt
	if pos, ok := s.byKey[movie.Key]; ok {
		s.removeAtLocked(pos)
		return false
	}

	s.byKey[movie.Key] = len(s.entries)
	s.entries = append(s.entries, domain.BookmarkEntry{Movie: movie, AddedAt: addedAt})
	return true
}

// Remove deletes key from the set. Missing keys are ignored.
func (s *BookmarkSet) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.byKey[key]
	if !ok {
		return false
	}
	s.removeAtLocked(pos)
	s.lastChange = time.Now()
	return true
}

// removeAtLocked drops the arena slot at pos and shifts the index of every later entry.
func (s *BookmarkSet) removeAtLocked(pos int) {
	delete(s.byKey, s.entries[pos].Key())
	copy(s.entries[pos:], s.entries[pos+1:])
	s.entries[len(s.entries)-1] = domain.BookmarkEntry{}
	s.entries = s.entries[:len(s.entries)-1]
	for i := pos; i < len(s.entries); i++ {
		s.byKey[s.entries[i].Key()] = i
	}
}

// Entries returns a copy of the entries in insertion order.
func (s *BookmarkSet) Entries() []domain.BookmarkEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BookmarkEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Keys returns the catalog keys in insertion order.
func (s *BookmarkSet) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.Key()
	}
	return keys
}

// Len returns the number of entries.
func (s *BookmarkSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// LastChange returns the time of the last mutation.
func (s *BookmarkSet) LastChange() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastChange
}
