package domain

import "time"

// BookmarkEntry is a movie saved by the active identity for later viewing.
// Within one owner's set, entries are unique by Movie.Key.
type BookmarkEntry struct {
	Movie Movie `json:"movie"`

	// AddedAt is the time the entry was toggled on.
	AddedAt time.Time `json:"added_at"`
}

// Key returns the catalog key of the bookmarked movie.
func (b BookmarkEntry) Key() string {
	return b.Movie.Key
}
