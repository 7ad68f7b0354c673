package domain

import "strings"

// PosterNotAvailable is the sentinel the catalog uses when a title has no poster.
const PosterNotAvailable = "N/A"

// DefaultPosterPlaceholder is rendered in place of a missing poster.
const DefaultPosterPlaceholder = "https://via.placeholder.com/200x300"

// Movie is a catalog title as returned by a search.
//
// A Movie is uniquely identified by its Key (the catalog key) and is
// immutable once fetched.
type Movie struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// Key is the catalog key.
	// Example: tt1591095
	Key string `json:"key"`

	// ─────────────────────────────
	// Summary
	// ─────────────────────────────

	Title string `json:"title"`

	// Year is kept as text: series report ranges like "2010–2013".
	Year string `json:"year"`

	// Poster is empty when the catalog reports none.
	Poster string `json:"poster,omitempty"`

	// Type is the catalog media type (movie, series, episode).
	Type string `json:"type,omitempty"`
}

// HasPoster reports whether the movie carries a usable poster reference.
func (m Movie) HasPoster() bool {
	return m.Poster != "" && m.Poster != PosterNotAvailable
}

// PosterOr returns the poster reference or fallback when there is none.
func (m Movie) PosterOr(fallback string) string {
	if m.HasPoster() {
		return m.Poster
	}
	return fallback
}

// MovieDetail is the descriptive bag fetched lazily for a single title.
// Every descriptive field may be empty when the catalog does not know it.
type MovieDetail struct {
	Movie

	Genre    string `json:"genre,omitempty"`
	Director string `json:"director,omitempty"`
	Actors   string `json:"actors,omitempty"`
	Plot     string `json:"plot,omitempty"`
	Runtime  string `json:"runtime,omitempty"`
	Rated    string `json:"rated,omitempty"`
	Rating   string `json:"imdb_rating,omitempty"`
}

// NormalizeField maps the catalog "N/A" sentinel and blanks to an empty string.
func NormalizeField(v string) string {
	v = strings.TrimSpace(v)
	if v == PosterNotAvailable {
		return ""
	}
	return v
}
