package index

import "github.com/MrSnakeDoc/watchlist/internal/domain"

// MovieList accumulates search results in arrival order, at most once per catalog key.
// It is not safe for concurrent use; the owning search session serializes access.
type MovieList struct {
	movies []domain.Movie
	seen   map[string]struct{}
}

// NewMovieList creates an empty list.
func NewMovieList() *MovieList {
	return &MovieList{seen: make(map[string]struct{})}
}

// Append merges movies in order, skipping keys already present (including
// duplicates inside the batch itself). It returns how many were added.
func (l *MovieList) Append(movies []domain.Movie) int {
	added := 0
	for _, m := range movies {
		if m.Key == "" {
			continue
		}
		if _, dup := l.seen[m.Key]; dup {
			continue
		}
		l.seen[m.Key] = struct{}{}
		l.movies = append(l.movies, m)
		added++
	}
	return added
}

// Contains reports whether key was already accumulated.
func (l *MovieList) Contains(key string) bool {
	_, ok := l.seen[key]
	return ok
}

// Movies returns a copy of the accumulated movies.
func (l *MovieList) Movies() []domain.Movie {
	out := make([]domain.Movie, len(l.movies))
	copy(out, l.movies)
	return out
}

// Len returns the number of accumulated movies.
func (l *MovieList) Len() int {
	return len(l.movies)
}
