package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/watchlist/internal/catalog"
	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/index"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

// ErrSuperseded is returned when a result belongs to a session that is no
// longer current. The result has been discarded.
var ErrSuperseded = errors.New("search session superseded")

// Searcher fetches one page of catalog results.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (catalog.SearchPage, error)
}

// Session is a read-only snapshot of a search session.
type Session struct {
	ID     string         `json:"session_id"`
	Query  string         `json:"query"`
	Page   int            `json:"page"`  // highest page merged so far
	Total  int            `json:"total"` // matches reported by the catalog
	Movies []domain.Movie `json:"movies"`

	// Loading is true while a page fetch for this session is in flight.
	Loading bool `json:"loading"`
	// Exhausted is true once no further page can be fetched.
	Exhausted bool `json:"exhausted"`
	// NoResults is the explicit empty terminal state.
	NoResults bool `json:"no_results"`
}

// session is the mutable state behind a Session. Guarded by Pipeline.mu.
type session struct {
	id        string
	query     string
	page      int
	total     int
	movies    *index.MovieList
	inFlight  bool
	exhausted bool
	fetched   bool
}

func (s *session) snapshot() Session {
	return Session{
		ID:        s.id,
		Query:     s.query,
		Page:      s.page,
		Total:     s.total,
		Movies:    s.movies.Movies(),
		Loading:   s.inFlight,
		Exhausted: s.exhausted,
		NoResults: s.fetched && s.exhausted && s.movies.Len() == 0,
	}
}

// merge appends a fetched page. Only ever called for the current session.
func (s *session) merge(p catalog.SearchPage) int {
	s.fetched = true
	s.page = p.Page
	if p.Total > s.total {
		s.total = p.Total
	}
	added := s.movies.Append(p.Movies)

	last := catalog.SearchPage{Total: s.total}.Pages()
	if len(p.Movies) == 0 || s.page >= last {
		s.exhausted = true
	}
	return added
}

// Pipeline turns queries into deduplicated, incrementally growing result lists.
// Exactly one session is current at a time; every fetch is tagged with the
// session it was issued for and merged only if that session is still current.
type Pipeline struct {
	mu      sync.Mutex
	catalog Searcher
	current *session
	logger  logger.Logger
	newID   func() string
}

// NewPipeline creates a pipeline over the given catalog.
func NewPipeline(c Searcher, log logger.Logger) *Pipeline {
	return &Pipeline{
		catalog: c,
		current: newSession("", ""),
		logger:  log,
		newID:   uuid.NewString,
	}
}

func newSession(id, query string) *session {
	return &session{id: id, query: query, movies: index.NewMovieList()}
}

// Search starts a new session for query and fetches its first page.
// Any previous session is replaced, and its in-flight fetches will be discarded.
func (p *Pipeline) Search(ctx context.Context, query string) (Session, error) {
	query = strings.TrimSpace(query)

	p.mu.Lock()
	s := newSession(p.newID(), query)
	p.current = s
	if query == "" {
		s.exhausted = true
		snap := s.snapshot()
		p.mu.Unlock()
		return snap, nil
	}
	s.inFlight = true
	p.mu.Unlock()

	p.logger.Debug("search started",
		logger.String("session_id", s.id),
		logger.String("query", query))

	return p.fetch(ctx, s, 1)
}

// NextPage fetches the page after the highest one merged for sessionID.
// It is a no-op returning the current snapshot when a fetch for the session
// is already in flight or the session is exhausted.
func (p *Pipeline) NextPage(ctx context.Context, sessionID string) (Session, error) {
	p.mu.Lock()
	s := p.current
	if s.id == "" || s.id != sessionID {
		p.mu.Unlock()
		return Session{}, ErrSuperseded
	}
	if s.inFlight || s.exhausted {
		snap := s.snapshot()
		p.mu.Unlock()
		return snap, nil
	}
	s.inFlight = true
	next := s.page + 1
	p.mu.Unlock()

	return p.fetch(ctx, s, next)
}

// fetch runs outside the lock, then merges under it if s is still current.
func (p *Pipeline) fetch(ctx context.Context, s *session, page int) (Session, error) {
	result, err := p.catalog.Search(ctx, s.query, page)

	p.mu.Lock()
	defer p.mu.Unlock()

	s.inFlight = false
	if p.current != s {
		p.logger.Debug("discarding result of superseded search",
			logger.String("session_id", s.id),
			logger.String("query", s.query),
			logger.Int("page", page))
		return Session{}, ErrSuperseded
	}

	if err != nil {
		p.logger.Warn("search page fetch failed",
			logger.String("query", s.query),
			logger.Int("page", page),
			logger.Error(err))
		return s.snapshot(), err
	}

	result.Page = page
	added := s.merge(result)
	p.logger.Debug("search page merged",
		logger.String("session_id", s.id),
		logger.Int("page", page),
		logger.Int("received", len(result.Movies)),
		logger.Int("added", added),
		logger.Bool("exhausted", s.exhausted))

	return s.snapshot(), nil
}

// Current returns a snapshot of the current session.
func (p *Pipeline) Current() Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current.snapshot()
}

// Membership answers whether a catalog key is bookmarked.
type Membership interface {
	IsBookmarked(key string) bool
}

// Result is a movie with its bookmark toggle state.
type Result struct {
	domain.Movie
	Bookmarked bool `json:"bookmarked"`
}

// Decorate pairs every movie of the session with its current bookmark state.
func Decorate(s Session, m Membership) []Result {
	out := make([]Result, len(s.Movies))
	for i, movie := range s.Movies {
		out[i] = Result{Movie: movie, Bookmarked: m.IsBookmarked(movie.Key)}
	}
	return out
}
