package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
	"github.com/MrSnakeDoc/watchlist/internal/search"
)

type movieView struct {
	Key        string `json:"key"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	Poster     string `json:"poster"`
	Type       string `json:"type,omitempty"`
	Bookmarked bool   `json:"bookmarked"`
}

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	Query     string      `json:"query"`
	Page      int         `json:"page"`
	Total     int         `json:"total"`
	Loading   bool        `json:"loading"`
	Exhausted bool        `json:"exhausted"`
	NoResults bool        `json:"no_results"`
	Results   []movieView `json:"results"`
}

type nextPageRequest struct {
	SessionID string `json:"session_id"`
}

func newMovieView(m domain.Movie, bookmarked bool, placeholder string) movieView {
	return movieView{
		Key:        m.Key,
		Title:      m.Title,
		Year:       m.Year,
		Poster:     m.PosterOr(placeholder),
		Type:       m.Type,
		Bookmarked: bookmarked,
	}
}

// newSessionResponse renders a session with the current bookmark flags.
func newSessionResponse(s search.Session, d deps.Deps) sessionResponse {
	results := search.Decorate(s, d.Bookmarks)
	views := make([]movieView, len(results))
	for i, res := range results {
		views[i] = newMovieView(res.Movie, res.Bookmarked, d.PosterPlaceholder)
	}
	return sessionResponse{
		SessionID: s.ID,
		Query:     s.Query,
		Page:      s.Page,
		Total:     s.Total,
		Loading:   s.Loading,
		Exhausted: s.Exhausted,
		NoResults: s.NoResults,
		Results:   views,
	}
}

// Search starts a new search session for ?q=. Without q it returns the current session.
func Search(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !r.URL.Query().Has("q") {
			writeJSON(w, http.StatusOK, newSessionResponse(d.Search.Current(), d))
			return
		}

		query := r.URL.Query().Get("q")
		d.Logger.Info("search request", logger.String("query", query))

		session, err := d.Search.Search(r.Context(), query)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(session, d))
	}
}

// NextPage appends the next page to the session named in the body.
func NextPage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nextPageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		session, err := d.Search.NextPage(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(session, d))
	}
}

// FlushSearchCache drops every cached catalog page.
func FlushSearchCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Records.FlushCache(r.Context()); err != nil {
			writeError(w, d, err)
			return
		}
		d.Logger.Info("search cache flushed via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
	}
}
