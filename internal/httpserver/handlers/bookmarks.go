package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

type bookmarkView struct {
	movieView
	AddedAt time.Time `json:"added_at"`
}

type bookmarksResponse struct {
	Identity  domain.Identity `json:"identity"`
	Ready     bool            `json:"ready"`
	Dirty     bool            `json:"dirty"`
	Bookmarks []bookmarkView  `json:"bookmarks"`
}

type toggleRequest struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Year   string `json:"year"`
	Poster string `json:"poster"`
	Type   string `json:"type"`
}

type toggleResponse struct {
	Key          string         `json:"key"`
	Bookmarked   bool           `json:"bookmarked"`
	Bookmarks    []bookmarkView `json:"bookmarks"`
	PersistError string         `json:"persist_error,omitempty"`
}

func bookmarkViews(entries []domain.BookmarkEntry, placeholder string) []bookmarkView {
	out := make([]bookmarkView, len(entries))
	for i, e := range entries {
		out[i] = bookmarkView{
			movieView: newMovieView(e.Movie, true, placeholder),
			AddedAt:   e.AddedAt,
		}
	}
	return out
}

func contains(entries []domain.BookmarkEntry, key string) bool {
	for _, e := range entries {
		if e.Key() == key {
			return true
		}
	}
	return false
}

// Bookmarks lists the active set in insertion order.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, bookmarksResponse{
			Identity:  d.Bookmarks.Identity(),
			Ready:     d.Bookmarks.Ready(),
			Dirty:     d.Bookmarks.Dirty(),
			Bookmarks: bookmarkViews(d.Bookmarks.ActiveSet(), d.PosterPlaceholder),
		})
	}
}

// ToggleBookmark adds or removes a movie. A failed durable write still
// answers 200 with the new set and persist_error set.
func ToggleBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		movie := domain.Movie{
			Key:    req.Key,
			Title:  req.Title,
			Year:   req.Year,
			Poster: domain.NormalizeField(req.Poster),
			Type:   req.Type,
		}

		entries, err := d.Bookmarks.Toggle(r.Context(), movie)
		if err != nil && !domain.IsPersistenceError(err) {
			writeError(w, d, err)
			return
		}

		writeJSON(w, http.StatusOK, toggleResponse{
			Key:          movie.Key,
			Bookmarked:   contains(entries, movie.Key),
			Bookmarks:    bookmarkViews(entries, d.PosterPlaceholder),
			PersistError: persistMessage(err),
		})
	}
}

// FlushBookmarks asks the background flusher to retry failed durable writes now.
func FlushBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Bookmarks.Dirty() {
			writeJSON(w, http.StatusOK, map[string]string{"status": "clean"})
			return
		}

		select {
		case d.FlushTrigger <- struct{}{}:
			d.Logger.Info("manual bookmark flush triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "flush_triggered"})
		default:
			d.Logger.Warn("bookmark flush already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"status": "flush_pending"})
		}
	}
}
