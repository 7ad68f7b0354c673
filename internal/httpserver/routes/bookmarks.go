package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Get("/bookmarks", handlers.Bookmarks(d))
	r.Post("/bookmarks/toggle", handlers.ToggleBookmark(d))

	r.With(d.ClientNetwork().Require(d.Logger)).
		Post("/bookmarks/flush", handlers.FlushBookmarks(d))
}
