package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/mw"
)

func init() { RegisterAPI(registerSearch) }

func registerSearch(r chi.Router, d deps.Deps) {
	r.Get("/search", handlers.Search(d))
	r.Get("/movies/{key}", handlers.MovieDetail(d))

	r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.PageBurst,
		RefillPerIPPerMin: d.PageRefillPerMin,
		TrustProxy:        d.TrustProxy,
	})).Post("/search/next", handlers.NextPage(d))

	r.With(d.ClientNetwork().Require(d.Logger)).
		Post("/search/cache/flush", handlers.FlushSearchCache(d))
}
