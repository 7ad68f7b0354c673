package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/handlers"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	health := r.With(d.ClientNetwork().Require(d.Logger))
	health.Get("/readyz", handlers.Readyz(d))
	health.Get("/infra", handlers.Infra(d))
}
