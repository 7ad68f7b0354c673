package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerIdentity) }

func registerIdentity(r chi.Router, d deps.Deps) {
	r.Get("/identity", handlers.Identity(d))
	r.Post("/auth/signin", handlers.SignIn(d))
	r.Post("/auth/signup", handlers.SignUp(d))
	r.Post("/auth/signout", handlers.SignOut(d))
}
