package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg Registrar
	api bool
	mws []Middleware
}

var registry []entry

// Register adds root-level routes (health checks) with optional per-route middlewares.
func Register(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterAPI adds routes mounted under /api. They share the Host check.
func RegisterAPI(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, api: true, mws: mws})
}

// RegisterAll mounts every registrar. Called once from httpserver.New.
func RegisterAll(r chi.Router, d deps.Deps) {
	var api []entry
	for _, e := range registry {
		if e.api {
			api = append(api, e)
			continue
		}
		mount(r, e, d)
	}

	if len(api) == 0 {
		return
	}
	r.Route("/api", func(sub chi.Router) {
		sub.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		for _, e := range api {
			mount(sub, e, d)
		}
	})
}

func mount(r chi.Router, e entry, d deps.Deps) {
	if len(e.mws) == 0 {
		e.reg(r, d)
		return
	}
	e.reg(r.With(e.mws...), d)
}
