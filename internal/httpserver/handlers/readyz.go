package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/identity"
)

type readyzResponse struct {
	Ready    bool   `json:"ready"`
	Identity string `json:"identity"`
	Redis    bool   `json:"redis"`
}

// Readyz is ready once the identity is resolved and redis answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.Identity.State()
		redisOK := checkRedis(r.Context(), d).OK

		resp := readyzResponse{
			Ready:    state != identity.StateUnresolved && redisOK,
			Identity: state.String(),
			Redis:    redisOK,
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
