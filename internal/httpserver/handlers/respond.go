package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/watchlist/internal/auth"
	"github.com/MrSnakeDoc/watchlist/internal/bookmarks"
	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
	"github.com/MrSnakeDoc/watchlist/internal/search"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIdentityNotReady):
		return http.StatusConflict, "identity_not_ready"
	case errors.Is(err, search.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, bookmarks.ErrEmptyKey):
		return http.StatusBadRequest, "invalid_input"
	case domain.IsFetchError(err):
		return http.StatusBadGateway, "fetch_failed"
	case domain.IsPersistenceError(err):
		return http.StatusServiceUnavailable, "persistence_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed", logger.String("code", code), logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

// persistMessage returns the text of a persistence error, or "" for any other error.
func persistMessage(err error) string {
	if domain.IsPersistenceError(err) {
		return err.Error()
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return false
	}
	return true
}

// NotFound answers unknown routes with the JSON error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: r.URL.Path})
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed", Message: r.Method})
}
