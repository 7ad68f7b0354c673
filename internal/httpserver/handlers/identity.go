package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/watchlist/internal/auth"
	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

const (
	welcomeBackFormat   = "Welcome back, %s!"
	registrationMessage = "Registration successful!"
	signedOutMessage    = "Signed out."
)

type identityResponse struct {
	State    string          `json:"state"`
	Identity domain.Identity `json:"identity"`
	Ready    bool            `json:"ready"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message      string          `json:"message"`
	Identity     domain.Identity `json:"identity"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	PersistError string          `json:"persist_error,omitempty"`
}

// Identity reports the gate state and whether bookmark actions are accepted.
func Identity(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, identityResponse{
			State:    d.Identity.State().String(),
			Identity: d.Identity.Current(),
			Ready:    d.Bookmarks.Ready(),
		})
	}
}

func writeSession(w http.ResponseWriter, d deps.Deps, status int, message string, session auth.Session, err error) {
	if err != nil && !domain.IsPersistenceError(err) {
		writeError(w, d, err)
		return
	}
	expires := session.ExpiresAt
	writeJSON(w, status, authResponse{
		Message:      message,
		Identity:     session.Identity,
		ExpiresAt:    &expires,
		PersistError: persistMessage(err),
	})
}

// SignIn authenticates an email and password and switches to the account.
func SignIn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		session, err := d.Identity.SignIn(r.Context(), req.Email, req.Password)
		if err != nil && !domain.IsPersistenceError(err) {
			d.Logger.Info("sign-in rejected", logger.Error(err))
		}
		writeSession(w, d, http.StatusOK,
			fmt.Sprintf(welcomeBackFormat, session.Identity.DisplayName), session, err)
	}
}

// SignUp registers a new account and signs it in.
func SignUp(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signUpRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		session, err := d.Identity.SignUp(r.Context(), req.Username, req.Email, req.Password)
		writeSession(w, d, http.StatusCreated, registrationMessage, session, err)
	}
}

// SignOut returns to guest. Signing out as a guest is a no-op.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Identity.SignOut(r.Context())
		if err != nil && !domain.IsPersistenceError(err) {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{
			Message:      signedOutMessage,
			Identity:     d.Identity.Current(),
			PersistError: persistMessage(err),
		})
	}
}
