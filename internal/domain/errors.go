package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityNotReady is returned when a bookmark mutation arrives before
	// the identity is resolved or while an identity transition is running.
	// Callers should defer the action rather than fail visibly.
	ErrIdentityNotReady = errors.New("identity not ready")

	// ErrNotFound is returned when a catalog key is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned by sign-in on unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned by sign-up when the email is already registered.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInvalidSession is returned when a session token cannot be restored.
	ErrInvalidSession = errors.New("invalid session")
)

// FetchError reports a failed call to the catalog or auth service.
// It is transient: the next user action retries.
type FetchError struct {
	Op         string // ex: "search", "detail", "signin"
	StatusCode int    // 0 when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistenceError reports a failed read or write of the durable per-account
// bookmark record. The in-memory set stays authoritative.
type PersistenceError struct {
	Op      string // "load" or "save"
	Account string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("bookmarks %s for %s: %v", e.Op, e.Account, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsPersistenceError reports whether err is or wraps a *PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
