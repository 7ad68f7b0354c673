package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/MrSnakeDoc/watchlist/internal/auth"
	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

// State is the resolution state of the gate.
type State int

const (
	StateUnresolved State = iota
	StateGuest
	StateAccount
)

func (s State) String() string {
	switch s {
	case StateGuest:
		return "guest"
	case StateAccount:
		return "account"
	default:
		return "unresolved"
	}
}

// Listener is notified of every identity the gate installs.
// The bookmark store is the primary listener.
type Listener interface {
	OnIdentityChange(ctx context.Context, id domain.Identity) error
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ctx context.Context, id domain.Identity) error

// OnIdentityChange calls f.
func (f ListenerFunc) OnIdentityChange(ctx context.Context, id domain.Identity) error {
	return f(ctx, id)
}

// SessionCache persists the session token and last identity locally.
type SessionCache interface {
	SessionToken() string
	SaveSession(token string, id domain.Identity) error
	ClearSession() error
}

// Gate tracks the current identity and is the single trigger point for
// bookmark store transitions. Auth operations run one at a time.
type Gate struct {
	opMu sync.Mutex

	mu       sync.RWMutex
	state    State
	identity domain.Identity
	token    string

	provider  auth.Provider
	cache     SessionCache
	bookmarks Listener
	listeners []Listener
	logger    logger.Logger
}

// NewGate creates an unresolved gate.
func NewGate(provider auth.Provider, cache SessionCache, bookmarks Listener, log logger.Logger) *Gate {
	return &Gate{
		state:     StateUnresolved,
		identity:  domain.Guest(),
		provider:  provider,
		cache:     cache,
		bookmarks: bookmarks,
		logger:    log,
	}
}

// Subscribe adds a listener notified after the bookmark store.
func (g *Gate) Subscribe(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// Current returns the current identity. Guest while unresolved.
func (g *Gate) Current() domain.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identity
}

// State returns the resolution state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Resolve restores the stored session token. A valid token resolves to its
// account, anything else to guest. The returned error only reports a
// bookmark persistence problem; the identity is always resolved.
func (g *Gate) Resolve(ctx context.Context) (domain.Identity, error) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	id := domain.Guest()
	token := g.cache.SessionToken()

	if token != "" {
		restored, err := g.provider.Restore(ctx, token)
		switch {
		case err == nil:
			id = restored
		case errors.Is(err, domain.ErrInvalidSession):
			g.logger.Info("stored session is no longer valid, continuing as guest", logger.Error(err))
			if err := g.cache.ClearSession(); err != nil {
				g.logger.Warn("failed to clear stored session", logger.Error(err))
			}
			token = ""
		default:
			g.logger.Warn("session restore failed, continuing as guest", logger.Error(err))
			token = ""
		}
	}

	g.logger.Info("identity resolved", logger.String("identity", id.String()))
	return id, g.install(ctx, id, token)
}

// SignIn authenticates the credential pair and makes the account active.
// A non-nil session comes with a nil error or a *domain.PersistenceError.
func (g *Gate) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	session, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return auth.Session{}, err
	}
	return session, g.activate(ctx, session)
}

// SignUp registers a new account and makes it active.
func (g *Gate) SignUp(ctx context.Context, username, email, password string) (auth.Session, error) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	session, err := g.provider.SignUp(ctx, username, email, password)
	if err != nil {
		return auth.Session{}, err
	}
	return session, g.activate(ctx, session)
}

// SignOut ends the account session and returns to guest.
// A failure to revoke the token remotely does not keep the user signed in.
func (g *Gate) SignOut(ctx context.Context) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.RLock()
	state, token := g.state, g.token
	g.mu.RUnlock()

	if state != StateAccount {
		return nil
	}

	if err := g.provider.SignOut(ctx, token); err != nil {
		g.logger.Warn("failed to revoke session token", logger.Error(err))
	}
	if err := g.cache.ClearSession(); err != nil {
		g.logger.Warn("failed to clear stored session", logger.Error(err))
	}

	return g.install(ctx, domain.Guest(), "")
}

func (g *Gate) activate(ctx context.Context, session auth.Session) error {
	if err := g.cache.SaveSession(session.Token, session.Identity); err != nil {
		g.logger.Warn("failed to store session locally", logger.Error(err))
	}
	g.logger.Info("signed in", logger.String("account", session.Identity.AccountID))
	return g.install(ctx, session.Identity, session.Token)
}

// install publishes id and notifies the bookmark store then the listeners.
func (g *Gate) install(ctx context.Context, id domain.Identity, token string) error {
	g.mu.Lock()
	g.identity = id
	g.token = token
	if id.IsAccount() {
		g.state = StateAccount
	} else {
		g.state = StateGuest
	}
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	var err error
	if g.bookmarks != nil {
		err = g.bookmarks.OnIdentityChange(ctx, id)
	}
	for _, l := range listeners {
		if lerr := l.OnIdentityChange(ctx, id); lerr != nil {
			g.logger.Warn("identity listener failed", logger.Error(lerr))
		}
	}
	return err
}
