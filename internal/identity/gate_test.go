package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/watchlist/internal/auth"
	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/localcache"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

type fakeProvider struct {
	accounts   map[string]domain.Identity // token -> identity
	restoreErr error
	signedOut  []string
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (auth.Session, error) {
	if password != "secret1" {
		return auth.Session{}, domain.ErrInvalidCredentials
	}
	id := domain.Account(email, "Alice")
	token := "tok-" + id.AccountID
	p.accounts[token] = id
	return auth.Session{Identity: id, Token: token}, nil
}

func (p *fakeProvider) SignUp(ctx context.Context, username, email, password string) (auth.Session, error) {
	s, err := p.SignIn(ctx, email, password)
	s.Identity.DisplayName = username
	return s, err
}

func (p *fakeProvider) SignOut(_ context.Context, token string) error {
	p.signedOut = append(p.signedOut, token)
	delete(p.accounts, token)
	return nil
}

func (p *fakeProvider) Restore(_ context.Context, token string) (domain.Identity, error) {
	if p.restoreErr != nil {
		return domain.Identity{}, p.restoreErr
	}
	id, ok := p.accounts[token]
	if !ok {
		return domain.Identity{}, domain.ErrInvalidSession
	}
	return id, nil
}

type recorder struct {
	mu   sync.Mutex
	seen []domain.Identity
	err  error
}

func (r *recorder) OnIdentityChange(_ context.Context, id domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, id)
	return r.err
}

func newTestGate(t *testing.T) (*Gate, *fakeProvider, *localcache.File, *recorder) {
	t.Helper()
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "local.yaml"))
	require.NoError(t, err)
	p := &fakeProvider{accounts: map[string]domain.Identity{}}
	rec := &recorder{}
	return NewGate(p, cache, rec, logger.NewNop()), p, cache, rec
}

func TestResolveWithoutTokenIsGuest(t *testing.T) {
	g, _, _, rec := newTestGate(t)
	assert.Equal(t, StateUnresolved, g.State())

	id, err := g.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, id.IsGuest())
	assert.Equal(t, StateGuest, g.State())
	assert.Equal(t, []domain.Identity{domain.Guest()}, rec.seen)
}

func TestResolveRestoresStoredSession(t *testing.T) {
	g, p, cache, rec := newTestGate(t)
	alice := domain.Account("a@x.com", "Alice")
	p.accounts["tok-a"] = alice
	require.NoError(t, cache.SaveSession("tok-a", alice))

	id, err := g.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice, id)
	assert.Equal(t, StateAccount, g.State())
	assert.Equal(t, []domain.Identity{alice}, rec.seen)
}

func TestResolveClearsInvalidSession(t *testing.T) {
	g, _, cache, _ := newTestGate(t)
	require.NoError(t, cache.SaveSession("stale", domain.Account("a@x.com", "Alice")))

	id, err := g.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, id.IsGuest())
	assert.Empty(t, cache.SessionToken())
}

func TestResolveKeepsTokenWhenAuthUnreachable(t *testing.T) {
	g, p, cache, _ := newTestGate(t)
	require.NoError(t, cache.SaveSession("tok-a", domain.Account("a@x.com", "Alice")))
	p.restoreErr = &domain.FetchError{Op: "restore", Err: errors.New("dial tcp: refused")}

	id, err := g.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, id.IsGuest())
	assert.Equal(t, "tok-a", cache.SessionToken(), "token kept for the next start")
}

func TestSignInSignOut(t *testing.T) {
	g, p, cache, rec := newTestGate(t)
	ctx := context.Background()
	_, err := g.Resolve(ctx)
	require.NoError(t, err)

	session, err := g.SignIn(ctx, "A@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", g.Current().AccountID)
	assert.Equal(t, session.Token, cache.SessionToken())

	require.NoError(t, g.SignOut(ctx))
	assert.Equal(t, StateGuest, g.State())
	assert.Empty(t, cache.SessionToken())
	assert.Equal(t, []string{session.Token}, p.signedOut)

	require.Len(t, rec.seen, 3)
	assert.True(t, rec.seen[0].IsGuest())
	assert.True(t, rec.seen[1].IsAccount())
	assert.True(t, rec.seen[2].IsGuest())
}

func TestSignInFailureKeepsIdentity(t *testing.T) {
	g, _, _, rec := newTestGate(t)
	ctx := context.Background()
	_, _ = g.Resolve(ctx)

	_, err := g.SignIn(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, StateGuest, g.State())
	assert.Len(t, rec.seen, 1)
}

func TestSignUpActivatesNewAccount(t *testing.T) {
	g, _, _, _ := newTestGate(t)
	ctx := context.Background()
	_, _ = g.Resolve(ctx)

	session, err := g.SignUp(ctx, "Bob", "b@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", session.Identity.DisplayName)
	assert.Equal(t, session.Identity, g.Current())
}

func TestSignOutAsGuestIsNoop(t *testing.T) {
	g, p, _, rec := newTestGate(t)
	ctx := context.Background()
	_, _ = g.Resolve(ctx)

	require.NoError(t, g.SignOut(ctx))
	assert.Empty(t, p.signedOut)
	assert.Len(t, rec.seen, 1)
}

func TestBookmarkErrorIsReturnedAndListenersStillRun(t *testing.T) {
	g, _, _, rec := newTestGate(t)
	rec.err = &domain.PersistenceError{Op: "load", Account: "a@x.com", Err: errors.New("down")}
	var observed []domain.Identity
	g.Subscribe(ListenerFunc(func(_ context.Context, id domain.Identity) error {
		observed = append(observed, id)
		return nil
	}))

	_, err := g.SignIn(context.Background(), "a@x.com", "secret1")
	assert.True(t, domain.IsPersistenceError(err))
	assert.Equal(t, StateAccount, g.State())
	require.Len(t, observed, 1)
	assert.Equal(t, "a@x.com", observed[0].AccountID)
}
