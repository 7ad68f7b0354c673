package bookmarks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

var errRedisDown = errors.New("redis: connection refused")

type fakeRecord struct {
	mu        sync.Mutex
	sets      map[string][]domain.BookmarkEntry
	saves     map[string]int
	failSave  bool
	failLoad  bool
	loadGate  chan struct{}
	loadCalls int
	saveGate  chan struct{}
	saveCalls int
}

func newFakeRecord() *fakeRecord {
	return &fakeRecord{
		sets:  map[string][]domain.BookmarkEntry{},
		saves: map[string]int{},
	}
}

func (f *fakeRecord) LoadBookmarks(_ context.Context, account string) ([]domain.BookmarkEntry, error) {
	f.mu.Lock()
	f.loadCalls++
	gate := f.loadGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errRedisDown
	}
	out := make([]domain.BookmarkEntry, len(f.sets[account]))
	copy(out, f.sets[account])
	return out, nil
}

func (f *fakeRecord) SaveBookmarks(_ context.Context, account string, entries []domain.BookmarkEntry) error {
	f.mu.Lock()
	f.saveCalls++
	gate := f.saveGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errRedisDown
	}
	f.saves[account]++
	f.sets[account] = append([]domain.BookmarkEntry(nil), entries...)
	return nil
}

func (f *fakeRecord) stored(account string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return entryKeys(f.sets[account])
}

func (f *fakeRecord) saveCount(account string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[account]
}

func (f *fakeRecord) setFailSave(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = v
}

func (f *fakeRecord) setFailLoad(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLoad = v
}

type fakeMirror struct {
	mu   sync.Mutex
	sets map[string][]domain.BookmarkEntry
}

func (m *fakeMirror) LoadMirror(account string) ([]domain.BookmarkEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sets[account]
	return e, ok
}

func (m *fakeMirror) SaveMirror(account string, entries []domain.BookmarkEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[account] = entries
	return nil
}

func entryKeys(entries []domain.BookmarkEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key()
	}
	return out
}

func movie(key string) domain.Movie {
	return domain.Movie{Key: key, Title: "Title " + key}
}

func entry(key string) domain.BookmarkEntry {
	return domain.BookmarkEntry{Movie: movie(key), AddedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func newTestStore(rec Record, mirror Mirror) *Store {
	return NewStore(rec, mirror, Options{Retries: 2, RetryDelay: time.Millisecond}, logger.NewNop())
}

var alice = domain.Account("a@x.com", "Alice")

func TestToggleBeforeResolutionIsRejected(t *testing.T) {
	rec := newFakeRecord()
	s := newTestStore(rec, nil)

	set, err := s.Toggle(context.Background(), movie("tt1"))
	assert.ErrorIs(t, err, domain.ErrIdentityNotReady)
	assert.Empty(t, set)
	assert.False(t, s.IsBookmarked("tt1"))
	assert.False(t, s.Ready())
}

func TestToggleTwiceRestoresMembership(t *testing.T) {
	for _, id := range []domain.Identity{domain.Guest(), alice} {
		t.Run(id.String(), func(t *testing.T) {
			rec := newFakeRecord()
			rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("tt1")}
			s := newTestStore(rec, nil)
			require.NoError(t, s.OnIdentityChange(context.Background(), id))

			before := entryKeys(s.ActiveSet())
			for _, key := range []string{"tt1", "tt2"} {
				was := s.IsBookmarked(key)

				_, err := s.Toggle(context.Background(), movie(key))
				require.NoError(t, err)
				assert.Equal(t, !was, s.IsBookmarked(key))

				_, err = s.Toggle(context.Background(), movie(key))
				require.NoError(t, err)
				assert.Equal(t, was, s.IsBookmarked(key))
			}
			assert.ElementsMatch(t, before, entryKeys(s.ActiveSet()))
		})
	}
}

func TestToggleReturnsNewSetInInsertionOrder(t *testing.T) {
	s := newTestStore(newFakeRecord(), nil)
	require.NoError(t, s.OnIdentityChange(context.Background(), domain.Guest()))

	for _, key := range []string{"tt3", "tt1", "tt2"} {
		_, err := s.Toggle(context.Background(), movie(key))
		require.NoError(t, err)
	}
	set, err := s.Toggle(context.Background(), movie("tt1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"tt3", "tt2"}, entryKeys(set))
	assert.Equal(t, entryKeys(set), entryKeys(s.ActiveSet()))
}

func TestToggleRejectsEmptyKey(t *testing.T) {
	s := newTestStore(newFakeRecord(), nil)
	require.NoError(t, s.OnIdentityChange(context.Background(), domain.Guest()))

	_, err := s.Toggle(context.Background(), domain.Movie{Key: "  "})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestLoginShowsOnlyAccountSet(t *testing.T) {
	rec := newFakeRecord()
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("M1"), entry("M2")}
	s := newTestStore(rec, nil)
	ctx := context.Background()

	require.NoError(t, s.OnIdentityChange(ctx, domain.Guest()))
	_, _ = s.Toggle(ctx, movie("G1"))
	_, _ = s.Toggle(ctx, movie("M1"))

	require.NoError(t, s.OnIdentityChange(ctx, alice))

	assert.Equal(t, []string{"M1", "M2"}, entryKeys(s.ActiveSet()))
	assert.False(t, s.IsBookmarked("G1"))
	assert.Equal(t, alice, s.Identity())
	assert.Zero(t, rec.saveCount(alice.AccountID), "login does not write guest entries")
}

func TestLogoutEmptiesAndGuestTogglesStayLocal(t *testing.T) {
	rec := newFakeRecord()
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("M1")}
	s := newTestStore(rec, nil)
	ctx := context.Background()

	require.NoError(t, s.OnIdentityChange(ctx, alice))
	_, err := s.Toggle(ctx, movie("M2"))
	require.NoError(t, err)
	saves := rec.saveCount(alice.AccountID)

	require.NoError(t, s.OnIdentityChange(ctx, domain.Guest()))
	assert.Empty(t, s.ActiveSet())

	_, err = s.Toggle(ctx, movie("G1"))
	require.NoError(t, err)
	assert.True(t, s.IsBookmarked("G1"))

	assert.Equal(t, saves, rec.saveCount(alice.AccountID))
	assert.Equal(t, []string{"M1", "M2"}, rec.stored(alice.AccountID))
}

func TestFailedWriteKeepsVisibleSet(t *testing.T) {
	rec := newFakeRecord()
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("M1"), entry("M2")}
	s := newTestStore(rec, nil)
	ctx := context.Background()
	require.NoError(t, s.OnIdentityChange(ctx, alice))

	rec.setFailSave(true)
	set, err := s.Toggle(ctx, movie("M3"))

	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save", pe.Op)
	assert.Equal(t, alice.AccountID, pe.Account)
	assert.Equal(t, []string{"M1", "M2", "M3"}, entryKeys(set))
	assert.Equal(t, []string{"M1", "M2", "M3"}, entryKeys(s.ActiveSet()))
	assert.True(t, s.Dirty())
	assert.Equal(t, []string{"M1", "M2"}, rec.stored(alice.AccountID))

	rec.setFailSave(false)
	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())
	assert.Equal(t, []string{"M1", "M2", "M3"}, rec.stored(alice.AccountID))
}

func TestNextMutationRetriesFailedWrite(t *testing.T) {
	rec := newFakeRecord()
	s := newTestStore(rec, nil)
	ctx := context.Background()
	require.NoError(t, s.OnIdentityChange(ctx, alice))

	rec.setFailSave(true)
	_, err := s.Toggle(ctx, movie("M1"))
	require.Error(t, err)

	rec.setFailSave(false)
	_, err = s.Toggle(ctx, movie("M2"))
	require.NoError(t, err)

	assert.False(t, s.Dirty())
	assert.Equal(t, []string{"M1", "M2"}, rec.stored(alice.AccountID))

	// the stale failed snapshot must not overwrite the newer write
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, []string{"M1", "M2"}, rec.stored(alice.AccountID))
}

func TestLogoutFlushesPendingWrites(t *testing.T) {
	rec := newFakeRecord()
	s := newTestStore(rec, nil)
	ctx := context.Background()
	require.NoError(t, s.OnIdentityChange(ctx, alice))

	rec.setFailSave(true)
	_, _ = s.Toggle(ctx, movie("M1"))
	rec.setFailSave(false)

	require.NoError(t, s.OnIdentityChange(ctx, domain.Guest()))
	assert.Equal(t, []string{"M1"}, rec.stored(alice.AccountID))
	assert.False(t, s.Dirty())
}

func TestLoginFallsBackToMirror(t *testing.T) {
	rec := newFakeRecord()
	rec.failLoad = true
	mirror := &fakeMirror{sets: map[string][]domain.BookmarkEntry{
		alice.AccountID: {entry("M1")},
	}}
	s := newTestStore(rec, mirror)

	err := s.OnIdentityChange(context.Background(), alice)
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "load", pe.Op)

	assert.True(t, s.Ready())
	assert.Equal(t, []string{"M1"}, entryKeys(s.ActiveSet()))
}

func TestUnreadRecordIsNeverOverwritten(t *testing.T) {
	rec := newFakeRecord()
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("M1"), entry("M2")}
	rec.failLoad = true
	s := newTestStore(rec, nil)
	ctx := context.Background()

	err := s.OnIdentityChange(ctx, alice)
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, s.ActiveSet())
	assert.True(t, s.Dirty())

	set, err := s.Toggle(ctx, movie("M3"))
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"M3"}, entryKeys(set))
	assert.Zero(t, rec.saveCount(alice.AccountID))
	assert.Equal(t, []string{"M1", "M2"}, rec.stored(alice.AccountID))

	rec.setFailLoad(false)
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, []string{"M1", "M2", "M3"}, rec.stored(alice.AccountID))
	assert.Equal(t, []string{"M1", "M2", "M3"}, entryKeys(s.ActiveSet()))
	assert.False(t, s.Dirty())
}

func TestToggleAfterRecoveryMergesIntoRecord(t *testing.T) {
	rec := newFakeRecord()
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("M1"), entry("M2")}
	rec.failLoad = true
	s := newTestStore(rec, nil)
	ctx := context.Background()
	require.Error(t, s.OnIdentityChange(ctx, alice))

	rec.setFailLoad(false)
	set, err := s.Toggle(ctx, movie("M3"))
	require.NoError(t, err)

	assert.Equal(t, []string{"M1", "M2", "M3"}, entryKeys(set))
	assert.Equal(t, []string{"M1", "M2", "M3"}, rec.stored(alice.AccountID))
	assert.False(t, s.Dirty())
}

func TestReplayedRemovalOnMirroredSet(t *testing.T) {
	rec := newFakeRecord()
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("M1"), entry("M2")}
	rec.failLoad = true
	mirror := &fakeMirror{sets: map[string][]domain.BookmarkEntry{
		alice.AccountID: {entry("M1")},
	}}
	s := newTestStore(rec, mirror)
	ctx := context.Background()
	require.Error(t, s.OnIdentityChange(ctx, alice))

	_, err := s.Toggle(ctx, movie("M1"))
	require.Error(t, err)
	assert.Empty(t, s.ActiveSet())
	assert.Equal(t, []string{"M1", "M2"}, rec.stored(alice.AccountID))

	rec.setFailLoad(false)
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, []string{"M2"}, rec.stored(alice.AccountID))
	assert.Equal(t, []string{"M2"}, entryKeys(s.ActiveSet()))

	got, _ := mirror.LoadMirror(alice.AccountID)
	assert.Equal(t, []string{"M2"}, entryKeys(got))
}

func TestHeldTogglesSurviveLogout(t *testing.T) {
	rec := newFakeRecord()
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("M1"), entry("M2")}
	rec.failLoad = true
	s := newTestStore(rec, nil)
	ctx := context.Background()

	require.Error(t, s.OnIdentityChange(ctx, alice))
	_, _ = s.Toggle(ctx, movie("M3"))

	var pe *domain.PersistenceError
	require.ErrorAs(t, s.OnIdentityChange(ctx, domain.Guest()), &pe)
	assert.Zero(t, rec.saveCount(alice.AccountID))
	assert.True(t, s.Dirty())

	rec.setFailLoad(false)
	require.NoError(t, s.OnIdentityChange(ctx, alice))
	assert.Equal(t, []string{"M1", "M2", "M3"}, entryKeys(s.ActiveSet()))
	assert.Equal(t, []string{"M1", "M2", "M3"}, rec.stored(alice.AccountID))
	assert.False(t, s.Dirty())
}

func TestSlowWriteDoesNotBlockReads(t *testing.T) {
	rec := newFakeRecord()
	s := newTestStore(rec, nil)
	ctx := context.Background()
	require.NoError(t, s.OnIdentityChange(ctx, alice))

	gate := make(chan struct{})
	rec.mu.Lock()
	rec.saveGate = gate
	rec.mu.Unlock()

	toggled := make(chan error, 1)
	go func() {
		_, err := s.Toggle(ctx, movie("M1"))
		toggled <- err
	}()
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.saveCalls == 1
	}, time.Second, time.Millisecond)

	dirty := make(chan bool, 1)
	go func() { dirty <- s.Dirty() }()
	select {
	case d := <-dirty:
		assert.False(t, d)
	case <-time.After(time.Second):
		t.Fatal("Dirty blocked behind a durable write")
	}
	assert.True(t, s.IsBookmarked("M1"))

	close(gate)
	require.NoError(t, <-toggled)
	assert.Equal(t, []string{"M1"}, rec.stored(alice.AccountID))
}

func TestAccountSwitchDoesNotMerge(t *testing.T) {
	rec := newFakeRecord()
	bob := domain.Account("b@x.com", "Bob")
	rec.sets[alice.AccountID] = []domain.BookmarkEntry{entry("A1")}
	rec.sets[bob.AccountID] = []domain.BookmarkEntry{entry("B1")}
	s := newTestStore(rec, nil)
	ctx := context.Background()

	require.NoError(t, s.OnIdentityChange(ctx, alice))
	_, err := s.Toggle(ctx, movie("A2"))
	require.NoError(t, err)

	require.NoError(t, s.OnIdentityChange(ctx, bob))
	assert.Equal(t, []string{"B1"}, entryKeys(s.ActiveSet()))
	assert.Equal(t, []string{"A1", "A2"}, rec.stored(alice.AccountID))
	assert.Equal(t, []string{"B1"}, rec.stored(bob.AccountID))
}

func TestMirrorFollowsWrites(t *testing.T) {
	rec := newFakeRecord()
	mirror := &fakeMirror{sets: map[string][]domain.BookmarkEntry{}}
	s := newTestStore(rec, mirror)
	ctx := context.Background()
	require.NoError(t, s.OnIdentityChange(ctx, alice))

	_, err := s.Toggle(ctx, movie("M1"))
	require.NoError(t, err)

	got, ok := mirror.LoadMirror(alice.AccountID)
	require.True(t, ok)
	assert.Equal(t, []string{"M1"}, entryKeys(got))

	require.NoError(t, s.OnIdentityChange(ctx, domain.Guest()))
	_, _ = s.Toggle(ctx, movie("G1"))
	got, _ = mirror.LoadMirror(alice.AccountID)
	assert.Equal(t, []string{"M1"}, entryKeys(got), "guest toggles never reach the mirror")
}

func TestTransitionsAreSerializedAndCoalesced(t *testing.T) {
	rec := newFakeRecord()
	bob := domain.Account("b@x.com", "Bob")
	carol := domain.Account("c@x.com", "Carol")
	rec.sets[carol.AccountID] = []domain.BookmarkEntry{entry("C1")}
	gate := make(chan struct{})
	rec.loadGate = gate
	s := newTestStore(rec, nil)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- s.OnIdentityChange(ctx, alice) }()
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.loadCalls == 1
	}, time.Second, time.Millisecond)

	second := make(chan error, 1)
	third := make(chan error, 1)
	go func() { second <- s.OnIdentityChange(ctx, bob) }()
	require.Eventually(t, func() bool { return s.transSeq.Load() == 2 }, time.Second, time.Millisecond)
	go func() { third <- s.OnIdentityChange(ctx, carol) }()
	require.Eventually(t, func() bool { return s.transSeq.Load() == 3 }, time.Second, time.Millisecond)

	_, err := s.Toggle(ctx, movie("X"))
	assert.ErrorIs(t, err, domain.ErrIdentityNotReady)

	close(gate)
	require.NoError(t, <-first)
	assert.ErrorIs(t, <-second, ErrTransitionSuperseded)
	require.NoError(t, <-third)

	assert.Equal(t, carol, s.Identity())
	assert.Equal(t, []string{"C1"}, entryKeys(s.ActiveSet()))
	assert.True(t, s.Ready())
}

func TestConcurrentTogglesAlternate(t *testing.T) {
	s := newTestStore(newFakeRecord(), nil)
	ctx := context.Background()
	require.NoError(t, s.OnIdentityChange(ctx, alice))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Toggle(ctx, movie("tt1"))
		}()
	}
	wg.Wait()

	assert.False(t, s.IsBookmarked("tt1"), "an even number of toggles leaves the key absent")
	assert.Empty(t, s.ActiveSet())
}
