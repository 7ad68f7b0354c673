package bookmarks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/index"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

var (
	// ErrTransitionSuperseded is returned by an identity transition that was
	// dropped because a newer one was requested before it could start.
	ErrTransitionSuperseded = errors.New("identity transition superseded")

	// ErrEmptyKey is returned when toggling a movie without a catalog key.
	ErrEmptyKey = errors.New("movie has no catalog key")

	errRecordNotLoaded = errors.New("durable record not loaded yet")
)

// Record is the durable per-account bookmark record.
type Record interface {
	LoadBookmarks(ctx context.Context, accountID string) ([]domain.BookmarkEntry, error)
	SaveBookmarks(ctx context.Context, accountID string, entries []domain.BookmarkEntry) error
}

// Mirror is the local copy of account sets used for fast reads and as a
// fallback when the durable record cannot be read.
type Mirror interface {
	LoadMirror(accountID string) ([]domain.BookmarkEntry, bool)
	SaveMirror(accountID string, entries []domain.BookmarkEntry) error
}

// Options tunes durable writes.
type Options struct {
	Retries    uint          // attempts per durable call, at least 1
	RetryDelay time.Duration // initial delay between attempts
	Now        func() time.Time
}

// snapshot is one durable write: a full set for one account at a version.
type snapshot struct {
	account string
	version uint64
	entries []domain.BookmarkEntry
}

// toggleOp is one local toggle made while the durable record of its account
// could not be read. It is replayed onto the record once it loads.
type toggleOp struct {
	entry domain.BookmarkEntry
	added bool
}

// Store owns the bookmark set of the active identity.
//
// Reads are snapshots. Writes only go through Toggle and OnIdentityChange.
// Guest sets never leave memory; account sets are written through to the
// durable record and mirrored locally.
type Store struct {
	// ─────────────────────────────────────────────
	// Active set (guarded by mu)
	// ─────────────────────────────────────────────
	mu       sync.RWMutex
	identity domain.Identity
	set      *index.BookmarkSet
	resolved bool   // an identity has been installed at least once
	ready    bool   // false while unresolved or during a transition
	version  uint64 // bumped on every account mutation

	// account -> toggles made since a failed durable read. An account listed
	// here is never written until its record has been read back.
	unsynced map[string][]toggleOp

	// ─────────────────────────────────────────────
	// Durable writes (guarded by writeMu)
	// ─────────────────────────────────────────────
	writeMu sync.Mutex
	written map[string]uint64    // account -> last version stored
	pending map[string]*snapshot // account -> newest failed write

	// ─────────────────────────────────────────────
	// Transitions
	// ─────────────────────────────────────────────
	transMu  sync.Mutex
	transSeq atomic.Uint64

	record Record
	mirror Mirror
	logger logger.Logger

	retries    uint
	retryDelay time.Duration
	now        func() time.Time
}

// NewStore creates a store with no resolved identity.
// mirror may be nil.
func NewStore(record Record, mirror Mirror, opts Options, log logger.Logger) *Store {
	if opts.Retries == 0 {
		opts.Retries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		identity:   domain.Guest(),
		set:        index.NewBookmarkSet(),
		written:    make(map[string]uint64),
		pending:    make(map[string]*snapshot),
		unsynced:   make(map[string][]toggleOp),
		record:     record,
		mirror:     mirror,
		logger:     log,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		now:        opts.Now,
	}
}

// ─────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────

// IsBookmarked reports whether key is in the active set.
func (s *Store) IsBookmarked(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Contains(key)
}

// ActiveSet returns the active entries in insertion order.
func (s *Store) ActiveSet() []domain.BookmarkEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Entries()
}

// Identity returns the identity owning the active set.
func (s *Store) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Ready reports whether toggles are currently accepted.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Dirty reports whether local changes are not yet in the durable record:
// a failed write waiting for a retry, or an account whose record could not
// be read.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	unsynced := len(s.unsynced) > 0
	s.mu.RUnlock()
	if unsynced {
		return true
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return len(s.pending) > 0
}

// ─────────────────────────────────────────────
// Mutation
// ─────────────────────────────────────────────

// Toggle removes movie from the active set if present, otherwise adds it.
//
// The in-memory change is applied before anything is persisted and is never
// rolled back. The returned set is always the new active set; a failed
// durable write is reported as a *domain.PersistenceError next to it.
func (s *Store) Toggle(ctx context.Context, movie domain.Movie) ([]domain.BookmarkEntry, error) {
	movie.Key = strings.TrimSpace(movie.Key)
	if movie.Key == "" {
		return s.ActiveSet(), ErrEmptyKey
	}

	s.mu.Lock()
	if !s.ready {
		entries := s.set.Entries()
		s.mu.Unlock()
		return entries, domain.ErrIdentityNotReady
	}

	at := s.now()
	added := s.set.Toggle(movie, at)
	entries := s.set.Entries()
	id := s.identity

	var snap *snapshot
	unsynced := false
	if id.IsAccount() {
		s.version++
		snap = &snapshot{account: id.AccountID, version: s.version, entries: s.set.Entries()}
		if ops, ok := s.unsynced[id.AccountID]; ok {
			s.unsynced[id.AccountID] = append(ops, toggleOp{
				entry: domain.BookmarkEntry{Movie: movie, AddedAt: at},
				added: added,
			})
			unsynced = true
		}
	}
	s.mu.Unlock()

	s.logger.Debug("bookmark toggled",
		logger.String("identity", id.String()),
		logger.String("key", movie.Key),
		logger.Bool("added", added),
		logger.Int("size", len(entries)))

	if snap == nil {
		return entries, nil
	}
	if unsynced {
		s.saveMirror(snap.account, snap.entries)
		// A running transition reconciles the outgoing account itself.
		if !s.transMu.TryLock() {
			return entries, &domain.PersistenceError{Op: "save", Account: snap.account, Err: errRecordNotLoaded}
		}
		err := s.reconcile(ctx, snap.account)
		s.transMu.Unlock()
		return s.ActiveSet(), err
	}
	if err := s.persist(ctx, snap); err != nil {
		return entries, err
	}
	return entries, nil
}

// Flush reconciles accounts whose record could not be read, then retries
// every pending durable write.
func (s *Store) Flush(ctx context.Context) error {
	var errs []error

	s.mu.RLock()
	accounts := make([]string, 0, len(s.unsynced))
	for account := range s.unsynced {
		accounts = append(accounts, account)
	}
	s.mu.RUnlock()

	if len(accounts) > 0 {
		s.transMu.Lock()
		for _, account := range accounts {
			if err := s.reconcile(ctx, account); err != nil {
				errs = append(errs, err)
			}
		}
		s.transMu.Unlock()
	}

	s.writeMu.Lock()
	snaps := make([]*snapshot, 0, len(s.pending))
	for _, snap := range s.pending {
		snaps = append(snaps, snap)
	}
	s.writeMu.Unlock()

	for _, snap := range snaps {
		if err := s.persist(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flushAccount reconciles one account and retries its pending write, if any.
// The caller holds transMu.
func (s *Store) flushAccount(ctx context.Context, account string) error {
	if err := s.reconcile(ctx, account); err != nil {
		return err
	}

	s.writeMu.Lock()
	snap := s.pending[account]
	s.writeMu.Unlock()

	if snap == nil {
		return nil
	}
	return s.persist(ctx, snap)
}

// persist writes snap to the mirror and the durable record.
// A snapshot older than the last stored version of its account is dropped.
// writeMu is not held while the record is called.
func (s *Store) persist(ctx context.Context, snap *snapshot) error {
	if s.superseded(snap) {
		return nil
	}

	s.saveMirror(snap.account, snap.entries)

	err := retry.Do(
		func() error {
			return s.record.SaveBookmarks(ctx, snap.account, snap.entries)
		},
		retry.Context(ctx),
		retry.Attempts(s.retries),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err != nil {
		if snap.version <= s.written[snap.account] {
			// a newer write landed meanwhile
			return nil
		}
		if p := s.pending[snap.account]; p == nil || p.version < snap.version {
			s.pending[snap.account] = snap
		}
		s.logger.Warn("durable bookmark write failed, will retry",
			logger.String("account", snap.account),
			logger.Int64("version", int64(snap.version)),
			logger.Error(err))
		return &domain.PersistenceError{Op: "save", Account: snap.account, Err: err}
	}

	if snap.version > s.written[snap.account] {
		s.written[snap.account] = snap.version
	}
	if p := s.pending[snap.account]; p != nil && p.version <= s.written[snap.account] {
		delete(s.pending, snap.account)
	}
	return nil
}

// superseded reports whether a newer version of the account is already
// stored, dropping a pending snapshot made obsolete by it.
func (s *Store) superseded(snap *snapshot) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if snap.version > s.written[snap.account] {
		return false
	}
	if p := s.pending[snap.account]; p != nil && p.version <= s.written[snap.account] {
		delete(s.pending, snap.account)
	}
	return true
}

func (s *Store) saveMirror(account string, entries []domain.BookmarkEntry) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SaveMirror(account, entries); err != nil {
		s.logger.Warn("failed to update local bookmark mirror",
			logger.String("account", account),
			logger.Error(err))
	}
}

// reconcile reads back the durable record of an unsynced account, replays
// the local toggles onto it and writes the result. The caller holds transMu.
func (s *Store) reconcile(ctx context.Context, account string) error {
	s.mu.RLock()
	_, ok := s.unsynced[account]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	durable, err := s.readRecord(ctx, account)
	if err != nil {
		s.logger.Warn("durable bookmark record still unreadable, holding local changes",
			logger.String("account", account),
			logger.Error(err))
		return &domain.PersistenceError{Op: "load", Account: account, Err: err}
	}

	s.mu.Lock()
	ops, ok := s.unsynced[account]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.unsynced, account)
	merged := replay(durable, ops)
	if s.identity.IsAccount() && s.identity.AccountID == account {
		s.set = merged
	}
	s.version++
	snap := &snapshot{account: account, version: s.version, entries: merged.Entries()}
	s.mu.Unlock()

	s.logger.Info("durable bookmark record reloaded, local changes replayed",
		logger.String("account", account),
		logger.Int("replayed", len(ops)),
		logger.Int("count", len(snap.entries)))

	if len(ops) == 0 {
		s.saveMirror(account, snap.entries)
		return nil
	}
	return s.persist(ctx, snap)
}

// replay applies ops in order onto the durable entries. An add keeps an
// entry already present; a remove of an absent key is a no-op.
func replay(durable []domain.BookmarkEntry, ops []toggleOp) *index.BookmarkSet {
	set := index.NewBookmarkSetFrom(durable)
	for _, op := range ops {
		key := op.entry.Key()
		switch {
		case op.added && !set.Contains(key):
			set.Toggle(op.entry.Movie, op.entry.AddedAt)
		case !op.added:
			set.Remove(key)
		}
	}
	return set
}

// ─────────────────────────────────────────────
// Identity transitions
// ─────────────────────────────────────────────

// OnIdentityChange installs the bookmark set of next.
//
// Login loads the account set from the durable record and discards the
// guest set. Logout flushes pending writes of the outgoing account and
// resets to an empty guest set. Switching accounts is a logout followed by
// a login. Transitions run one at a time; a transition still waiting when a
// newer one arrives is dropped with ErrTransitionSuperseded.
//
// A load failure is reported as a *domain.PersistenceError, the transition
// still completes using the local mirror (or an empty set). Such a set is
// never written back as is: toggles on it are held locally until the record
// can be read and they are replayed onto it.
func (s *Store) OnIdentityChange(ctx context.Context, next domain.Identity) error {
	seq := s.transSeq.Add(1)

	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()

	s.transMu.Lock()
	defer s.transMu.Unlock()

	if s.transSeq.Load() != seq {
		s.logger.Debug("identity transition superseded", logger.String("to", next.String()))
		return ErrTransitionSuperseded
	}

	s.mu.RLock()
	current, resolved, set := s.identity, s.resolved, s.set
	s.mu.RUnlock()

	var result error
	loadFailed := false

	switch {
	case resolved && current.Same(next):
		// same owner, keep the active set

	case next.IsGuest():
		if resolved && current.IsAccount() {
			if err := s.flushAccount(ctx, current.AccountID); err != nil {
				result = err
			}
			s.logger.Info("logged out, bookmarks reset to guest set",
				logger.String("account", current.AccountID))
		}
		set = index.NewBookmarkSet()

	default:
		if resolved && current.IsAccount() {
			if err := s.flushAccount(ctx, current.AccountID); err != nil {
				s.logger.Warn("pending writes of previous account not flushed",
					logger.String("account", current.AccountID),
					logger.Error(err))
			}
		}
		entries, err := s.load(ctx, next.AccountID)
		if err != nil {
			result = err
		}
		set = index.NewBookmarkSetFrom(entries)
		loadFailed = err != nil
		s.logger.Info("logged in, account bookmarks loaded",
			logger.String("account", next.AccountID),
			logger.Int("count", set.Len()))
	}

	s.mu.Lock()
	if loadFailed {
		if _, ok := s.unsynced[next.AccountID]; !ok {
			s.unsynced[next.AccountID] = nil
		}
	}
	s.identity = next
	s.set = set
	s.resolved = true
	if s.transSeq.Load() == seq {
		s.ready = true
	}
	s.mu.Unlock()

	if next.IsAccount() && !loadFailed {
		// toggles held from an earlier unreadable session of this account
		if err := s.reconcile(ctx, next.AccountID); err != nil && result == nil {
			result = err
		}
	}

	return result
}

// load reads the account set. A newer locally pending write wins over the
// durable record; on read failure the local mirror is used.
func (s *Store) load(ctx context.Context, account string) ([]domain.BookmarkEntry, error) {
	s.writeMu.Lock()
	pending := s.pending[account]
	s.writeMu.Unlock()

	if pending != nil {
		s.logger.Info("using unsynced local bookmarks",
			logger.String("account", account),
			logger.Int64("version", int64(pending.version)))
		return pending.entries, nil
	}

	entries, err := s.readRecord(ctx, account)
	if err != nil {
		var mirrored []domain.BookmarkEntry
		if s.mirror != nil {
			if m, ok := s.mirror.LoadMirror(account); ok {
				mirrored = m
			}
		}
		s.logger.Warn("durable bookmark read failed, using local mirror",
			logger.String("account", account),
			logger.Int("mirrored", len(mirrored)),
			logger.Error(err))
		return mirrored, &domain.PersistenceError{Op: "load", Account: account, Err: err}
	}

	s.saveMirror(account, entries)
	return entries, nil
}

func (s *Store) readRecord(ctx context.Context, account string) ([]domain.BookmarkEntry, error) {
	return retry.DoWithData(
		func() ([]domain.BookmarkEntry, error) {
			return s.record.LoadBookmarks(ctx, account)
		},
		retry.Context(ctx),
		retry.Attempts(s.retries),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
