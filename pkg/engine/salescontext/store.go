package salescontext

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Backend is the compare-and-swap abstraction behind the store. Read
// returns (nil, 0, nil) when no row exists. WriteIfVersion persists
// next only when the stored version still equals expected, reporting
// whether the swap won. The in-memory backend below serves tests; the
// Postgres row implementation lives in pkg/store/postgres.
type Backend interface {
	Read(ctx context.Context, sessionID string) (*IntelligenceContext, int64, error)
	WriteIfVersion(ctx context.Context, sessionID string, expected int64, next *IntelligenceContext) (bool, error)
}

// VersionConflictError reports a lost optimistic-concurrency race. It
// carries the current context so the caller can re-apply its mutation
// against the fresh version. Never surfaced to clients.
type VersionConflictError struct {
	SessionID string
	Expected  int64
	Current   *IntelligenceContext
}

func (e *VersionConflictError) Error() string {
	current := int64(-1)
	if e.Current != nil {
		current = e.Current.Version
	}
	return fmt.Sprintf("version conflict for session %s: expected %d, current %d", e.SessionID, e.Expected, current)
}

// Mutation edits a private copy of the context. It must not retain the
// pointer past the call.
type Mutation func(*IntelligenceContext)

type Config struct {
	// CacheTTL bounds how long a cached read is served without
	// consulting the backend. Zero or negative disables caching.
	CacheTTL time.Duration
	// StaleAfter is the independent staleness window used by callers
	// via IntelligenceContext.StaleSince. Kept separate from CacheTTL
	// on purpose; the two have no derivation relationship.
	StaleAfter time.Duration
}

// Store is the authoritative in-process map from sessionID to
// IntelligenceContext. Access is serialized per session, not globally,
// so unrelated sessions never contend on one lock.
type Store struct {
	cfg     Config
	backend Backend
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*storeEntry
}

type storeEntry struct {
	mu       sync.Mutex
	current  *IntelligenceContext
	loadedAt time.Time
}

func NewStore(backend Backend, cfg Config) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{
		cfg:     cfg,
		backend: backend,
		now:     time.Now,
		entries: make(map[string]*storeEntry),
	}
}

// SetNow overrides the clock. Test hook.
func (s *Store) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) entry(sessionID string) *storeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		e = &storeEntry{}
		s.entries[sessionID] = e
	}
	return e
}

// Get returns the context for a session, or nil when none exists yet.
// A cached copy older than CacheTTL is treated as a miss and refreshed
// from the backend.
func (s *Store) Get(ctx context.Context, sessionID string) (*IntelligenceContext, error) {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := s.freshLocked(ctx, e, sessionID)
	if err != nil {
		return nil, err
	}
	return current.Clone(), nil
}

// freshLocked returns the cached context when inside the TTL window,
// otherwise re-reads from the backend and re-primes the cache. Caller
// holds the entry lock.
func (s *Store) freshLocked(ctx context.Context, e *storeEntry, sessionID string) (*IntelligenceContext, error) {
	if e.current != nil && s.cfg.CacheTTL > 0 && s.now().Sub(e.loadedAt) < s.cfg.CacheTTL {
		return e.current, nil
	}
	loaded, version, err := s.backend.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		e.current = nil
		e.loadedAt = s.now()
		return nil, nil
	}
	loaded = loaded.Clone()
	loaded.Version = version
	e.current = loaded
	e.loadedAt = s.now()
	return e.current, nil
}

// UpdateWithVersionCheck applies mutation to a fresh copy of the
// session's context only when the stored version equals expected. On
// success the version is incremented, lastUpdated stamped, and the new
// context returned. On a stale expected version it returns the current
// context together with a *VersionConflictError so the caller can
// retry against the fresh version. It never merges concurrent writes.
//
// A session with no context yet is created lazily when expected is 0.
func (s *Store) UpdateWithVersionCheck(ctx context.Context, sessionID string, expected int64, mutation Mutation) (*IntelligenceContext, error) {
	if mutation == nil {
		return nil, fmt.Errorf("mutation is required")
	}
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := s.freshLocked(ctx, e, sessionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		if expected != 0 {
			return nil, &VersionConflictError{SessionID: sessionID, Expected: expected, Current: nil}
		}
		current = New(sessionID)
	}
	if current.Version != expected {
		return current.Clone(), &VersionConflictError{SessionID: sessionID, Expected: expected, Current: current.Clone()}
	}

	next := current.Clone()
	mutation(next)
	next.SessionID = sessionID
	next.Version = expected + 1
	next.LastUpdated = s.now()

	ok, err := s.backend.WriteIfVersion(ctx, sessionID, expected, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race at the backend. Refresh and report the winner.
		e.current = nil
		refreshed, rerr := s.freshLocked(ctx, e, sessionID)
		if rerr != nil {
			return nil, rerr
		}
		return refreshed.Clone(), &VersionConflictError{SessionID: sessionID, Expected: expected, Current: refreshed.Clone()}
	}

	e.current = next
	e.loadedAt = s.now()
	return next.Clone(), nil
}

// Invalidate drops the cached copy for one session. The backend row is
// untouched; the next Get re-reads it.
func (s *Store) Invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// Clear drops every cached entry. Used on shutdown and for test
// isolation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*storeEntry)
}

// MemoryBackend is the in-memory Backend used by tests and by
// deployments that keep conversation state process-local.
type MemoryBackend struct {
	mu   sync.Mutex
	rows map[string]*IntelligenceContext
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: make(map[string]*IntelligenceContext)}
}

func (b *MemoryBackend) Read(_ context.Context, sessionID string) (*IntelligenceContext, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[sessionID]
	if !ok {
		return nil, 0, nil
	}
	return row.Clone(), row.Version, nil
}

func (b *MemoryBackend) WriteIfVersion(_ context.Context, sessionID string, expected int64, next *IntelligenceContext) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[sessionID]
	if !ok {
		if expected != 0 {
			return false, nil
		}
		b.rows[sessionID] = next.Clone()
		return true, nil
	}
	if row.Version != expected {
		return false, nil
	}
	b.rows[sessionID] = next.Clone()
	return true, nil
}

// Delete removes a row. Test helper.
func (b *MemoryBackend) Delete(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rows, sessionID)
}
