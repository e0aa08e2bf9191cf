package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/gatehouse/internal/platform/db"
)

// Record is the persisted per-key window state. Count never exceeds the
// configured maximum without the caller observing a rejection, and
// WindowStart only ever moves forward.
type Record struct {
	Key         string
	Count       int
	WindowStart time.Time
}

// RecordStore gives the limiter atomic per-key access to records. Update
// must run fn exclusively with respect to concurrent updates on the same
// key; that exclusivity is the limiter's central correctness property.
type RecordStore interface {
	// Update passes the current record (nil when the key is unseen) to fn
	// and persists the returned state. An error from fn aborts the update
	// and propagates unchanged.
	Update(ctx context.Context, key string, fn func(rec *Record) (Record, error)) error
	// Get returns the record for key, or nil when absent.
	Get(ctx context.Context, key string) (*Record, error)
	// Reset removes the record for key. Operator action only; the limiter
	// itself never deletes records.
	Reset(ctx context.Context, key string) error
}

const (
	pgUniqueViolation    = "23505"
	pgSerializationError = "40001"
	storeUpdateAttempts  = 3
)

// PGStore persists records in the rate_limits table. Per-key atomicity comes
// from SELECT ... FOR UPDATE inside a transaction; first-insert races
// surface as unique violations and are retried.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Update implements RecordStore.
func (s *PGStore) Update(ctx context.Context, key string, fn func(rec *Record) (Record, error)) error {
	var lastErr error
	for attempt := 0; attempt < storeUpdateAttempts; attempt++ {
		err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			rec, err := lockRecord(ctx, tx, key)
			if err != nil {
				return err
			}
			next, err := fn(rec)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO rate_limits (key, count, window_start)
				VALUES ($1, $2, $3)
				ON CONFLICT (key) DO UPDATE SET count = EXCLUDED.count, window_start = EXCLUDED.window_start`,
				next.Key, next.Count, next.WindowStart)
			return err
		})
		if err == nil {
			return nil
		}
		if !retryablePGError(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Get implements RecordStore.
func (s *PGStore) Get(ctx context.Context, key string) (*Record, error) {
	rec := Record{Key: key}
	err := s.pool.QueryRow(ctx, `SELECT count, window_start FROM rate_limits WHERE key = $1`, key).
		Scan(&rec.Count, &rec.WindowStart)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Reset implements RecordStore.
func (s *PGStore) Reset(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rate_limits WHERE key = $1`, key)
	return err
}

func lockRecord(ctx context.Context, tx pgx.Tx, key string) (*Record, error) {
	rec := Record{Key: key}
	err := tx.QueryRow(ctx, `SELECT count, window_start FROM rate_limits WHERE key = $1 FOR UPDATE`, key).
		Scan(&rec.Count, &rec.WindowStart)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func retryablePGError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation || pgErr.Code == pgSerializationError
	}
	return false
}

// MemoryStore keeps records in process memory behind a per-key mutex. It is
// injected, never global, so service instances and tests stay isolated.
// Suitable for tests and single-instance deployments only.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	recs  map[string]Record
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]*sync.Mutex),
		recs:  make(map[string]Record),
	}
}

func (s *MemoryStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// Update implements RecordStore with single-writer-per-key semantics.
func (s *MemoryStore) Update(ctx context.Context, key string, fn func(rec *Record) (Record, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	var current *Record
	s.mu.Lock()
	if rec, ok := s.recs[key]; ok {
		clone := rec
		current = &clone
	}
	s.mu.Unlock()

	next, err := fn(current)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.recs[key] = next
	s.mu.Unlock()
	return nil
}

// Get implements RecordStore.
func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[key]; ok {
		clone := rec
		return &clone, nil
	}
	return nil, nil
}

// Reset implements RecordStore.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, key)
	return nil
}
