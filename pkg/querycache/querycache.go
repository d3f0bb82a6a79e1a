// Package querycache is a write-through cache for read models. Entries are JSON payloads
// keyed by scope strings (for example "shifts:store:<id>:<filters>") and matched by glob
// patterns. Reads refresh stale entries through the retry policy; writes apply an optimistic
// rewrite, reconcile with the committed row, roll back on failure and always mark the affected
// scopes stale once they settle.
package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/pkg/retry"
)

// Entry is one cached payload.
type Entry struct {
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
	Stale     bool            `json:"stale"`
}

// Backend persists entries. Get reports ok=false on a miss.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Observer receives cache lookup and write timings.
type Observer interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// Store coordinates a backend with the read retry policy.
type Store struct {
	backend  Backend
	policy   retry.Policy
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithRetryPolicy sets the policy used by Fetch.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithObserver attaches metrics.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		policy:  retry.DefaultPolicy(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fresh reports whether e can be served without refetching.
func (e Entry) Fresh(now time.Time, staleTime time.Duration) bool {
	return !e.Stale && now.Sub(e.UpdatedAt) < staleTime
}

// Fetch returns the cached value for key when it is fresh, otherwise it runs fetcher under the
// retry policy and caches the result. Cache failures degrade to a direct fetch.
func Fetch[T any](ctx context.Context, s *Store, key string, staleTime time.Duration, fetcher func(context.Context) (T, error)) (T, error) {
	if s == nil || s.backend == nil {
		return retry.Do(ctx, retry.DefaultPolicy(), fetcher)
	}

	start := time.Now()
	entry, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("query cache get failed", zap.String("key", key), zap.Error(err))
	}
	if ok && entry.Fresh(s.now(), staleTime) {
		var cached T
		if err := json.Unmarshal(entry.Payload, &cached); err == nil {
			s.observe(true, time.Since(start))
			return cached, nil
		}
		s.logger.Warn("query cache payload undecodable", zap.String("key", key))
	}
	s.observe(false, time.Since(start))

	value, err := retry.Do(ctx, s.policy, fetcher)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := s.put(ctx, key, value); err != nil {
		s.logger.Warn("query cache set failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// Mutation describes a write against cached collections of type C producing a row of type R.
type Mutation[C any, R any] struct {
	// Keys are glob patterns selecting the cached collections to rewrite.
	Keys []string
	// Scopes are glob patterns marked stale after the mutation settles.
	Scopes []string
	// Optimistic rewrites a cached collection before Commit runs. Optional.
	Optimistic func(key string, current C) C
	// Commit performs the write. It is called exactly once.
	Commit func(ctx context.Context) (R, error)
	// Reconcile folds the committed row into the cached collection, which at this point still
	// holds the optimistic rewrite. Optional.
	Reconcile func(key string, current C, row R) C
}

type snapshot struct {
	key   string
	entry Entry
}

// Mutate runs m. On error every rewritten entry is restored to its exact pre-mutation state.
// Concurrent mutations of the same key are not serialised; the last one to settle wins.
func Mutate[C any, R any](ctx context.Context, s *Store, m Mutation[C, R]) (R, error) {
	if m.Commit == nil {
		var zero R
		return zero, fmt.Errorf("querycache: mutation without commit")
	}
	if s == nil || s.backend == nil {
		return m.Commit(ctx)
	}

	settleCtx := context.WithoutCancel(ctx)
	defer s.Invalidate(settleCtx, m.Scopes...)

	snapshots := s.snapshot(ctx, m.Keys)

	if m.Optimistic != nil {
		for _, snap := range snapshots {
			var current C
			if err := json.Unmarshal(snap.entry.Payload, &current); err != nil {
				continue
			}
			next := m.Optimistic(snap.key, current)
			if err := s.write(ctx, snap.key, next, snap.entry.Stale); err != nil {
				s.logger.Warn("query cache optimistic write failed", zap.String("key", snap.key), zap.Error(err))
			}
		}
	}

	row, err := m.Commit(ctx)
	if err != nil {
		for _, snap := range snapshots {
			if rbErr := s.backend.Set(settleCtx, snap.key, snap.entry); rbErr != nil {
				s.logger.Warn("query cache rollback failed", zap.String("key", snap.key), zap.Error(rbErr))
			}
		}
		return row, err
	}

	if m.Reconcile != nil {
		for _, snap := range snapshots {
			entry, ok, getErr := s.backend.Get(settleCtx, snap.key)
			if getErr != nil || !ok {
				continue
			}
			var current C
			if err := json.Unmarshal(entry.Payload, &current); err != nil {
				continue
			}
			next := m.Reconcile(snap.key, current, row)
			if err := s.write(settleCtx, snap.key, next, entry.Stale); err != nil {
				s.logger.Warn("query cache reconcile failed", zap.String("key", snap.key), zap.Error(err))
			}
		}
	}

	return row, nil
}

// Invalidate marks every entry matching the patterns stale. Failures are logged, never returned.
func (s *Store) Invalidate(ctx context.Context, patterns ...string) {
	if s == nil || s.backend == nil {
		return
	}
	for _, pattern := range patterns {
		keys, err := s.backend.Keys(ctx, pattern)
		if err != nil {
			s.logger.Warn("query cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		for _, key := range keys {
			entry, ok, err := s.backend.Get(ctx, key)
			if err != nil || !ok || entry.Stale {
				continue
			}
			entry.Stale = true
			if err := s.backend.Set(ctx, key, entry); err != nil {
				s.logger.Warn("query cache mark stale failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

// Peek returns the raw entry for key, mainly for diagnostics and tests.
func (s *Store) Peek(ctx context.Context, key string) (Entry, bool, error) {
	return s.backend.Get(ctx, key)
}

func (s *Store) snapshot(ctx context.Context, patterns []string) []snapshot {
	seen := make(map[string]struct{})
	var out []snapshot
	for _, pattern := range patterns {
		keys, err := s.backend.Keys(ctx, pattern)
		if err != nil {
			s.logger.Warn("query cache scan failed", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entry, ok, err := s.backend.Get(ctx, key)
			if err != nil || !ok {
				continue
			}
			out = append(out, snapshot{key: key, entry: entry})
		}
	}
	return out
}

func (s *Store) put(ctx context.Context, key string, value interface{}) error {
	return s.write(ctx, key, value, false)
}

func (s *Store) write(ctx context.Context, key string, value interface{}, stale bool) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	start := time.Now()
	err = s.backend.Set(ctx, key, Entry{Payload: payload, UpdatedAt: s.now(), Stale: stale})
	if s.observer != nil {
		s.observer.ObserveCacheWrite(time.Since(start))
	}
	return err
}

func (s *Store) observe(hit bool, d time.Duration) {
	if s.observer != nil {
		s.observer.RecordCacheOperation(hit, d)
	}
}
