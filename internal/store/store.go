package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fitcoach/fitcoach-server/internal/domain"
	"github.com/fitcoach/fitcoach-server/internal/normalize"
)

// Partition names.
const (
	PartitionHistory   = "history"
	PartitionAnalytics = "analytics"
	PartitionProfile   = "profile"
	PartitionExercise  = "exercise"
)

// History index names.
const (
	IndexTimestamp = "timestamp"
	IndexQuery     = "query"
)

// globalScope holds data that is not owned by a profile.
const globalScope = "global"

// Handle holds the two named collections of one profile.
// It is opened once per profile by Store.Handle and reused afterwards.
type Handle struct {
	Scope     string
	Keyer     normalize.QueryKeyer // keys the query index and the analytics partition
	History   *Collection[domain.SearchHistoryEntry]
	Analytics *Collection[domain.AnalyticsRecord]
}

// OpenHandle binds the history and analytics collections of scope.
// History is indexed by timestamp and by normalized query key.
func OpenHandle(kv KV, scope string, keyer normalize.QueryKeyer) (*Handle, error) {
	if err := validScope(scope); err != nil {
		return nil, err
	}

	history := NewCollection[domain.SearchHistoryEntry](kv, PartitionHistory, scope).
		WithIndex(IndexTimestamp, func(e *domain.SearchHistoryEntry) []string {
			return []string{domain.FormatTimestampKey(e.Timestamp)}
		}).
		WithIndex(IndexQuery, func(e *domain.SearchHistoryEntry) []string {
			return []string{keyer.Key(e.Query)}
		})

	return &Handle{
		Scope:     scope,
		Keyer:     keyer,
		History:   history,
		Analytics: NewCollection[domain.AnalyticsRecord](kv, PartitionAnalytics, scope),
	}, nil
}

// Clear empties both partitions of the handle.
func (h *Handle) Clear(ctx context.Context) error {
	if err := h.History.Clear(ctx); err != nil {
		return err
	}
	return h.Analytics.Clear(ctx)
}

// Store owns a KV engine and the collections built on it.
type Store struct {
	kv     KV
	keyer  normalize.QueryKeyer
	logger *slog.Logger

	Profiles  *Collection[domain.Profile]
	Exercises *Collection[domain.Exercise]

	mu      sync.Mutex
	handles map[string]*Handle
}

// Option configures a Store.
type Option func(*Store)

// WithQueryKeyer sets how history queries are keyed in the query index.
func WithQueryKeyer(k normalize.QueryKeyer) Option {
	return func(s *Store) { s.keyer = k }
}

// New creates a Store on top of kv. The Store takes ownership of kv.
func New(kv KV, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		kv:        kv,
		keyer:     normalize.DefaultQueryKeyer,
		logger:    logger,
		Profiles:  NewCollection[domain.Profile](kv, PartitionProfile, globalScope),
		Exercises: NewCollection[domain.Exercise](kv, PartitionExercise, globalScope),
		handles:   make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KV returns the underlying engine.
func (s *Store) KV() KV { return s.kv }

// Handle returns the handle of scope, opening it on first use.
func (s *Store) Handle(scope string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[scope]; ok {
		return h, nil
	}

	h, err := OpenHandle(s.kv, scope, s.keyer)
	if err != nil {
		return nil, err
	}
	s.handles[scope] = h
	return h, nil
}

// DropScope deletes all history and analytics of scope and forgets its handle.
func (s *Store) DropScope(ctx context.Context, scope string) error {
	h, err := s.Handle(scope)
	if err != nil {
		return err
	}
	if err := h.Clear(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.handles, scope)
	s.mu.Unlock()
	return nil
}

// Ping runs an empty read transaction to check that the engine is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.View(ctx, func(Txn) error { return nil })
}

// Close closes the underlying engine.
func (s *Store) Close() error {
	s.logger.Info("Closing store")
	return s.kv.Close()
}
