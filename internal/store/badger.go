package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const (
	// maxConflictRetries bounds how often a conflicting commit is re-run.
	maxConflictRetries = 10

	// sequenceBandwidth is how many sequence values are leased per disk write.
	sequenceBandwidth = 64

	sequencePrefix = "\x00seq/"
)

// BadgerOptions configures a Badger-backed KV.
type BadgerOptions struct {
	Path     string       // Directory for the database files; ignored when InMemory
	InMemory bool         // Keep everything in memory (tests)
	Logger   *slog.Logger // Uses discard if nil
}

// BadgerKV is a KV backed by an embedded Badger database.
type BadgerKV struct {
	db     *badger.DB
	logger *slog.Logger

	mu        sync.Mutex
	sequences map[string]*badger.Sequence
}

// OpenBadger opens (or creates) a Badger database.
func OpenBadger(opts BadgerOptions) (*BadgerKV, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.
		WithLogger(nil).
		WithSyncWrites(!opts.InMemory)
	bopts.CompactL0OnClose = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Info("Badger database opened", "path", opts.Path, "in_memory", opts.InMemory)

	return &BadgerKV{
		db:        db,
		logger:    logger,
		sequences: make(map[string]*badger.Sequence),
	}, nil
}

// View implements KV.
func (b *BadgerKV) View(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var fnErr error
	err := b.db.View(func(txn *badger.Txn) error {
		fnErr = fn(&badgerTxn{txn: txn})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return unavailable("badger view", err)
}

// Update implements KV. Commits that lose a conflict are retried.
func (b *BadgerKV) Update(ctx context.Context, fn func(Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var fnErr error
		err := b.db.Update(func(txn *badger.Txn) error {
			fnErr = fn(&badgerTxn{txn: txn})
			return fnErr
		})
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			b.logger.Debug("retrying conflicting badger transaction", "attempt", attempt+1)
			continue
		}
		return unavailable("badger update", err)
	}
}

// NextSequence implements KV.
func (b *BadgerKV) NextSequence(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.db.IsClosed() {
		return 0, unavailable("badger sequence", badger.ErrDBClosed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	seq, ok := b.sequences[name]
	if !ok {
		var err error
		seq, err = b.db.GetSequence([]byte(sequencePrefix+name), sequenceBandwidth)
		if err != nil {
			return 0, unavailable("badger sequence", err)
		}
		b.sequences[name] = seq
	}

	// Badger sequences start at zero.
	for {
		n, err := seq.Next()
		if err != nil {
			return 0, unavailable("badger sequence", err)
		}
		if n > 0 {
			return n, nil
		}
	}
}

// Close releases leased sequence ranges and closes the database.
func (b *BadgerKV) Close() error {
	b.mu.Lock()
	for name, seq := range b.sequences {
		if err := seq.Release(); err != nil {
			b.logger.Warn("failed to release sequence", "name", name, "error", err)
		}
		delete(b.sequences, name)
	}
	b.mu.Unlock()

	b.logger.Info("Closing badger database")
	return b.db.Close()
}

// badgerTxn adapts *badger.Txn to Txn.
type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("badger get", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, unavailable("badger read value", err)
	}
	return val, nil
}

func (t *badgerTxn) Set(key, value []byte) error {
	return unavailable("badger set", t.txn.Set(key, value))
}

func (t *badgerTxn) Delete(key []byte) error {
	return unavailable("badger delete", t.txn.Delete(key))
}

// Scan copies matching pairs out of the iterator before calling fn,
// so fn may write through the same transaction.
func (t *badgerTxn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	type pair struct{ key, value []byte }

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	var pairs []pair
	it := t.txn.NewIterator(opts)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return unavailable("badger scan", err)
		}
		pairs = append(pairs, pair{key: item.KeyCopy(nil), value: val})
	}
	it.Close()

	for _, p := range pairs {
		if err := fn(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}
