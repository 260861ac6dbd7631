package store

import "context"

// KV is a transactional, ordered key-value engine.
//
// Keys are compared bytewise. Every engine failure surfaces as ErrUnavailable;
// errors returned by a transaction callback are passed through unchanged.
type KV interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Txn) error) error
	// Update runs fn in a read-write transaction and commits it if fn returns nil.
	// fn may run more than once when the engine retries a conflicting commit.
	Update(ctx context.Context, fn func(Txn) error) error
	// NextSequence returns the next value of a named, monotonically increasing counter.
	// The first value is 1.
	NextSequence(ctx context.Context, name string) (uint64, error)
	// Close releases the engine.
	Close() error
}

// Txn is a single transaction against a KV engine.
type Txn interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Set stores value at key.
	Set(key, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error
	// Scan calls fn for every key with the given prefix, in key order.
	// Returning an error from fn stops the scan and returns that error.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

// PrefixEnd returns the smallest key greater than every key with the given prefix,
// or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
