// Package storetest provides a conformance suite for store.KV backends and
// KV doubles that simulate an unavailable engine.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach/fitcoach-server/internal/store"
)

// ErrInjected is the cause carried by every failure of a broken KV.
var ErrInjected = errors.New("injected storage failure")

// Breakable wraps a KV and fails every call while broken.
type Breakable struct {
	inner  store.KV
	broken atomic.Bool
}

// NewBreakable wraps inner. The returned KV starts healthy.
func NewBreakable(inner store.KV) *Breakable {
	return &Breakable{inner: inner}
}

// NewFailing returns a KV that fails every call.
func NewFailing() *Breakable {
	b := &Breakable{}
	b.Break()
	return b
}

// Break makes every subsequent call fail.
func (b *Breakable) Break() { b.broken.Store(true) }

// Repair restores pass-through behavior.
func (b *Breakable) Repair() { b.broken.Store(false) }

func (b *Breakable) fail() error {
	return store.ErrUnavailable.WithCause(ErrInjected)
}

// View implements store.KV.
func (b *Breakable) View(ctx context.Context, fn func(store.Txn) error) error {
	if b.broken.Load() || b.inner == nil {
		return b.fail()
	}
	return b.inner.View(ctx, fn)
}

// Update implements store.KV.
func (b *Breakable) Update(ctx context.Context, fn func(store.Txn) error) error {
	if b.broken.Load() || b.inner == nil {
		return b.fail()
	}
	return b.inner.Update(ctx, fn)
}

// NextSequence implements store.KV.
func (b *Breakable) NextSequence(ctx context.Context, name string) (uint64, error) {
	if b.broken.Load() || b.inner == nil {
		return 0, b.fail()
	}
	return b.inner.NextSequence(ctx, name)
}

// Close implements store.KV.
func (b *Breakable) Close() error {
	if b.inner == nil {
		return nil
	}
	return b.inner.Close()
}

// Factory opens a fresh, empty KV for one test. The suite closes it.
type Factory func(t *testing.T) store.KV

// Run exercises the store.KV contract against the backend built by newKV.
func Run(t *testing.T, newKV Factory) {
	t.Helper()

	t.Run("GetMissingReturnsNotFound", func(t *testing.T) {
		kv := open(t, newKV)
		err := kv.View(context.Background(), func(txn store.Txn) error {
			_, err := txn.Get([]byte("missing"))
			return err
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SetThenGet", func(t *testing.T) {
		kv := open(t, newKV)
		ctx := context.Background()

		require.NoError(t, kv.Update(ctx, func(txn store.Txn) error {
			return txn.Set([]byte("k"), []byte("v1"))
		}))
		require.NoError(t, kv.Update(ctx, func(txn store.Txn) error {
			return txn.Set([]byte("k"), []byte("v2"))
		}))

		var got []byte
		require.NoError(t, kv.View(ctx, func(txn store.Txn) error {
			var err error
			got, err = txn.Get([]byte("k"))
			return err
		}))
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		kv := open(t, newKV)
		ctx := context.Background()

		require.NoError(t, kv.Update(ctx, func(txn store.Txn) error {
			return txn.Set([]byte("k"), []byte("v"))
		}))
		for range 2 {
			require.NoError(t, kv.Update(ctx, func(txn store.Txn) error {
				return txn.Delete([]byte("k"))
			}))
		}

		err := kv.View(ctx, func(txn store.Txn) error {
			_, err := txn.Get([]byte("k"))
			return err
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ScanIsOrderedAndBoundedByPrefix", func(t *testing.T) {
		kv := open(t, newKV)
		ctx := context.Background()

		keys := []string{"a/2", "b", "a/10", "a0", "a/1", "a"}
		require.NoError(t, kv.Update(ctx, func(txn store.Txn) error {
			for _, k := range keys {
				if err := txn.Set([]byte(k), []byte("v-"+k)); err != nil {
					return err
				}
			}
			return nil
		}))

		var got []string
		require.NoError(t, kv.View(ctx, func(txn store.Txn) error {
			return txn.Scan([]byte("a/"), func(key, value []byte) error {
				assert.Equal(t, "v-"+string(key), string(value))
				got = append(got, string(key))
				return nil
			})
		}))
		assert.Equal(t, []string{"a/1", "a/10", "a/2"}, got)
	})

	t.Run("ScanCallbackMayDelete", func(t *testing.T) {
		kv := open(t, newKV)
		ctx := context.Background()

		require.NoError(t, kv.Update(ctx, func(txn store.Txn) error {
			for i := range 5 {
				if err := txn.Set([]byte("p/"+strconv.Itoa(i)), []byte("x")); err != nil {
					return err
				}
			}
			return nil
		}))
		require.NoError(t, kv.Update(ctx, func(txn store.Txn) error {
			return txn.Scan([]byte("p/"), func(key, _ []byte) error {
				return txn.Delete(key)
			})
		}))

		count := 0
		require.NoError(t, kv.View(ctx, func(txn store.Txn) error {
			return txn.Scan([]byte("p/"), func(_, _ []byte) error {
				count++
				return nil
			})
		}))
		assert.Zero(t, count)
	})

	t.Run("CallbackErrorRollsBack", func(t *testing.T) {
		kv := open(t, newKV)
		ctx := context.Background()
		boom := errors.New("boom")

		err := kv.Update(ctx, func(txn store.Txn) error {
			if err := txn.Set([]byte("k"), []byte("v")); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, store.IsUnavailable(err))

		err = kv.View(ctx, func(txn store.Txn) error {
			_, err := txn.Get([]byte("k"))
			return err
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SequencesStartAtOneAndAreIndependent", func(t *testing.T) {
		kv := open(t, newKV)
		ctx := context.Background()

		for want := uint64(1); want <= 3; want++ {
			got, err := kv.NextSequence(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		got, err := kv.NextSequence(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got)
	})

	t.Run("ConcurrentReadModifyWrite", func(t *testing.T) {
		kv := open(t, newKV)
		ctx := context.Background()
		const workers = 8

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- kv.Update(ctx, func(txn store.Txn) error {
					n := 0
					raw, err := txn.Get([]byte("counter"))
					switch {
					case errors.Is(err, store.ErrNotFound):
					case err != nil:
						return err
					default:
						n, err = strconv.Atoi(string(raw))
						if err != nil {
							return err
						}
					}
					return txn.Set([]byte("counter"), []byte(strconv.Itoa(n+1)))
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		var raw []byte
		require.NoError(t, kv.View(ctx, func(txn store.Txn) error {
			var err error
			raw, err = txn.Get([]byte("counter"))
			return err
		}))
		assert.Equal(t, strconv.Itoa(workers), string(raw))
	})

	t.Run("CanceledContext", func(t *testing.T) {
		kv := open(t, newKV)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := kv.View(ctx, func(store.Txn) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("ClosedEngineIsUnavailable", func(t *testing.T) {
		kv := newKV(t)
		require.NoError(t, kv.Close())
		ctx := context.Background()

		err := kv.View(ctx, func(store.Txn) error { return nil })
		assert.True(t, store.IsUnavailable(err), "view: %v", err)

		err = kv.Update(ctx, func(txn store.Txn) error {
			return txn.Set([]byte("k"), []byte("v"))
		})
		assert.True(t, store.IsUnavailable(err), "update: %v", err)

		_, err = kv.NextSequence(ctx, "a")
		assert.True(t, store.IsUnavailable(err), "sequence: %v", err)
	})
}

func open(t *testing.T, newKV Factory) store.KV {
	t.Helper()
	kv := newKV(t)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}
