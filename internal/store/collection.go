package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Collection provides typed CRUD over one partition of one scope.
//
// Key layout, with "/" as separator:
//
//	<partition>/<scope>/r/<id>                     record
//	<partition>/<scope>/i/<index>/<hex value>/<id> secondary index entry
//
// Index values are hex encoded so that they never contain the separator
// while keeping their byte order.
type Collection[T any] struct {
	kv        KV
	partition string
	scope     string
	prefix    string
	indexes   []index[T]
}

type index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewCollection creates a collection over the given partition and scope.
func NewCollection[T any](kv KV, partition, scope string) *Collection[T] {
	return &Collection[T]{
		kv:        kv,
		partition: partition,
		scope:     scope,
		prefix:    partition + "/" + scope + "/",
	}
}

// WithIndex adds a secondary index. keyGen returns the index values of a record;
// several records may share a value.
func (c *Collection[T]) WithIndex(name string, keyGen func(*T) []string) *Collection[T] {
	c.indexes = append(c.indexes, index[T]{name: name, keyGen: keyGen})
	return c
}

// Partition returns the partition name.
func (c *Collection[T]) Partition() string { return c.partition }

// Scope returns the scope the collection is bound to.
func (c *Collection[T]) Scope() string { return c.scope }

func (c *Collection[T]) recordPrefix() []byte {
	return []byte(c.prefix + "r/")
}

func (c *Collection[T]) recordKey(id string) []byte {
	return []byte(c.prefix + "r/" + id)
}

func (c *Collection[T]) indexNamePrefix(name string) []byte {
	return []byte(c.prefix + "i/" + name + "/")
}

func (c *Collection[T]) indexValuePrefix(name, value string) []byte {
	return []byte(c.prefix + "i/" + name + "/" + hex.EncodeToString([]byte(value)) + "/")
}

func (c *Collection[T]) indexKey(name, value, id string) []byte {
	return append(c.indexValuePrefix(name, value), id...)
}

// splitIndexKey returns the decoded value and the id of an index entry.
func (c *Collection[T]) splitIndexKey(name string, key []byte) (value, id string, err error) {
	rest := bytes.TrimPrefix(key, c.indexNamePrefix(name))
	sep := bytes.IndexByte(rest, '/')
	if sep < 0 {
		return "", "", fmt.Errorf("malformed index key %q", key)
	}
	raw, err := hex.DecodeString(string(rest[:sep]))
	if err != nil {
		return "", "", fmt.Errorf("malformed index key %q: %w", key, err)
	}
	return string(raw), string(rest[sep+1:]), nil
}

func (c *Collection[T]) decode(data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s record: %w", c.partition, err)
	}
	return &v, nil
}

func (c *Collection[T]) validID(id string) error {
	if id == "" {
		return ErrInvalidInput.WithMessage("empty record id")
	}
	return nil
}

// Get retrieves a record by ID.
// Returns ErrNotFound if the record does not exist.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := c.validID(id); err != nil {
		return nil, err
	}

	var out *T
	err := c.kv.View(ctx, func(txn Txn) error {
		data, err := txn.Get(c.recordKey(id))
		if err != nil {
			return err
		}
		out, err = c.decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every record in key order.
func (c *Collection[T]) List(ctx context.Context) ([]*T, error) {
	out := make([]*T, 0)
	err := c.kv.View(ctx, func(txn Txn) error {
		return txn.Scan(c.recordPrefix(), func(_, value []byte) error {
			v, err := c.decode(value)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IDs returns every record ID in key order.
func (c *Collection[T]) IDs(ctx context.Context) ([]string, error) {
	prefix := c.recordPrefix()
	ids := make([]string, 0)
	err := c.kv.View(ctx, func(txn Txn) error {
		return txn.Scan(prefix, func(key, _ []byte) error {
			ids = append(ids, string(key[len(prefix):]))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Count returns the number of records.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	ids, err := c.IDs(ctx)
	return len(ids), err
}

// Put stores a record under id, replacing any existing record and its index entries.
func (c *Collection[T]) Put(ctx context.Context, id string, v *T) error {
	if err := c.validID(id); err != nil {
		return err
	}
	return c.kv.Update(ctx, func(txn Txn) error {
		old, err := c.getTxn(txn, id)
		if err != nil {
			return err
		}
		return c.writeTxn(txn, id, old, v)
	})
}

// PutAll stores several records in one transaction.
func (c *Collection[T]) PutAll(ctx context.Context, items []*T, idOf func(*T) string) error {
	if len(items) == 0 {
		return nil
	}
	for _, v := range items {
		if err := c.validID(idOf(v)); err != nil {
			return err
		}
	}
	return c.kv.Update(ctx, func(txn Txn) error {
		for _, v := range items {
			id := idOf(v)
			old, err := c.getTxn(txn, id)
			if err != nil {
				return err
			}
			if err := c.writeTxn(txn, id, old, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update atomically reads the record at id, passes it to fn (nil when absent)
// and stores what fn returns. A nil result deletes the record.
// fn may be called more than once if the transaction is retried.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(current *T) (*T, error)) (*T, error) {
	if err := c.validID(id); err != nil {
		return nil, err
	}

	var result *T
	err := c.kv.Update(ctx, func(txn Txn) error {
		current, err := c.getTxn(txn, id)
		if err != nil {
			return err
		}

		var input *T
		if current != nil {
			cp := *current
			input = &cp
		}

		next, err := fn(input)
		if err != nil {
			return err
		}
		result = next

		if next == nil {
			return c.deleteTxn(txn, id, current)
		}
		return c.writeTxn(txn, id, current, next)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a record and its index entries.
// This operation is idempotent: a missing record is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.DeleteMany(ctx, []string{id})
}

// DeleteMany removes several records in one transaction.
func (c *Collection[T]) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := c.validID(id); err != nil {
			return err
		}
	}

	return c.kv.Update(ctx, func(txn Txn) error {
		for _, id := range ids {
			current, err := c.getTxn(txn, id)
			if err != nil {
				return err
			}
			if err := c.deleteTxn(txn, id, current); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteWhere removes, in one transaction, every record for which match returns true.
// It returns the IDs it deleted.
func (c *Collection[T]) DeleteWhere(ctx context.Context, match func(id string, v *T) bool) ([]string, error) {
	prefix := c.recordPrefix()
	var deleted []string
	err := c.kv.Update(ctx, func(txn Txn) error {
		deleted = deleted[:0]
		return txn.Scan(prefix, func(key, value []byte) error {
			id := string(key[len(prefix):])
			v, err := c.decode(value)
			if err != nil {
				return err
			}
			if !match(id, v) {
				return nil
			}
			if err := c.deleteTxn(txn, id, v); err != nil {
				return err
			}
			deleted = append(deleted, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Clear removes every record and index entry of the collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	prefix := []byte(c.prefix)
	return c.kv.Update(ctx, func(txn Txn) error {
		return txn.Scan(prefix, func(key, _ []byte) error {
			return txn.Delete(key)
		})
	})
}

// NextID returns the next value of the collection's sequence.
func (c *Collection[T]) NextID(ctx context.Context) (uint64, error) {
	return c.kv.NextSequence(ctx, c.partition+"/"+c.scope)
}

// ListByIndex returns the records whose index values include value, in ID order.
func (c *Collection[T]) ListByIndex(ctx context.Context, indexName, value string) ([]*T, error) {
	if !c.hasIndex(indexName) {
		return nil, ErrInvalidInput.WithMessage("unknown index " + indexName)
	}

	out := make([]*T, 0)
	err := c.kv.View(ctx, func(txn Txn) error {
		prefix := c.indexValuePrefix(indexName, value)
		var ids []string
		if err := txn.Scan(prefix, func(key, _ []byte) error {
			ids = append(ids, string(key[len(prefix):]))
			return nil
		}); err != nil {
			return err
		}

		for _, id := range ids {
			v, err := c.getTxn(txn, id)
			if err != nil {
				return err
			}
			if v != nil {
				out = append(out, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IDsInIndexRange returns the IDs whose index value v satisfies from <= v < to,
// ordered by value. An empty to means no upper bound.
func (c *Collection[T]) IDsInIndexRange(ctx context.Context, indexName, from, to string) ([]string, error) {
	if !c.hasIndex(indexName) {
		return nil, ErrInvalidInput.WithMessage("unknown index " + indexName)
	}

	ids := make([]string, 0)
	errStop := errors.New("stop")
	err := c.kv.View(ctx, func(txn Txn) error {
		return txn.Scan(c.indexNamePrefix(indexName), func(key, _ []byte) error {
			value, id, err := c.splitIndexKey(indexName, key)
			if err != nil {
				return err
			}
			if value < from {
				return nil
			}
			if to != "" && value >= to {
				return errStop
			}
			ids = append(ids, id)
			return nil
		})
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return ids, nil
}

func (c *Collection[T]) hasIndex(name string) bool {
	for _, idx := range c.indexes {
		if idx.name == name {
			return true
		}
	}
	return false
}

// getTxn returns the record at id or nil when it does not exist.
func (c *Collection[T]) getTxn(txn Txn, id string) (*T, error) {
	data, err := txn.Get(c.recordKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decode(data)
}

func (c *Collection[T]) writeTxn(txn Txn, id string, old, next *T) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", c.partition, err)
	}

	if old != nil {
		if err := c.deleteIndexEntries(txn, id, old); err != nil {
			return err
		}
	}

	if err := txn.Set(c.recordKey(id), data); err != nil {
		return err
	}

	for _, idx := range c.indexes {
		for _, value := range idx.keyGen(next) {
			if err := txn.Set(c.indexKey(idx.name, value, id), []byte(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Collection[T]) deleteTxn(txn Txn, id string, current *T) error {
	if current == nil {
		return nil
	}
	if err := c.deleteIndexEntries(txn, id, current); err != nil {
		return err
	}
	return txn.Delete(c.recordKey(id))
}

func (c *Collection[T]) deleteIndexEntries(txn Txn, id string, v *T) error {
	for _, idx := range c.indexes {
		for _, value := range idx.keyGen(v) {
			if err := txn.Delete(c.indexKey(idx.name, value, id)); err != nil {
				return err
			}
		}
	}
	return nil
}

// validScope rejects scopes that would break the key layout.
func validScope(scope string) error {
	switch {
	case scope == "":
		return ErrInvalidInput.WithMessage("empty scope")
	case len(scope) > 128:
		return ErrInvalidInput.WithMessage("scope too long")
	case strings.ContainsAny(scope, "/\x00"):
		return ErrInvalidInput.WithMessage("scope contains a reserved character")
	}
	return nil
}
