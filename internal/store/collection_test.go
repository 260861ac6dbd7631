package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
	Size int      `json:"size"`
}

func setupTestKV(t *testing.T) (KV, func()) {
	t.Helper()
	kv, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	return kv, func() { _ = kv.Close() }
}

func newWidgets(kv KV, scope string) *Collection[widget] {
	return NewCollection[widget](kv, "widget", scope).
		WithIndex("tag", func(w *widget) []string { return w.Tags })
}

func TestCollection_PutGet(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	require.NoError(t, c.Put(ctx, "w1", &widget{Name: "bolt", Size: 3}))

	got, err := c.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "bolt", got.Name)
	assert.Equal(t, 3, got.Size)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCollection_ScopesAreIsolated(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()

	a := newWidgets(kv, "a")
	ab := newWidgets(kv, "ab")
	require.NoError(t, a.Put(ctx, "w1", &widget{Name: "a"}))
	require.NoError(t, ab.Put(ctx, "w1", &widget{Name: "ab"}))

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Name)

	require.NoError(t, a.Clear(ctx))
	n, err := ab.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollection_ListIsKeyOrderedAndNonNil(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	empty, err := c.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"03", "01", "02"} {
		require.NoError(t, c.Put(ctx, id, &widget{Name: id}))
	}

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02", "03"}, ids)
}

func TestCollection_IndexFollowsUpdates(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	require.NoError(t, c.Put(ctx, "w1", &widget{Name: "one", Tags: []string{"red", "big"}}))
	require.NoError(t, c.Put(ctx, "w2", &widget{Name: "two", Tags: []string{"red"}}))

	red, err := c.ListByIndex(ctx, "tag", "red")
	require.NoError(t, err)
	assert.Len(t, red, 2)

	// Replacing w1 must drop its stale index entries.
	require.NoError(t, c.Put(ctx, "w1", &widget{Name: "one", Tags: []string{"blue"}}))

	red, err = c.ListByIndex(ctx, "tag", "red")
	require.NoError(t, err)
	require.Len(t, red, 1)
	assert.Equal(t, "two", red[0].Name)

	big, err := c.ListByIndex(ctx, "tag", "big")
	require.NoError(t, err)
	assert.Empty(t, big)

	require.NoError(t, c.Delete(ctx, "w2"))
	red, err = c.ListByIndex(ctx, "tag", "red")
	require.NoError(t, err)
	assert.Empty(t, red)

	_, err = c.ListByIndex(ctx, "nope", "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCollection_IndexValuesMayContainSeparator(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	require.NoError(t, c.Put(ctx, "w1", &widget{Tags: []string{"a/b"}}))
	require.NoError(t, c.Put(ctx, "w2", &widget{Tags: []string{"a"}}))

	got, err := c.ListByIndex(ctx, "tag", "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestCollection_IDsInIndexRange(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	values := map[string]string{"w1": "0005", "w2": "0010", "w3": "0015", "w4": "0010"}
	for id, v := range values {
		require.NoError(t, c.Put(ctx, id, &widget{Tags: []string{v}}))
	}

	ids, err := c.IDsInIndexRange(ctx, "tag", "", "0010")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, ids)

	ids, err = c.IDsInIndexRange(ctx, "tag", "0010", "0015")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2", "w4"}, ids)

	ids, err = c.IDsInIndexRange(ctx, "tag", "0010", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2", "w4", "w3"}, ids)
}

func TestCollection_Update(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	bump := func(cur *widget) (*widget, error) {
		if cur == nil {
			return &widget{Name: "counter", Size: 1}, nil
		}
		cur.Size++
		return cur, nil
	}

	got, err := c.Update(ctx, "w1", bump)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Size)

	got, err = c.Update(ctx, "w1", bump)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Size)

	boom := errors.New("boom")
	_, err = c.Update(ctx, "w1", func(cur *widget) (*widget, error) {
		cur.Size = 100
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := c.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Size, "failed update must not be written")

	got, err = c.Update(ctx, "w1", func(*widget) (*widget, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = c.Get(ctx, "w1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollection_DeleteManyIsIdempotent(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	require.NoError(t, c.Put(ctx, "w1", &widget{Tags: []string{"x"}}))
	require.NoError(t, c.Put(ctx, "w2", &widget{}))

	require.NoError(t, c.DeleteMany(ctx, []string{"w1", "w2", "w3"}))
	require.NoError(t, c.DeleteMany(ctx, []string{"w1", "w2"}))
	require.NoError(t, c.DeleteMany(ctx, nil))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := c.IDsInIndexRange(ctx, "tag", "", "")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCollection_NextIDPerScope(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()

	a := newWidgets(kv, "a")
	b := newWidgets(kv, "b")

	n, err := a.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	n, err = a.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	n, err = b.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestValidScope(t *testing.T) {
	assert.NoError(t, validScope("prf-abc"))
	assert.ErrorIs(t, validScope(""), ErrInvalidInput)
	assert.ErrorIs(t, validScope("a/b"), ErrInvalidInput)
	assert.ErrorIs(t, validScope("a\x00b"), ErrInvalidInput)
	assert.ErrorIs(t, validScope(string(make([]byte, 129))), ErrInvalidInput)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("b"), PrefixEnd([]byte("a")))
	assert.Equal(t, []byte("a0"), PrefixEnd([]byte("a/")))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
	assert.Nil(t, PrefixEnd(nil))
}

func TestCollection_DeleteWhere(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	for i, size := range []int{1, 5, 2, 9} {
		id := string(rune('a' + i))
		require.NoError(t, c.Put(ctx, id, &widget{Size: size, Tags: []string{"t"}}))
	}

	deleted, err := c.DeleteWhere(ctx, func(_ string, w *widget) bool { return w.Size < 3 })
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, deleted)

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, ids)

	tagged, err := c.ListByIndex(ctx, "tag", "t")
	require.NoError(t, err)
	assert.Len(t, tagged, 2)
}

func TestCollection_PutAll(t *testing.T) {
	kv, cleanup := setupTestKV(t)
	defer cleanup()
	ctx := context.Background()
	c := newWidgets(kv, "s1")

	require.NoError(t, c.Put(ctx, "a", &widget{Name: "a", Tags: []string{"old"}}))

	items := []*widget{{Name: "a", Tags: []string{"new"}}, {Name: "b"}}
	require.NoError(t, c.PutAll(ctx, items, func(w *widget) string { return w.Name }))

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	old, err := c.ListByIndex(ctx, "tag", "old")
	require.NoError(t, err)
	assert.Empty(t, old)

	err = c.PutAll(ctx, []*widget{{Name: ""}}, func(w *widget) string { return w.Name })
	assert.ErrorIs(t, err, ErrInvalidInput)
}
