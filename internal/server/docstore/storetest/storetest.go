// Package storetest holds behaviour tests shared by every docstore backend.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// Run exercises s against the docstore.Store contract. newStore must return
// an empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		var d doc
		assert.ErrorIs(t, s.Get(ctx, "items/a", &d), docstore.ErrNotFound)
	})

	t.Run("invalid path", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Set(ctx, "", doc{}), docstore.ErrInvalidPath)
		assert.ErrorIs(t, s.Set(ctx, "items/../x", doc{}), docstore.ErrInvalidPath)
		assert.ErrorIs(t, s.Set(ctx, "items/a b", doc{}), docstore.ErrInvalidPath)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "items/a", doc{Status: "new", Name: "x"}))
		require.NoError(t, s.Set(ctx, "/items/a/", doc{Status: "old"}))

		var d doc
		require.NoError(t, s.Get(ctx, "items/a", &d))
		assert.Equal(t, doc{Status: "old"}, d)
	})

	t.Run("create conflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, "items/a", doc{Status: "one"}))
		assert.ErrorIs(t, s.Create(ctx, "items/a", doc{Status: "two"}), docstore.ErrAlreadyExists)

		var d doc
		require.NoError(t, s.Get(ctx, "items/a", &d))
		assert.Equal(t, "one", d.Status)
	})

	t.Run("update merges", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "items/a", doc{Status: "new", Name: "x"}))
		require.NoError(t, s.Update(ctx, "items/a", map[string]any{"count": 3}))

		var d doc
		require.NoError(t, s.Get(ctx, "items/a", &d))
		assert.Equal(t, doc{Status: "new", Name: "x", Count: 3}, d)

		assert.ErrorIs(t, s.Update(ctx, "items/missing", map[string]any{"count": 1}), docstore.ErrNotFound)
		assert.Error(t, s.Update(ctx, "items/a", map[string]any{"name": nil}))
	})

	t.Run("update if", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "items/a", doc{Status: "new"}))

		ok, err := s.UpdateIf(ctx, "items/a", "status", "open", map[string]any{"status": "done"})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.UpdateIf(ctx, "items/a", "status", "new", map[string]any{"status": "done", "name": "y"})
		require.NoError(t, err)
		assert.True(t, ok)

		var d doc
		require.NoError(t, s.Get(ctx, "items/a", &d))
		assert.Equal(t, doc{Status: "done", Name: "y"}, d)

		_, err = s.UpdateIf(ctx, "items/missing", "status", "new", map[string]any{"status": "done"})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("update if single winner", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "items/a", doc{Status: "new"}))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.UpdateIf(ctx, "items/a", "status", "new", map[string]any{"status": "done", "count": i + 1})
				if err == nil && ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "items/a", doc{Status: "new"}))
		require.NoError(t, s.Remove(ctx, "items/a"))
		require.NoError(t, s.Remove(ctx, "items/a"))

		var d doc
		assert.ErrorIs(t, s.Get(ctx, "items/a", &d), docstore.ErrNotFound)
	})

	t.Run("push and list", func(t *testing.T) {
		s := newStore(t)
		k1, err := s.Push(ctx, "items", doc{Status: "a"})
		require.NoError(t, err)
		k2, err := s.Push(ctx, "items", doc{Status: "b"})
		require.NoError(t, err)
		assert.NotEqual(t, k1, k2)
		assert.Less(t, k1, k2, "push keys are time ordered")

		require.NoError(t, s.Set(ctx, "items/"+k1+"/nested", doc{Status: "deep"}))
		require.NoError(t, s.Set(ctx, "other/x", doc{Status: "other"}))

		children, err := s.List(ctx, "items")
		require.NoError(t, err)
		require.Len(t, children, 2)

		var d doc
		require.NoError(t, json.Unmarshal(children[k2], &d))
		assert.Equal(t, "b", d.Status)

		empty, err := s.List(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}
