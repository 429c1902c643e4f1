package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reward struct {
	GuestPhone string    `json:"guestPhone"`
	GuestName  string    `json:"guestName"`
	Points     int       `json:"points"`
	CreatedAt  time.Time `json:"createdAt"`
}

func keys(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "guests/+27000000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set and get round trip", func(t *testing.T) {
		s := newStore(t)
		created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, s.Set(ctx, "rewards/r1", reward{GuestPhone: "27827001116", GuestName: "Alice", Points: 10, CreatedAt: created}))

		value, err := s.Get(ctx, "rewards/r1")
		require.NoError(t, err)

		var got reward
		require.NoError(t, Decode(value, &got))
		assert.Equal(t, "Alice", got.GuestName)
		assert.Equal(t, 10, got.Points)
		assert.True(t, created.Equal(got.CreatedAt))

		name, err := s.Get(ctx, "rewards/r1/guestName")
		require.NoError(t, err)
		assert.Equal(t, "Alice", name)

		collection, err := s.Get(ctx, "rewards")
		require.NoError(t, err)
		assert.Len(t, collection, 1)
	})

	t.Run("set nil removes", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "rewards/r1", map[string]any{"guestName": "Alice"}))
		require.NoError(t, s.Set(ctx, "rewards/r1", nil))
		_, err := s.Get(ctx, "rewards/r1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deep set creates intermediates", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "guests/+1/nameUpdateHistory/0001", map[string]any{"newName": "Bob"}))
		v, err := s.Get(ctx, "guests/+1/nameUpdateHistory/0001/newName")
		require.NoError(t, err)
		assert.Equal(t, "Bob", v)
	})

	t.Run("patch writes every path", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "rewards/r1", map[string]any{"guestName": "Alice", "points": 5}))
		require.NoError(t, s.Set(ctx, "rewards/r2", map[string]any{"guestName": "Alice", "points": 7}))

		require.NoError(t, s.Patch(ctx, map[string]any{
			"rewards/r1/guestName": "Alicia",
			"rewards/r2/guestName": "Alicia",
			"rewards/r2/note":      "renamed",
		}))

		r1, err := s.Get(ctx, "rewards/r1")
		require.NoError(t, err)
		assert.Equal(t, "Alicia", Field(r1, "guestName"))
		assert.Equal(t, float64(5), Field(r1, "points"))

		note, err := s.Get(ctx, "rewards/r2/note")
		require.NoError(t, err)
		assert.Equal(t, "renamed", note)
	})

	t.Run("patch rejects overlapping paths without writing", func(t *testing.T) {
		s := newStore(t)
		err := s.Patch(ctx, map[string]any{
			"rewards/r1":           map[string]any{"guestName": "A"},
			"rewards/r1/guestName": "B",
		})
		assert.ErrorIs(t, err, ErrInvalidPath)
		_, err = s.Get(ctx, "rewards/r1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove missing is not an error", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Remove(ctx, "vouchers/v404"))
	})

	t.Run("range query by key with cursor and limit", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"c", "a", "e", "b", "d"} {
			require.NoError(t, s.Set(ctx, "guests/"+k, map[string]any{"name": k}))
		}

		first, err := s.RangeQuery(ctx, "guests", Query{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, keys(first))

		next, err := s.RangeQuery(ctx, "guests", Query{StartAfter: &Cursor{Key: "b"}, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d"}, keys(next))

		bounded, err := s.RangeQuery(ctx, "guests", Query{StartAt: &Bound{Value: "b"}, EndAt: &Bound{Value: "c"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, keys(bounded))
	})

	t.Run("range query by child field", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "guests/k1", map[string]any{"name": "Carol"}))
		require.NoError(t, s.Set(ctx, "guests/k2", map[string]any{"name": "Alice"}))
		require.NoError(t, s.Set(ctx, "guests/k3", map[string]any{"name": "Bob"}))
		require.NoError(t, s.Set(ctx, "guests/k4", map[string]any{"name": "Alice"}))
		require.NoError(t, s.Set(ctx, "guests/k5", map[string]any{"tier": "Gold"}))

		all, err := s.RangeQuery(ctx, "guests", Query{OrderBy: "name"})
		require.NoError(t, err)
		assert.Equal(t, []string{"k5", "k2", "k4", "k3", "k1"}, keys(all))

		after, err := s.RangeQuery(ctx, "guests", Query{OrderBy: "name", StartAfter: &Cursor{Key: "k2", Value: "Alice"}, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"k4", "k3"}, keys(after))

		prefix, err := s.RangeQuery(ctx, "guests", Query{
			OrderBy: "name",
			StartAt: &Bound{Value: "Al"},
			EndAt:   &Bound{Value: "Al\uf8ff"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"k2", "k4"}, keys(prefix))
	})

	t.Run("range query on missing node is empty", func(t *testing.T) {
		s := newStore(t)
		entries, err := s.RangeQuery(ctx, "nothing-here", Query{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("transaction creates when absent and aborts when present", func(t *testing.T) {
		s := newStore(t)
		create := func(current any) (any, error) {
			if current != nil {
				return nil, ErrAbort
			}
			return map[string]any{"name": "Alice"}, nil
		}

		written, err := s.Transaction(ctx, "guests/+27827001116", create)
		require.NoError(t, err)
		assert.Equal(t, "Alice", Field(written, "name"))

		existing, err := s.Transaction(ctx, "guests/+27827001116", create)
		assert.ErrorIs(t, err, ErrAbort)
		assert.Equal(t, "Alice", Field(existing, "name"))
	})

	t.Run("transaction propagates callback errors", func(t *testing.T) {
		s := newStore(t)
		boom := errors.New("boom")
		_, err := s.Transaction(ctx, "guests/+1", func(any) (any, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Get(cancelled, "guests/+1")
		assert.Error(t, err)
	})
}
