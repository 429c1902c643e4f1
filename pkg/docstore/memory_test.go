package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "rewards/r1", map[string]any{"guestName": "Alice"}))

	v, err := s.Get(ctx, "rewards/r1")
	require.NoError(t, err)
	v.(map[string]any)["guestName"] = "Mallory"

	again, err := s.Get(ctx, "rewards/r1/guestName")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again)
}

func TestMemoryStore_RemovePrunesEmptyParents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "vouchers/v1/meta/tag", "x"))
	require.NoError(t, s.Remove(ctx, "vouchers/v1/meta/tag"))

	_, err := s.Get(ctx, "vouchers")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InvalidPaths(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.ErrorIs(t, s.Set(ctx, "", "x"), ErrInvalidPath)
	assert.ErrorIs(t, s.Set(ctx, "guests/a.b", "x"), ErrInvalidPath)
	assert.ErrorIs(t, s.Set(ctx, "guests//x", "x"), ErrInvalidPath)
	_, err := s.Transaction(ctx, "/", func(any) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrInvalidPath)
}
