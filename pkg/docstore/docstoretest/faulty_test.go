package docstoretest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
)

func TestFaultyStore(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("write rejected")

	t.Run("fails writes under prefix only", func(t *testing.T) {
		f := NewFaultyStore(docstore.NewMemoryStore())
		f.FailWrites("vouchers", boom)

		assert.ErrorIs(t, f.Set(ctx, "vouchers/v1", map[string]any{"a": 1}), boom)
		assert.NoError(t, f.Set(ctx, "vouchers-archive/v1", map[string]any{"a": 1}))
		assert.ErrorIs(t, f.Patch(ctx, map[string]any{"rewards/r1/x": 1, "vouchers/v1/x": 1}), boom)
		assert.Equal(t, 1, f.Calls("Patch"))

		_, err := f.Get(ctx, "rewards/r1")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("fails reads", func(t *testing.T) {
		f := NewFaultyStore(docstore.NewMemoryStore())
		f.FailReads("receipts", boom)
		_, err := f.Get(ctx, "receipts")
		assert.ErrorIs(t, err, boom)
		_, err = f.RangeQuery(ctx, "receipts", docstore.Query{})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("delay honours deadline", func(t *testing.T) {
		f := NewFaultyStore(docstore.NewMemoryStore())
		f.Delay("notifications", time.Second)

		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := f.Get(short, "notifications")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
