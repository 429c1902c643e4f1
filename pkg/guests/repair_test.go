package guests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
)

func seedDrifted(t *testing.T, store docstore.Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("+2782000%04d", i)
		ids = append(ids, id)
		name := fmt.Sprintf("Guest %d", i)
		set(t, store, "guests/"+id, map[string]any{"name": name})
		set(t, store, fmt.Sprintf("rewards/r%d", i), map[string]any{"guestPhone": id, "guestName": "stale"})
	}
	return ids
}

func TestService_BulkRepairAllGuests(t *testing.T) {
	store := docstore.NewMemoryStore()
	ids := seedDrifted(t, store, 5)
	set(t, store, "guests/+27829999999", map[string]any{"tier": "Gold"})

	svc := newTestService(store, Config{RepairPageSize: 2})
	var sleeps []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	results, err := svc.BulkRepairAllGuests(context.Background())
	require.NoError(t, err)
	require.Len(t, results, len(ids))

	for i, r := range results {
		assert.Equal(t, ids[i], r.GuestID)
		assert.True(t, r.Success)
		assert.Equal(t, 1, r.UpdatedRecords.Rewards)
		assert.Equal(t, fmt.Sprintf("Guest %d", i), getString(t, store, fmt.Sprintf("rewards/r%d/guestName", i)))
	}

	// one pause between consecutive guests, none before the first
	assert.Len(t, sleeps, len(ids)-1)
	for _, d := range sleeps {
		assert.Equal(t, DefaultBulkRepairDelay, d)
	}

	again, err := svc.BulkRepairAllGuests(context.Background())
	require.NoError(t, err)
	require.Len(t, again, len(ids))
	for _, r := range again {
		assert.Zero(t, r.UpdatedRecords.Total())
	}
}

func TestService_BulkRepairAllGuests_Cancelled(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedDrifted(t, store, 4)

	svc := newTestService(store, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	svc.sleep = func(ctx context.Context, _ time.Duration) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return ctx.Err()
	}

	results, err := svc.BulkRepairAllGuests(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	assert.Equal(t, "Guest 0", getString(t, store, "rewards/r0/guestName"))
	assert.Equal(t, "Guest 1", getString(t, store, "rewards/r1/guestName"))
	assert.Equal(t, "stale", getString(t, store, "rewards/r2/guestName"))
}

func TestService_BulkRepairAllGuests_Empty(t *testing.T) {
	svc := newTestService(docstore.NewMemoryStore(), Config{})

	results, err := svc.BulkRepairAllGuests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), 0))
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestService_RepairGuest(t *testing.T) {
	store := docstore.NewMemoryStore()
	set(t, store, "guests/"+aliceID, map[string]any{"name": "Alicia"})
	set(t, store, "rewards/r1", map[string]any{"guestPhone": aliceID, "guestName": "Alice"})
	set(t, store, "receipts/rc1", map[string]any{"guestPhone": aliceID, "guestName": "Alice"})
	svc := newTestService(store, Config{})
	ctx := context.Background()

	result, err := svc.RepairGuest(ctx, aliceID, []string{"receipts"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedRecords.Receipts)
	assert.Zero(t, result.UpdatedRecords.Rewards)
	assert.Equal(t, "Alice", getString(t, store, "rewards/r1/guestName"))

	result, err = svc.RepairGuest(ctx, aliceID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedRecords.Rewards)
	assert.Equal(t, "Alicia", getString(t, store, "rewards/r1/guestName"))

	_, err = svc.RepairGuest(ctx, aliceID, []string{"unknown"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.RepairGuest(ctx, "+27820000000", nil)
	assert.True(t, apperrors.IsNotFound(err))
}
