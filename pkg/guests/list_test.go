package guests

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore/docstoretest"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/pagination"
)

func seedGuests(t *testing.T, store docstore.Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("+2782100%04d", i)
		ids = append(ids, id)
		set(t, store, "guests/"+id, map[string]any{"name": fmt.Sprintf("Guest %02d", i)})
	}
	return ids
}

func receiptFor(id string, amount float64, at time.Time) map[string]any {
	return map[string]any{
		"guestPhoneNumber": id,
		"status":           "validated",
		"totalAmount":      amount,
		"processedAt":      at.Format(time.RFC3339),
	}
}

func TestService_ListGuestsPage_WalksEveryGuestOnce(t *testing.T) {
	store := docstore.NewMemoryStore()
	ids := seedGuests(t, store, 12)
	svc := newTestService(store, Config{})
	ctx := context.Background()

	var sizes []int
	var seen []string
	cursor := ""
	for {
		page, err := svc.ListGuestsPage(ctx, ListRequest{PageSize: 5, Cursor: cursor})
		require.NoError(t, err)
		sizes = append(sizes, len(page.Items))
		for _, item := range page.Items {
			seen = append(seen, item.ID)
		}
		assert.Equal(t, string(pagination.ModeBrowse), page.Mode)
		assert.False(t, page.PartialSort)
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}

	assert.Equal(t, []int{5, 5, 2}, sizes)
	assert.Equal(t, ids, seen)
}

func TestService_ListGuestsPage_SortByName(t *testing.T) {
	store := docstore.NewMemoryStore()
	set(t, store, "guests/+27821000001", map[string]any{"name": "Carol"})
	set(t, store, "guests/+27821000002", map[string]any{"name": "Alice"})
	set(t, store, "guests/+27821000003", map[string]any{"name": "Bob"})
	svc := newTestService(store, Config{})

	page, err := svc.ListGuestsPage(context.Background(), ListRequest{Sort: "name"})
	require.NoError(t, err)

	names := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names)

	_, err = svc.ListGuestsPage(context.Background(), ListRequest{Sort: "name", Order: "desc"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestService_ListGuestsPage_SortByMetric(t *testing.T) {
	store := docstore.NewMemoryStore()
	ids := seedGuests(t, store, 3)
	visits := []int{1, 3, 2}
	n := 0
	for i, id := range ids {
		for v := 0; v < visits[i]; v++ {
			set(t, store, fmt.Sprintf("receipts/rc%d", n), receiptFor(id, 10, fixedNow.AddDate(0, 0, -v)))
			n++
		}
	}
	svc := newTestService(store, Config{})

	page, err := svc.ListGuestsPage(context.Background(), ListRequest{Sort: "visits"})
	require.NoError(t, err)
	assert.True(t, page.PartialSort)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []string{ids[1], ids[2], ids[0]}, []string{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID})
	assert.Equal(t, 3, page.Items[0].Metrics.VisitCount)
	assert.InDelta(t, 30.0, page.Items[0].Metrics.TotalSpent, 0.001)

	page, err = svc.ListGuestsPage(context.Background(), ListRequest{Sort: "visits", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, []string{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID})
}

func TestService_ListGuestsPage_Search(t *testing.T) {
	store := docstore.NewMemoryStore()
	set(t, store, "guests/+27827001116", map[string]any{"name": "Alice"})
	set(t, store, "guests/+27827001117", map[string]any{"name": "Alicia"})
	set(t, store, "guests/+27820000000", map[string]any{"name": "Bob"})
	svc := newTestService(store, Config{})
	ctx := context.Background()

	page, err := svc.ListGuestsPage(ctx, ListRequest{Search: "Ali", PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, string(pagination.ModeSearch), page.Mode)
	assert.False(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Alice", page.Items[0].Name)
	assert.Equal(t, "Alicia", page.Items[1].Name)

	page, err = svc.ListGuestsPage(ctx, ListRequest{Search: "082 000"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Bob", page.Items[0].Name)

	page, err = svc.ListGuestsPage(ctx, ListRequest{Search: "Zed"})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestService_ListGuestsPage_TransactionsUnavailable(t *testing.T) {
	store := docstoretest.NewFaultyStore(docstore.NewMemoryStore())
	ids := seedGuests(t, store, 2)
	set(t, store, "receipts/rc1", receiptFor(ids[0], 50, fixedNow))
	store.FailReads("receipts", errors.New("permission denied"))
	svc := newTestService(store, Config{})

	page, err := svc.ListGuestsPage(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Zero(t, page.Items[0].Metrics.VisitCount)
}

func TestService_ListGuestsPage_Validation(t *testing.T) {
	svc := newTestService(docstore.NewMemoryStore(), Config{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  ListRequest
	}{
		{name: "page size too large", req: ListRequest{PageSize: 501}},
		{name: "negative page size", req: ListRequest{PageSize: -1}},
		{name: "unknown sort", req: ListRequest{Sort: "age"}},
		{name: "unknown order", req: ListRequest{Order: "up"}},
		{name: "malformed cursor", req: ListRequest{Cursor: "%%%"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ListGuestsPage(ctx, tt.req)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}
