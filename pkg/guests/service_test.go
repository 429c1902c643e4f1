package guests

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/repositories/guest"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/consistency"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore/docstoretest"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/pagination"
)

const aliceID = "+27827001116"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestService(store docstore.Store, cfg Config, opts ...Option) *Service {
	logger := getTestLogger()
	clock := func() time.Time { return fixedNow }
	propagator := consistency.NewEngine(store, logger, consistency.Config{CollectionTimeout: time.Second},
		consistency.WithClock(clock))
	pager := pagination.NewEngine(store, logger, 0)
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewService(cfg, store, guest.NewRepository(store, logger), propagator, pager, logger, opts...)
}

func set(t *testing.T, store docstore.Store, path string, value any) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), path, value))
}

func getString(t *testing.T, store docstore.Store, path string) string {
	t.Helper()
	v, err := store.Get(context.Background(), path)
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok, "value at %s is %T", path, v)
	return s
}

type fakeLocker struct {
	err   error
	calls int
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.calls++
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type recordingEmitter struct {
	created []string
	renamed []string
	deleted []string
}

func (e *recordingEmitter) EmitGuestCreated(_ context.Context, g *models.GuestRecord) error {
	e.created = append(e.created, g.ID)
	return nil
}

func (e *recordingEmitter) EmitGuestRenamed(_ context.Context, id, _, newName string) error {
	e.renamed = append(e.renamed, id+"="+newName)
	return nil
}

func (e *recordingEmitter) EmitGuestDeleted(_ context.Context, id string) error {
	e.deleted = append(e.deleted, id)
	return errors.New("broker down")
}

func TestService_CreateGuest(t *testing.T) {
	for _, strict := range []bool{false, true} {
		t.Run(fmt.Sprintf("strict=%v", strict), func(t *testing.T) {
			store := docstore.NewMemoryStore()
			emitter := &recordingEmitter{}
			svc := newTestService(store, Config{StrictIdentityCreate: strict}, WithEmitter(emitter))
			ctx := context.Background()

			id, err := svc.CreateGuest(ctx, CreateGuestRequest{Name: "  Alice   Smith ", Phone: "082 700 1116", Consent: true})
			require.NoError(t, err)
			assert.Equal(t, aliceID, id)
			assert.Equal(t, []string{aliceID}, emitter.created)

			g, err := svc.repo.Get(ctx, aliceID)
			require.NoError(t, err)
			require.NotNil(t, g)
			assert.Equal(t, "Alice Smith", g.Name)
			assert.Equal(t, models.TierBronze, g.Tier)
			assert.True(t, g.Consent)
			require.NotNil(t, g.ConsentPromptedAt)
			assert.True(t, g.ConsentPromptedAt.Equal(fixedNow))

			_, err = svc.CreateGuest(ctx, CreateGuestRequest{Name: "Someone Else", Phone: "whatsapp:+27827001116"})
			assert.True(t, apperrors.IsDuplicateIdentity(err))

			g, err = svc.repo.Get(ctx, aliceID)
			require.NoError(t, err)
			assert.Equal(t, "Alice Smith", g.Name)
		})
	}
}

func TestService_CreateGuest_PendingName(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := newTestService(store, Config{})

	id, err := svc.CreateGuest(context.Background(), CreateGuestRequest{Phone: "27820000001", Tier: models.TierGold})
	require.NoError(t, err)

	g, err := svc.repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.PendingName, g.Name)
	assert.Equal(t, models.TierGold, g.Tier)
	assert.Nil(t, g.ConsentPromptedAt)
}

func TestService_CreateGuest_Validation(t *testing.T) {
	svc := newTestService(docstore.NewMemoryStore(), Config{})

	tests := []struct {
		name  string
		req   CreateGuestRequest
		field string
	}{
		{name: "missing phone", req: CreateGuestRequest{Name: "Alice"}, field: "phone"},
		{name: "unknown tier", req: CreateGuestRequest{Phone: aliceID, Tier: "Diamond"}, field: "tier"},
		{name: "phone without digits", req: CreateGuestRequest{Phone: "not a number"}, field: "phone"},
		{name: "phone too short", req: CreateGuestRequest{Phone: "12345"}, field: "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateGuest(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))

			var verr *apperrors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestService_RenameGuest_PropagatesToCopies(t *testing.T) {
	store := docstore.NewMemoryStore()
	emitter := &recordingEmitter{}
	svc := newTestService(store, Config{}, WithEmitter(emitter))
	ctx := context.Background()

	_, err := svc.CreateGuest(ctx, CreateGuestRequest{Name: "Alice", Phone: aliceID})
	require.NoError(t, err)
	set(t, store, "rewards/r1", map[string]any{"guestPhone": "27827001116", "guestName": "Alice"})

	result, err := svc.RenameGuest(ctx, "27827001116", "Alicia")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "Alice", result.OldName)
	assert.Equal(t, "Alicia", result.NewName)
	assert.Equal(t, 1, result.UpdatedRecords.Rewards)
	assert.Equal(t, "Alicia", getString(t, store, "guests/"+aliceID+"/name"))
	assert.Equal(t, "Alicia", getString(t, store, "rewards/r1/guestName"))
	assert.Equal(t, []string{aliceID + "=Alicia"}, emitter.renamed)

	g, err := svc.repo.Get(ctx, aliceID)
	require.NoError(t, err)
	require.Len(t, g.NameUpdateHistory, 1)
	update := g.NameUpdateHistory[models.HistoryKey(fixedNow)]
	assert.Equal(t, "Alice", update.OldName)
	assert.Equal(t, "Alicia", update.NewName)
	assert.Equal(t, 1, update.UpdatedRecords.Total())
}

func TestService_RenameGuest_Errors(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := newTestService(store, Config{})
	ctx := context.Background()

	_, err := svc.RenameGuest(ctx, aliceID, "Alicia")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.RenameGuest(ctx, aliceID, "")
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.RenameGuest(ctx, aliceID, "   ")
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.RenameGuest(ctx, "abc", "Alicia")
	assert.True(t, apperrors.IsValidation(err))
}

func TestService_RenameGuest_PartialFailure(t *testing.T) {
	store := docstoretest.NewFaultyStore(docstore.NewMemoryStore())
	svc := newTestService(store, Config{})
	ctx := context.Background()

	set(t, store, "guests/"+aliceID, map[string]any{"name": "Alice"})
	set(t, store, "rewards/r1", map[string]any{"guestPhone": aliceID, "guestName": "Alice"})
	set(t, store, "receipts/rc1", map[string]any{"guestPhoneNumber": aliceID, "guestName": "Alice"})
	store.FailWrites("receipts", errors.New("permission denied"))

	result, err := svc.RenameGuest(ctx, aliceID, "Alicia")
	require.Error(t, err)

	var partial *apperrors.PartialPropagationError
	require.True(t, errors.As(err, &partial))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"receipts"}, result.FailedCollections())

	assert.Equal(t, "Alicia", getString(t, store, "guests/"+aliceID+"/name"))
	assert.Equal(t, "Alicia", getString(t, store, "rewards/r1/guestName"))
	assert.Equal(t, "Alice", getString(t, store, "receipts/rc1/guestName"))
}

func TestService_RenameGuest_Locker(t *testing.T) {
	store := docstore.NewMemoryStore()
	set(t, store, "guests/"+aliceID, map[string]any{"name": "Alice"})

	t.Run("lock held", func(t *testing.T) {
		locker := &fakeLocker{err: errors.New("lock held")}
		svc := newTestService(store, Config{}, WithLocker(locker))

		result, err := svc.RenameGuest(context.Background(), aliceID, "Alicia")
		assert.ErrorIs(t, err, ErrGuestBusy)
		assert.Nil(t, result)
		assert.Equal(t, "Alice", getString(t, store, "guests/"+aliceID+"/name"))
	})

	t.Run("lock acquired", func(t *testing.T) {
		locker := &fakeLocker{}
		svc := newTestService(store, Config{}, WithLocker(locker))

		result, err := svc.RenameGuest(context.Background(), aliceID, "Alicia")
		require.NoError(t, err)
		assert.Equal(t, "Alicia", result.NewName)
		assert.Equal(t, 1, locker.calls)
	})

	t.Run("failure inside the lock is not busy", func(t *testing.T) {
		locker := &fakeLocker{}
		svc := newTestService(store, Config{}, WithLocker(locker))

		_, err := svc.RenameGuest(context.Background(), "+27820000000", "Bob")
		assert.True(t, apperrors.IsNotFound(err))
		assert.NotErrorIs(t, err, ErrGuestBusy)
	})
}

func TestService_GetAndDeleteGuest(t *testing.T) {
	store := docstore.NewMemoryStore()
	emitter := &recordingEmitter{}
	svc := newTestService(store, Config{}, WithEmitter(emitter))
	ctx := context.Background()

	set(t, store, "guests/"+aliceID, map[string]any{"name": "Alice", "consent": true})
	set(t, store, "receipts/rc1", map[string]any{
		"guestPhoneNumber": aliceID,
		"status":           "validated",
		"totalAmount":      100,
		"storeName":        "Spur",
		"processedAt":      fixedNow.Format(time.RFC3339),
	})

	g, err := svc.GetGuest(ctx, "0827001116")
	require.NoError(t, err)
	assert.Equal(t, "Alice", g.Name)
	assert.Equal(t, 1, g.Metrics.VisitCount)
	assert.InDelta(t, 100.0, g.Metrics.TotalSpent, 0.001)
	assert.Equal(t, "Spur", g.Metrics.FavoriteStore)
	assert.Equal(t, 100, g.Metrics.EngagementScore)

	require.NoError(t, svc.DeleteGuest(ctx, aliceID))
	assert.Equal(t, []string{aliceID}, emitter.deleted)

	_, err = svc.GetGuest(ctx, aliceID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(svc.DeleteGuest(ctx, aliceID)))

	// copies are left in place
	_, err = store.Get(ctx, "receipts/rc1")
	assert.NoError(t, err)
}
