package consistency

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/normalizers"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// SyncResult is the outcome of one reconciler run.
type SyncResult struct {
	// Matched is the number of stale copies found.
	Matched int
	// Updated is the number of copies rewritten; 0 when the patch failed.
	Updated int
}

// Reconciler brings the denormalized guest names of one collection in line with the
// canonical value.
type Reconciler interface {
	Sync(ctx context.Context, guestID, name string, now time.Time) (SyncResult, error)
}

// CollectionReconciler compares every record of a collection against the canonical name and
// rewrites the stale ones with a single multi-path patch.
type CollectionReconciler struct {
	store  docstore.Store
	target Target
	phone  normalizers.PhoneNormalizer
	logger ectologger.Logger
}

func NewCollectionReconciler(store docstore.Store, target Target, phone normalizers.PhoneNormalizer, logger ectologger.Logger) *CollectionReconciler {
	return &CollectionReconciler{
		store:  store,
		target: target,
		phone:  phone,
		logger: logger,
	}
}

// Sync rewrites every copy referencing guestID whose name differs from name. A collection that
// cannot be read yields a CollectionUnavailableError.
func (r *CollectionReconciler) Sync(ctx context.Context, guestID, name string, now time.Time) (SyncResult, error) {
	ctx, span := tracing.StartSpan(ctx, "consistency.CollectionReconciler.Sync")
	defer span.End()

	collection, err := r.store.Get(ctx, r.target.Name)
	if err != nil {
		if ctx.Err() != nil {
			return SyncResult{}, ctx.Err()
		}
		return SyncResult{}, apperrors.NewCollectionUnavailableError(r.target.Name, err)
	}

	stale := r.staleRecords(docstore.Children(collection), guestID, name)
	if len(stale) == 0 {
		return SyncResult{}, nil
	}

	updates := make(map[string]any, len(stale)*3)
	for _, record := range stale {
		base := docstore.Join(r.target.Name, record.Key)
		updates[docstore.Join(base, NameField)] = name
		updates[docstore.Join(base, UpdatedAtField)] = now
		updates[docstore.Join(base, CascadeField)] = now
	}

	if err := r.store.Patch(ctx, updates); err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"collection": r.target.Name,
			"guest_id":   guestID,
			"records":    len(stale),
		}).Error("Failed to patch denormalized guest names")
		return SyncResult{Matched: len(stale)}, errors.Wrapf(err, "failed to patch %d records in %s", len(stale), r.target.Name)
	}

	return SyncResult{Matched: len(stale), Updated: len(stale)}, nil
}

// staleRecords returns the records referencing guestID whose name differs from name, in key order.
func (r *CollectionReconciler) staleRecords(records []docstore.Entry, guestID, name string) []docstore.Entry {
	want := guestID
	if normalized, err := r.phone.Normalize(guestID); err == nil {
		want = normalized
	}

	stale := ectolinq.Filter(records, func(record docstore.Entry) bool {
		if !r.references(record.Value, guestID, want) {
			return false
		}
		current, ok := docstore.Field(record.Value, NameField).(string)
		return !ok || current != name
	})
	sort.Slice(stale, func(i, j int) bool { return stale[i].Key < stale[j].Key })
	return stale
}

// references reports whether any foreign key alias of doc identifies the guest.
func (r *CollectionReconciler) references(doc any, guestID, normalizedID string) bool {
	for _, key := range r.target.ForeignKeys {
		raw := foreignKeyString(docstore.Field(doc, key))
		if raw == "" {
			continue
		}
		if raw == guestID || raw == normalizedID {
			return true
		}
		if normalized, err := r.phone.Normalize(raw); err == nil && normalized == normalizedID {
			return true
		}
	}
	return false
}

// foreignKeyString renders a foreign key value; phone numbers are sometimes stored as numbers.
func foreignKeyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
