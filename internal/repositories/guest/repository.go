package guest

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// Collection holds the canonical guest records, keyed by normalized phone number.
const Collection = "guests"

// GuestRepository defines the interface for canonical guest record operations
type GuestRepository interface {
	Get(ctx context.Context, id string) (*models.GuestRecord, error)
	Create(ctx context.Context, guest *models.GuestRecord) error
	CreateIfAbsent(ctx context.Context, guest *models.GuestRecord) (bool, error)
	UpdateName(ctx context.Context, id, name string, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// Repository implements GuestRepository over the document store
type Repository struct {
	store  docstore.Store
	logger ectologger.Logger
}

// NewRepository creates a new guest repository
func NewRepository(store docstore.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

func path(id string) string {
	return docstore.Join(Collection, id)
}

// Get returns the guest with the given normalized ID, or nil when there is none.
func (r *Repository) Get(ctx context.Context, id string) (*models.GuestRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "GuestRepository.Get")
	defer span.End()

	doc, err := r.store.Get(ctx, path(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"guest_id": id}).Error("failed to get guest")
		return nil, err
	}

	guest := FromDocument(id, doc)
	return &guest, nil
}

// Create writes the guest record, overwriting whatever is stored under its ID.
func (r *Repository) Create(ctx context.Context, guest *models.GuestRecord) error {
	ctx, span := tracing.StartSpan(ctx, "GuestRepository.Create")
	defer span.End()

	if err := r.store.Set(ctx, path(guest.ID), guest); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"guest_id": guest.ID}).Error("failed to create guest")
		return err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"guest_id": guest.ID}).Info("created guest")
	return nil
}

// CreateIfAbsent writes the guest record in a single-path transaction and reports false,
// without writing, when a record already exists under the ID.
func (r *Repository) CreateIfAbsent(ctx context.Context, guest *models.GuestRecord) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "GuestRepository.CreateIfAbsent")
	defer span.End()

	_, err := r.store.Transaction(ctx, path(guest.ID), func(current any) (any, error) {
		if current != nil {
			return nil, docstore.ErrAbort
		}
		return guest, nil
	})
	if errors.Is(err, docstore.ErrAbort) {
		return false, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"guest_id": guest.ID}).Error("failed to create guest in transaction")
		return false, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"guest_id": guest.ID}).Info("created guest")
	return true, nil
}

// UpdateName writes a new display name to the canonical record.
func (r *Repository) UpdateName(ctx context.Context, id, name string, now time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "GuestRepository.UpdateName")
	defer span.End()

	err := r.store.Patch(ctx, map[string]any{
		docstore.Join(Collection, id, "name"):      name,
		docstore.Join(Collection, id, "updatedAt"): now,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"guest_id": id}).Error("failed to update guest name")
		return err
	}
	return nil
}

// Delete removes the canonical record only; denormalized copies are left as they are.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "GuestRepository.Delete")
	defer span.End()

	if err := r.store.Remove(ctx, path(id)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"guest_id": id}).Error("failed to delete guest")
		return err
	}
	return nil
}

// FromDocument reads a stored guest document. Records written by older clients use unix
// milliseconds for timestamps and may lack fields, so every field is read leniently.
func FromDocument(id string, doc any) models.GuestRecord {
	guest := models.GuestRecord{ID: id}

	if name, ok := docstore.Field(doc, "name").(string); ok {
		guest.Name = name
	}
	if tier, ok := docstore.Field(doc, "tier").(string); ok {
		guest.Tier = models.Tier(tier)
	}
	if consent, ok := docstore.Field(doc, "consent").(bool); ok {
		guest.Consent = consent
	}
	if ts, ok := parseTime(docstore.Field(doc, "createdAt")); ok {
		guest.CreatedAt = ts
	}
	if ts, ok := parseTime(docstore.Field(doc, "updatedAt")); ok {
		guest.UpdatedAt = ts
	}
	if ts, ok := parseTime(docstore.Field(doc, "consentPromptedAt")); ok {
		guest.ConsentPromptedAt = &ts
	}
	if ts, ok := parseTime(docstore.Field(doc, "lastCascadeUpdate")); ok {
		guest.LastCascadeUpdate = &ts
	}

	if history := docstore.Field(doc, "nameUpdateHistory"); history != nil {
		var entries map[string]models.NameUpdate
		if err := docstore.Decode(history, &entries); err == nil {
			guest.NameUpdateHistory = entries
		}
	}

	return guest
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC(), true
		}
	case float64:
		if t > 0 {
			return time.UnixMilli(int64(t)).UTC(), true
		}
	}
	return time.Time{}, false
}
