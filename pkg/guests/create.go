package guests

import (
	"context"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/repositories/guest"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/normalizers"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// CreateGuest creates the canonical record for a phone number and returns its normalized ID.
//
// By default uniqueness is checked with a read before the write, which leaves a narrow window
// in which two concurrent creates of the same number both succeed and the later write wins.
// With StrictIdentityCreate the record is written in a single-path transaction instead.
func (s *Service) CreateGuest(ctx context.Context, req CreateGuestRequest) (id string, err error) {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.CreateGuest")
	defer span.End()
	defer func() { observe("create", err) }()

	if err := Validate(req); err != nil {
		return "", err
	}

	id, err = s.normalizeID(req.Phone)
	if err != nil {
		return "", err
	}

	name := normalizers.DisplayName(req.Name)
	if name == "" {
		name = models.PendingName
	}
	tier := req.Tier
	if tier == "" {
		tier = models.TierBronze
	}

	now := s.now().UTC()
	record := &models.GuestRecord{
		ID:        id,
		Name:      name,
		Tier:      tier,
		Consent:   req.Consent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Consent {
		record.ConsentPromptedAt = &now
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"guest_id": id,
		"strict":   s.cfg.StrictIdentityCreate,
	})

	if s.cfg.StrictIdentityCreate {
		created, err := s.repo.CreateIfAbsent(ctx, record)
		if err != nil {
			tracing.RecordError(span, err)
			return "", err
		}
		if !created {
			log.Info("Guest already exists")
			return "", apperrors.NewDuplicateIdentityError(id)
		}
	} else {
		existing, err := s.repo.Get(ctx, id)
		if err != nil {
			tracing.RecordError(span, err)
			return "", err
		}
		if existing != nil {
			log.Info("Guest already exists")
			return "", apperrors.NewDuplicateIdentityError(id)
		}
		if err := s.repo.Create(ctx, record); err != nil {
			tracing.RecordError(span, err)
			return "", err
		}
	}

	if s.emitter != nil {
		if err := s.emitter.EmitGuestCreated(ctx, record); err != nil {
			log.WithError(err).Warn("Failed to emit guest.created event")
		}
	}

	return id, nil
}

// GetGuest returns a guest enriched with metrics.
func (s *Service) GetGuest(ctx context.Context, rawID string) (_ *models.GuestWithMetrics, err error) {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.GetGuest")
	defer span.End()
	defer func() { observe("get", err) }()

	id, err := s.normalizeID(rawID)
	if err != nil {
		return nil, err
	}

	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NewNotFoundError(guest.Collection, id)
	}

	ix := s.aggregator.Index(s.loadTransactions(ctx))
	return &models.GuestWithMetrics{GuestRecord: *g, Metrics: ix.Metrics(*g, s.now())}, nil
}

// DeleteGuest removes the canonical record. Denormalized copies are left untouched.
func (s *Service) DeleteGuest(ctx context.Context, rawID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.DeleteGuest")
	defer span.End()
	defer func() { observe("delete", err) }()

	id, err := s.normalizeID(rawID)
	if err != nil {
		return err
	}

	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if g == nil {
		return apperrors.NewNotFoundError(guest.Collection, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.emitter != nil {
		if err := s.emitter.EmitGuestDeleted(ctx, id); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit guest.deleted event")
		}
	}
	return nil
}
