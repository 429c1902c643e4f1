package guests

import (
	"context"
	"errors"
	"fmt"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/repositories/guest"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/metrics"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/normalizers"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// ErrGuestBusy is returned when another rename of the same guest holds the lock.
var ErrGuestBusy = errors.New("another update of this guest is in progress")

// RenameGuest writes a new display name to the canonical record and propagates it to every
// denormalized copy. The propagation result is returned even when some collections failed,
// together with a *PartialPropagationError.
//
// Without a Locker, concurrent renames of one guest interleave per collection and the last
// write wins.
func (s *Service) RenameGuest(ctx context.Context, rawID, newName string) (result *models.PropagationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.RenameGuest")
	defer span.End()
	defer func() { observe("rename", err) }()

	if err := Validate(RenameGuestRequest{Name: newName}); err != nil {
		return nil, err
	}
	name := normalizers.DisplayName(newName)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "name must not be blank")
	}

	id, err := s.normalizeID(rawID)
	if err != nil {
		return nil, err
	}

	if s.locker == nil {
		return s.rename(ctx, id, name)
	}

	locked := false
	err = s.locker.WithLock(ctx, "guest:"+id, func(ctx context.Context) error {
		locked = true
		var renameErr error
		result, renameErr = s.rename(ctx, id, name)
		return renameErr
	})
	if err != nil && !locked {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"guest_id": id}).Warn("Rename lock not acquired")
		return nil, fmt.Errorf("%w: %w", ErrGuestBusy, err)
	}
	return result, err
}

func (s *Service) rename(ctx context.Context, id, name string) (*models.PropagationResult, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NewNotFoundError(guest.Collection, id)
	}
	oldName := g.Name

	if err := s.repo.UpdateName(ctx, id, name, s.now().UTC()); err != nil {
		return nil, err
	}

	result, err := s.propagator.Propagate(ctx, id, oldName, name)
	if result == nil {
		return nil, err
	}

	if s.emitter != nil {
		if emitErr := s.emitter.EmitGuestRenamed(ctx, id, oldName, name); emitErr != nil {
			s.logger.WithContext(ctx).WithError(emitErr).Warn("Failed to emit guest.renamed event")
		}
	}

	return result, err
}

// observe counts a guest operation by result.
func observe(operation string, err error) {
	var partial *apperrors.PartialPropagationError
	result := "ok"
	switch {
	case err == nil:
	case errors.As(err, &partial):
		result = "partial"
	case apperrors.IsValidation(err):
		result = "invalid"
	case apperrors.IsNotFound(err):
		result = "not_found"
	case apperrors.IsDuplicateIdentity(err):
		result = "duplicate"
	case errors.Is(err, ErrGuestBusy):
		result = "busy"
	default:
		result = "error"
	}
	metrics.GuestOperationsTotal.WithLabelValues(operation, result).Inc()
}
