package guests

import (
	"context"
	"errors"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/repositories/guest"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/metrics"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/pagination"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// BulkRepairAllGuests re-propagates every guest's current name in key order, pausing
// BulkRepairDelay between guests. Each propagation only rewrites copies that drifted.
//
// Per-guest failures are reported in the returned results and do not stop the run.
// Cancellation stops it and returns the results gathered so far with the context error.
func (s *Service) BulkRepairAllGuests(ctx context.Context) ([]*models.PropagationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.BulkRepairAllGuests")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"page_size": s.cfg.RepairPageSize,
		"delay":     s.cfg.BulkRepairDelay.String(),
	})
	log.Info("Starting bulk repair")

	results := []*models.PropagationResult{}
	session := pagination.NewSession(guest.Collection, pagination.ByKey(), s.cfg.RepairPageSize)
	started := false

	for {
		page, err := session.Next(ctx, s.pager)
		if errors.Is(err, pagination.ErrNoMorePages) {
			break
		}
		if err != nil {
			tracing.RecordError(span, err)
			log.WithError(err).Error("Failed to fetch guests for repair")
			return results, err
		}

		for _, entry := range page.Items {
			g := guest.FromDocument(entry.Key, entry.Value)
			if g.Name == "" {
				metrics.RepairGuestsTotal.WithLabelValues("skipped").Inc()
				log.WithFields(map[string]any{"guest_id": g.ID}).Debug("Skipping guest without a name")
				continue
			}

			if started {
				if err := s.sleep(ctx, s.cfg.BulkRepairDelay); err != nil {
					log.WithFields(map[string]any{"repaired": len(results)}).Warn("Bulk repair cancelled")
					return results, err
				}
			}
			started = true

			result, err := s.propagator.Propagate(ctx, g.ID, g.Name, g.Name)
			if result != nil {
				results = append(results, result)
			}

			var partial *apperrors.PartialPropagationError
			switch {
			case err == nil:
				metrics.RepairGuestsTotal.WithLabelValues("ok").Inc()
			case errors.As(err, &partial):
				metrics.RepairGuestsTotal.WithLabelValues("partial").Inc()
			default:
				metrics.RepairGuestsTotal.WithLabelValues("error").Inc()
				log.WithError(err).WithFields(map[string]any{"guest_id": g.ID}).Warn("Failed to repair guest")
			}

			if ctx.Err() != nil {
				return results, ctx.Err()
			}
		}

		if !page.HasMore {
			break
		}
	}

	updated := 0
	for _, r := range results {
		updated += r.UpdatedRecords.Total()
	}
	log.WithFields(map[string]any{
		"guests":          len(results),
		"updated_records": updated,
	}).Info("Bulk repair finished")

	return results, nil
}

// RepairGuest re-propagates one guest's current name. With collections set, only those are
// synced, which retries the failures of an earlier partial propagation.
func (s *Service) RepairGuest(ctx context.Context, rawID string, collections []string) (result *models.PropagationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "guests.Service.RepairGuest")
	defer span.End()
	defer func() { observe("repair", err) }()

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

	if len(collections) == 0 {
		return s.propagator.Propagate(ctx, id, g.Name, g.Name)
	}

	repairer, ok := s.propagator.(Repairer)
	if !ok {
		return nil, apperrors.NewValidationError("collections", "selective repair is not supported")
	}
	return repairer.RepairCollections(ctx, id, g.Name, collections...)
}
