// Package consistency keeps the denormalized copies of a guest's name in line with the
// canonical guest record. It is an eventually consistent fan-out updater: each target
// collection is reconciled independently and a failed collection never blocks the others.
package consistency

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/appctx"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/metrics"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/normalizers"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

const (
	// GuestsCollection holds the canonical guest records.
	GuestsCollection = "guests"

	DefaultCollectionTimeout = 30 * time.Second
	DefaultMaxConcurrency    = 4
)

// EventEmitter is notified after every propagation.
type EventEmitter interface {
	EmitGuestPropagated(ctx context.Context, result *models.PropagationResult) error
}

// Config controls the fan-out.
type Config struct {
	Targets []Target
	// CollectionTimeout bounds each collection's sync; exceeding it is that collection's error.
	CollectionTimeout time.Duration
	MaxConcurrency    int
	CountryCode       string
}

// Engine propagates guest name changes to every target collection.
type Engine struct {
	store       docstore.Store
	logger      ectologger.Logger
	targets     []Target
	reconcilers map[string]Reconciler
	timeout     time.Duration
	concurrency int
	emitter     EventEmitter
	now         func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEmitter publishes a propagation event after every run.
func WithEmitter(emitter EventEmitter) Option {
	return func(e *Engine) { e.emitter = emitter }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithReconciler overrides the reconciler used for a target collection.
func WithReconciler(collection string, r Reconciler) Option {
	return func(e *Engine) { e.reconcilers[collection] = r }
}

// NewEngine creates a new consistency engine
func NewEngine(store docstore.Store, logger ectologger.Logger, cfg Config, opts ...Option) *Engine {
	if len(cfg.Targets) == 0 {
		cfg.Targets = DefaultTargets()
	}
	if cfg.CollectionTimeout <= 0 {
		cfg.CollectionTimeout = DefaultCollectionTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}

	phone := normalizers.NewPhoneNormalizer(cfg.CountryCode)
	e := &Engine{
		store:       store,
		logger:      logger,
		targets:     cfg.Targets,
		reconcilers: make(map[string]Reconciler, len(cfg.Targets)),
		timeout:     cfg.CollectionTimeout,
		concurrency: cfg.MaxConcurrency,
		now:         time.Now,
	}
	for _, t := range cfg.Targets {
		e.reconcilers[t.Name] = NewCollectionReconciler(store, t, phone, logger)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Targets returns the configured target collections in processing order.
func (e *Engine) Targets() []Target {
	return append([]Target(nil), e.targets...)
}

// Propagate rewrites every stale copy of guestID's name to newName across all target
// collections, then records the run on the guest record. oldName is only used for the audit
// trail. Calling it with oldName == newName is the repair operation.
//
// The result is always returned. When any collection failed, a *PartialPropagationError
// listing the failed collections is returned alongside it.
func (e *Engine) Propagate(ctx context.Context, guestID, oldName, newName string) (*models.PropagationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "consistency.Engine.Propagate")
	defer span.End()

	return e.propagate(ctx, guestID, oldName, newName, e.targets)
}

// RepairCollections re-runs the propagation of name for the named collections only, typically
// the ones a previous run reported as failed.
func (e *Engine) RepairCollections(ctx context.Context, guestID, name string, collections ...string) (*models.PropagationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "consistency.Engine.RepairCollections")
	defer span.End()

	if len(collections) == 0 {
		return nil, apperrors.NewValidationError("collections", "at least one collection is required")
	}

	targets := make([]Target, 0, len(collections))
	for _, collection := range collections {
		target, ok := e.target(collection)
		if !ok {
			return nil, apperrors.NewValidationErrorf("collections", "unknown collection '%s'", collection)
		}
		targets = append(targets, target)
	}

	return e.propagate(ctx, guestID, name, name, targets)
}

func (e *Engine) target(name string) (Target, bool) {
	for _, t := range e.targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

func (e *Engine) propagate(ctx context.Context, guestID, oldName, newName string, targets []Target) (*models.PropagationResult, error) {
	if guestID == "" {
		return nil, apperrors.NewValidationError("guest_id", "guest id is required")
	}
	if newName == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"guest_id":    guestID,
		"old_name":    oldName,
		"new_name":    newName,
		"collections": len(targets),
	})

	started := e.now()
	result := &models.PropagationResult{
		GuestID:   guestID,
		OldName:   oldName,
		NewName:   newName,
		Errors:    []string{},
		Details:   []string{},
		StartedAt: started,
	}

	outcomes := e.syncAll(ctx, targets, guestID, newName, started)

	failures := map[string]string{}
	for _, outcome := range outcomes {
		result.Collections = append(result.Collections, outcome)
		result.UpdatedRecords.Add(outcome.Bucket, outcome.Updated)

		switch {
		case outcome.Error != "":
			failures[outcome.Collection] = outcome.Error
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", outcome.Collection, outcome.Error))
		case outcome.Skipped:
			result.Details = append(result.Details, fmt.Sprintf("%s: collection unavailable, skipped", outcome.Collection))
		default:
			result.Details = append(result.Details, fmt.Sprintf("%s: updated %d records", outcome.Collection, outcome.Updated))
		}
	}

	switch err := e.touchGuest(ctx, guestID, oldName, newName, result.UpdatedRecords, started); {
	case errors.Is(err, docstore.ErrAbort):
		log.Warn("Guest record missing, propagation not recorded on it")
		result.Details = append(result.Details, "guest record missing, history not recorded")
	case err != nil:
		log.WithError(err).Warn("Failed to record propagation on guest record")
		result.Details = append(result.Details, fmt.Sprintf("guest record not updated: %v", err))
	}

	result.Success = len(failures) == 0
	result.CompletedAt = e.now()
	e.observe(result)

	log.WithFields(map[string]any{
		"success":         result.Success,
		"updated_records": result.UpdatedRecords.Total(),
		"failed":          len(failures),
	}).Info(result.Summary())

	if e.emitter != nil {
		if err := e.emitter.EmitGuestPropagated(ctx, result); err != nil {
			log.WithError(err).Warn("Failed to emit guest.propagated event")
		}
	}

	if len(failures) > 0 {
		return result, apperrors.NewPartialPropagationError(guestID, failures)
	}
	return result, nil
}

// syncAll runs every target's reconciler concurrently, each under its own timeout, and returns
// the outcomes in target order once all of them have finished.
func (e *Engine) syncAll(ctx context.Context, targets []Target, guestID, name string, now time.Time) []models.CollectionOutcome {
	outcomes := make([]models.CollectionOutcome, len(targets))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			outcomes[i] = e.syncTarget(ctx, target, guestID, name, now)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (e *Engine) syncTarget(ctx context.Context, target Target, guestID, name string, now time.Time) models.CollectionOutcome {
	ctx, span := tracing.StartSpan(ctx, "consistency.Engine.syncTarget")
	defer span.End()

	outcome := models.CollectionOutcome{Collection: target.Name, Bucket: target.Bucket}
	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"guest_id":   guestID,
		"collection": target.Name,
	})

	reconciler, ok := e.reconcilers[target.Name]
	if !ok {
		outcome.Error = "no reconciler configured"
		return outcome
	}

	syncCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	begin := time.Now()
	res, err := reconciler.Sync(syncCtx, guestID, name, now)
	outcome.Duration = time.Since(begin)
	outcome.Matched = res.Matched
	outcome.Updated = res.Updated

	switch {
	case err == nil:
		metrics.CollectionSyncsTotal.WithLabelValues(target.Name, "ok").Inc()
		metrics.RecordsUpdatedTotal.WithLabelValues(target.Name).Add(float64(res.Updated))
	case apperrors.IsCollectionUnavailable(err):
		outcome.Skipped = true
		metrics.CollectionSyncsTotal.WithLabelValues(target.Name, "skipped").Inc()
		log.WithError(err).Warn("Collection unavailable, skipping")
	default:
		tracing.RecordError(span, err)
		if syncCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			outcome.Error = fmt.Sprintf("timed out after %s", e.timeout)
		} else {
			outcome.Error = err.Error()
		}
		metrics.CollectionSyncsTotal.WithLabelValues(target.Name, "error").Inc()
		log.WithError(err).Error("Failed to sync collection")
	}

	return outcome
}

// touchGuest stamps the guest record and appends the audit entry keyed by the run's start time.
// It never creates the record: a missing guest yields docstore.ErrAbort and nothing is written.
// The write is bounded by the per-collection timeout.
func (e *Engine) touchGuest(ctx context.Context, guestID, oldName, newName string, counts models.UpdatedRecords, started time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "consistency.Engine.touchGuest")
	defer span.End()

	entry := models.NameUpdate{
		OldName:        oldName,
		NewName:        newName,
		UpdatedRecords: counts,
		UpdatedBy:      appctx.GetPrincipal(ctx),
		Timestamp:      started,
	}
	stamp := e.now()

	touchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	_, err := e.store.Transaction(touchCtx, docstore.Join(GuestsCollection, guestID), func(current any) (any, error) {
		doc, ok := current.(map[string]any)
		if !ok {
			return nil, docstore.ErrAbort
		}
		history, _ := doc["nameUpdateHistory"].(map[string]any)
		if history == nil {
			history = map[string]any{}
		}
		history[models.HistoryKey(started)] = entry
		doc["nameUpdateHistory"] = history
		doc[CascadeField] = stamp
		return doc, nil
	})
	if err != nil && !errors.Is(err, docstore.ErrAbort) {
		tracing.RecordError(span, err)
		if touchCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return errors.Wrapf(err, "timed out after %s", e.timeout)
		}
	}
	return err
}

func (e *Engine) observe(result *models.PropagationResult) {
	outcome := "success"
	if !result.Success {
		outcome = "partial"
		if result.UpdatedRecords.Total() == 0 {
			outcome = "failed"
		}
	}
	metrics.PropagationsTotal.WithLabelValues(outcome).Inc()
	metrics.PropagationDuration.Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())
}
