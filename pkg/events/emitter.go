// Package events handles event emission for guest lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/appctx"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/kafka"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

const (
	GuestCreated    = "guest.created"
	GuestRenamed    = "guest.renamed"
	GuestDeleted    = "guest.deleted"
	GuestPropagated = "guest.propagated"
)

// Publisher sends guest events to the broker
type Publisher interface {
	PublishGuestEvent(ctx context.Context, event *kafka.GuestEvent) error
}

// Emitter handles event emission for Fern
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitGuestCreated emits a guest created event
func (e *Emitter) EmitGuestCreated(ctx context.Context, guest *models.GuestRecord) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGuestCreated")
	defer span.End()

	return e.emit(ctx, GuestCreated, guest.ID, map[string]any{
		"name":    guest.Name,
		"tier":    guest.Tier,
		"consent": guest.Consent,
	})
}

// EmitGuestRenamed emits a guest renamed event
func (e *Emitter) EmitGuestRenamed(ctx context.Context, guestID, oldName, newName string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGuestRenamed")
	defer span.End()

	return e.emit(ctx, GuestRenamed, guestID, map[string]any{
		"old_name": oldName,
		"new_name": newName,
	})
}

// EmitGuestDeleted emits a guest deleted event
func (e *Emitter) EmitGuestDeleted(ctx context.Context, guestID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGuestDeleted")
	defer span.End()

	return e.emit(ctx, GuestDeleted, guestID, nil)
}

// EmitGuestPropagated emits the outcome of a name propagation, including the collections
// that failed so consumers can schedule a repair of just those.
func (e *Emitter) EmitGuestPropagated(ctx context.Context, result *models.PropagationResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGuestPropagated")
	defer span.End()

	return e.emit(ctx, GuestPropagated, result.GuestID, map[string]any{
		"old_name":           result.OldName,
		"new_name":           result.NewName,
		"success":            result.Success,
		"updated_records":    result.UpdatedRecords,
		"failed_collections": result.FailedCollections(),
	})
}

func (e *Emitter) emit(ctx context.Context, eventType, guestID string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	data["schema_version"] = SchemaVersion

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return err
	}

	event := &kafka.GuestEvent{
		EventType: eventType,
		GuestID:   guestID,
		Principal: appctx.GetPrincipal(ctx),
		Data:      dataJSON,
	}

	if err := e.publisher.PublishGuestEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"guest_id":   guestID,
		}).Error("Failed to emit guest event")
		return err
	}

	return nil
}
