package summary

import (
	"context"
	"log/slog"

	"convoca/internal/call/models"
	"convoca/internal/events"
	id "convoca/pkg/domain"
)

// Invalidator sits between the domain services and the event sink. It
// drops the cached summary of the call touched by each event, then
// forwards the event unchanged.
type Invalidator struct {
	next      events.Publisher
	summaries *Service
	registry  *events.Registry
	logger    *slog.Logger
}

func NewInvalidator(next events.Publisher, summaries *Service, registry *events.Registry, logger *slog.Logger) *Invalidator {
	return &Invalidator{next: next, summaries: summaries, registry: registry, logger: logger}
}

func (i *Invalidator) Emit(ctx context.Context, event events.Event) error {
	if callID, ok := i.callOf(ctx, event); ok {
		i.summaries.Invalidate(ctx, callID)
	}
	return i.next.Emit(ctx, event)
}

// callOf finds the call a lifecycle event belongs to. Call events carry
// it in the ref; phase and resolution events usually carry a call_id
// field, and otherwise the entity is resolved through the registry.
// Purged descendants resolve to nothing and are skipped, which is fine:
// purging requires the parent chain was already trashed.
func (i *Invalidator) callOf(ctx context.Context, event events.Event) (id.CallID, bool) {
	if event.Entity.Kind == events.KindCall {
		callID, err := id.ParseCallID(event.Entity.ID)
		return callID, err == nil
	}

	if raw, ok := event.Fields["call_id"].(string); ok {
		callID, err := id.ParseCallID(raw)
		return callID, err == nil
	}

	entity, err := i.registry.Resolve(ctx, event.Entity)
	if err != nil {
		if i.logger != nil {
			i.logger.DebugContext(ctx, "cannot resolve event entity for cache invalidation",
				"event", event.Name, "entity_kind", string(event.Entity.Kind), "error", err)
		}
		return id.CallID{}, false
	}
	switch e := entity.(type) {
	case *models.Phase:
		return e.CallID, true
	case *models.Resolution:
		return e.CallID, true
	}
	return id.CallID{}, false
}
