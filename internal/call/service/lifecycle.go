package service

import (
	"context"
	"errors"
	"time"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	"convoca/internal/events"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/requestcontext"
)

// CreateCall registers a new call in draft status.
func (s *Service) CreateCall(ctx context.Context, attrs models.NewCallAttrs, actor id.ActorID) (*models.Call, error) {
	attrs.CreatedBy = actorRef(actor)
	call, err := models.NewCall(id.NewCallID(), attrs, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.calls.Create(ctx, call); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create call")
	}
	s.emit(ctx, events.CallCreated, events.CallRef(call.ID), actor, map[string]any{"slug": call.Slug})
	if s.metrics != nil {
		s.metrics.CallsCreated.Inc()
	}
	return call, nil
}

// GetCall returns a call by id. Trashed calls are only visible when
// explicitly requested.
func (s *Service) GetCall(ctx context.Context, callID id.CallID, includeTrashed bool) (*models.Call, error) {
	scope := store.ScopeActive
	if includeTrashed {
		scope = store.ScopeAll
	}
	call, err := s.calls.FindByID(ctx, callID, scope)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "call not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
	}
	return call, nil
}

// GetCallBySlug returns an active call by its slug.
func (s *Service) GetCallBySlug(ctx context.Context, slug string) (*models.Call, error) {
	call, err := s.calls.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "call not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
	}
	return call, nil
}

// ListCalls returns calls matching the filter, newest first.
func (s *Service) ListCalls(ctx context.Context, filter store.CallFilter) ([]*models.Call, error) {
	calls, err := s.calls.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list calls")
	}
	return calls, nil
}

// UpdateCall applies the mutable call fields and stamps updated_by.
func (s *Service) UpdateCall(ctx context.Context, callID id.CallID, attrs models.UpdateCallAttrs, actor id.ActorID) (*models.Call, error) {
	call, err := s.GetCall(ctx, callID, false)
	if err != nil {
		return nil, err
	}
	if err := call.ApplyUpdate(attrs, actorRef(actor), requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.calls.Update(ctx, call); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "call not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update call")
	}
	s.emit(ctx, events.CallUpdated, events.CallRef(call.ID), actor, nil)
	return call, nil
}

// ChangeStatus moves a call to any of the six statuses. Transitions are
// deliberately unconstrained: this is an administrative override, not a
// linear pipeline. The first transition to open stamps published_at and
// the first transition to closed stamps closed_at; repeats never
// re-stamp.
func (s *Service) ChangeStatus(ctx context.Context, callID id.CallID, target models.CallStatus, actor id.ActorID) (*models.Call, error) {
	call, err := s.GetCall(ctx, callID, false)
	if err != nil {
		return nil, err
	}
	if err := call.CanTransitionTo(target); err != nil {
		return nil, err
	}

	previous := call.Status
	wasPublished := call.PublishedAt != nil
	if !call.ApplyStatus(target, requestcontext.Now(ctx)) {
		// Same status, stamp already in place: idempotent no-op.
		return call, nil
	}
	call.UpdatedBy = actorRef(actor)

	if err := s.calls.Update(ctx, call); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "call not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to change call status")
	}

	s.emit(ctx, events.CallStatusChanged, events.CallRef(call.ID), actor, map[string]any{
		"from": string(previous),
		"to":   string(target),
	})
	if target == models.StatusOpen && !wasPublished {
		s.emit(ctx, events.CallPublished, events.CallRef(call.ID), actor, nil)
		if s.metrics != nil {
			s.metrics.CallsPublished.Inc()
		}
	}
	return call, nil
}

// PublishCall is shorthand for moving the call to open.
func (s *Service) PublishCall(ctx context.Context, callID id.CallID, actor id.ActorID) (*models.Call, error) {
	return s.ChangeStatus(ctx, callID, models.StatusOpen, actor)
}

// SoftDeleteCall trashes a call. Blocked while any non-deleted phase or
// resolution remains attached; on rejection nothing is mutated and a
// rejection event is emitted for user feedback.
func (s *Service) SoftDeleteCall(ctx context.Context, callID id.CallID, actor id.ActorID) error {
	err := s.runTx(ctx, func(ctx context.Context) error {
		call, err := s.calls.FindByID(ctx, callID, store.ScopeActive)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "call not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
		}
		if err := s.calls.Lock(ctx, callID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock call")
		}

		blocking, err := s.countCallDependents(ctx, callID, store.ScopeActive)
		if err != nil {
			return err
		}
		if blocking > 0 {
			return relationshipConflict("call", call.ID.String(), blocking)
		}
		if err := s.calls.MarkTrashed(ctx, callID, requestcontext.Now(ctx)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to trash call")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRelationshipConflict) {
			s.emit(ctx, events.CallDeleteRejected, events.CallRef(callID), actor, map[string]any{
				"blocking_count": dErrors.LoadInt(err, "blocking_count"),
			})
			if s.metrics != nil {
				s.metrics.DeletesRejected.WithLabelValues("call").Inc()
			}
		}
		return err
	}
	s.emit(ctx, events.CallDeleted, events.CallRef(callID), actor, nil)
	return nil
}

// RestoreCall clears the trashed flag; no other field changes.
func (s *Service) RestoreCall(ctx context.Context, callID id.CallID, actor id.ActorID) error {
	if err := s.calls.Restore(ctx, callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "call not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore call")
	}
	s.emit(ctx, events.CallRestored, events.CallRef(callID), actor, nil)
	return nil
}

// PurgeCall irreversibly removes a call. The guard counts every
// descendant including trashed ones, so a purge that proceeds verifiably
// removes nothing but the call itself; the cascade deletes still run in
// the same transaction so the promise holds even against rows that
// appear concurrently. Authorization (privileged actors only) is the
// caller's concern.
func (s *Service) PurgeCall(ctx context.Context, callID id.CallID, actor id.ActorID) error {
	start := time.Now()
	err := s.runTx(ctx, func(ctx context.Context) error {
		call, err := s.calls.FindByID(ctx, callID, store.ScopeAll)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "call not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
		}
		if err := s.calls.Lock(ctx, callID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock call")
		}

		blocking, err := s.countCallDependents(ctx, callID, store.ScopeAll)
		if err != nil {
			return err
		}
		if blocking > 0 {
			return relationshipConflict("call", call.ID.String(), blocking)
		}

		if _, err := s.resolutions.DeleteByCall(ctx, callID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge resolutions")
		}
		if _, err := s.phases.DeleteByCall(ctx, callID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge phases")
		}
		if err := s.calls.Delete(ctx, callID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge call")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRelationshipConflict) {
			s.emit(ctx, events.CallDeleteRejected, events.CallRef(callID), actor, map[string]any{
				"blocking_count": dErrors.LoadInt(err, "blocking_count"),
				"purge":          true,
			})
			if s.metrics != nil {
				s.metrics.DeletesRejected.WithLabelValues("call").Inc()
			}
		}
		return err
	}
	s.emit(ctx, events.CallPurged, events.CallRef(callID), actor, nil)
	if s.metrics != nil {
		s.metrics.CallsPurged.Inc()
		s.metrics.ObservePurge(start)
	}
	return nil
}

// DetachActor nulls every weak reference to a removed actor across calls
// and resolutions, in one transaction. Rows are kept, never cascaded.
func (s *Service) DetachActor(ctx context.Context, actorID id.ActorID) (int, error) {
	total := 0
	err := s.runTx(ctx, func(ctx context.Context) error {
		n, err := s.calls.DetachActor(ctx, actorID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach actor from calls")
		}
		total += n
		n, err = s.resolutions.DetachActor(ctx, actorID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach actor from resolutions")
		}
		total += n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) countCallDependents(ctx context.Context, callID id.CallID, scope store.Scope) (int, error) {
	phaseCount, err := s.phases.CountByCall(ctx, callID, scope)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count phases")
	}
	resolutionCount, err := s.resolutions.CountByCall(ctx, callID, scope)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count resolutions")
	}
	if CanDeleteCall(phaseCount, resolutionCount) {
		return 0, nil
	}
	return phaseCount + resolutionCount, nil
}
