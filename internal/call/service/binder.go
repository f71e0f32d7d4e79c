package service

import (
	"context"
	"errors"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	"convoca/internal/events"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/requestcontext"
)

// CreateResolution binds a new resolution to a call and one of that
// call's phases. The ownership check (phase belongs to the call) runs
// before any write; a mismatch fails the whole operation with nothing
// persisted. The postgres schema backs the same rule with a composite
// foreign key.
func (s *Service) CreateResolution(ctx context.Context, callID id.CallID, phaseID id.PhaseID, attrs models.NewResolutionAttrs, actor id.ActorID) (*models.Resolution, error) {
	attrs.CreatedBy = actorRef(actor)
	resolution, err := models.NewResolution(id.NewResolutionID(), callID, phaseID, attrs, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if _, err := s.calls.FindByID(ctx, callID, store.ScopeActive); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "call not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
		}
		phase, err := s.phases.FindByID(ctx, phaseID, store.ScopeActive)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "phase not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
		}
		if phase.CallID != callID {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"phase %s belongs to call %s, not %s", phaseID, phase.CallID, callID)
		}
		if err := s.resolutions.Create(ctx, resolution); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create resolution")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.ResolutionCreated, events.ResolutionRef(resolution.ID), actor, map[string]any{
		"call_id":  callID.String(),
		"phase_id": phaseID.String(),
		"type":     string(resolution.Type),
	})
	return resolution, nil
}

// GetResolution returns a resolution by id.
func (s *Service) GetResolution(ctx context.Context, resolutionID id.ResolutionID, includeTrashed bool) (*models.Resolution, error) {
	scope := store.ScopeActive
	if includeTrashed {
		scope = store.ScopeAll
	}
	resolution, err := s.resolutions.FindByID(ctx, resolutionID, scope)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "resolution not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resolution")
	}
	return resolution, nil
}

// ListResolutionsByCall returns a call's resolutions ordered by official
// date.
func (s *Service) ListResolutionsByCall(ctx context.Context, callID id.CallID, includeTrashed bool) ([]*models.Resolution, error) {
	scope := store.ScopeActive
	if includeTrashed {
		scope = store.ScopeAll
	}
	list, err := s.resolutions.ListByCall(ctx, callID, scope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list resolutions")
	}
	return list, nil
}

// ListResolutionsByPhase returns the resolutions bound to one phase.
func (s *Service) ListResolutionsByPhase(ctx context.Context, phaseID id.PhaseID, includeTrashed bool) ([]*models.Resolution, error) {
	scope := store.ScopeActive
	if includeTrashed {
		scope = store.ScopeAll
	}
	list, err := s.resolutions.ListByPhase(ctx, phaseID, scope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list resolutions")
	}
	return list, nil
}

// PublishResolution stamps published_at on first call. Publishing an
// already-published resolution returns it unchanged with no event.
func (s *Service) PublishResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) (*models.Resolution, error) {
	resolution, err := s.GetResolution(ctx, resolutionID, false)
	if err != nil {
		return nil, err
	}
	if !resolution.Publish(requestcontext.Now(ctx)) {
		return resolution, nil
	}
	if err := s.resolutions.Update(ctx, resolution); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "resolution not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish resolution")
	}
	s.emit(ctx, events.ResolutionPublished, events.ResolutionRef(resolution.ID), actor, map[string]any{
		"call_id": resolution.CallID.String(),
	})
	return resolution, nil
}

// SoftDeleteResolution trashes a resolution. Resolutions are leaves, so
// no guard applies.
func (s *Service) SoftDeleteResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) error {
	if err := s.resolutions.MarkTrashed(ctx, resolutionID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "resolution not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to trash resolution")
	}
	s.emit(ctx, events.ResolutionDeleted, events.ResolutionRef(resolutionID), actor, nil)
	return nil
}

// RestoreResolution clears the trashed flag.
func (s *Service) RestoreResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) error {
	if err := s.resolutions.Restore(ctx, resolutionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "resolution not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore resolution")
	}
	s.emit(ctx, events.ResolutionRestored, events.ResolutionRef(resolutionID), actor, nil)
	return nil
}

// PurgeResolution irreversibly removes a resolution, trashed or not.
func (s *Service) PurgeResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) error {
	if err := s.resolutions.Delete(ctx, resolutionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "resolution not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge resolution")
	}
	s.emit(ctx, events.ResolutionPurged, events.ResolutionRef(resolutionID), actor, nil)
	return nil
}
