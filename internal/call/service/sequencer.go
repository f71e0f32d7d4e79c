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

// MoveDirection selects which neighbor a phase swaps with.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// CreatePhase appends a phase to a call's pipeline. With order zero the
// phase takes the next free slot; an explicit order is honored when the
// slot is free and rejected otherwise (duplicates would make the
// up/down moves ambiguous).
func (s *Service) CreatePhase(ctx context.Context, callID id.CallID, attrs models.NewPhaseAttrs, actor id.ActorID) (*models.Phase, error) {
	phase, err := models.NewPhase(id.NewPhaseID(), callID, attrs, requestcontext.Now(ctx))
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
		if err := s.calls.Lock(ctx, callID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock call")
		}

		if phase.Order == 0 {
			max, err := s.phases.MaxOrder(ctx, callID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute phase order")
			}
			phase.Order = max + 1
		} else {
			siblings, err := s.phases.ListByCall(ctx, callID, store.ScopeActive)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list phases")
			}
			for _, sibling := range siblings {
				if sibling.Order == phase.Order {
					return dErrors.Newf(dErrors.CodeConflict, "phase order %d is already taken", phase.Order)
				}
			}
		}
		if err := s.phases.Create(ctx, phase); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create phase")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.PhaseCreated, events.PhaseRef(phase.ID), actor, map[string]any{
		"call_id": phase.CallID.String(),
		"order":   phase.Order,
	})
	return phase, nil
}

// GetPhase returns a phase by id.
func (s *Service) GetPhase(ctx context.Context, phaseID id.PhaseID, includeTrashed bool) (*models.Phase, error) {
	scope := store.ScopeActive
	if includeTrashed {
		scope = store.ScopeAll
	}
	phase, err := s.phases.FindByID(ctx, phaseID, scope)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "phase not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
	}
	return phase, nil
}

// ListPhases returns a call's phases in pipeline order.
func (s *Service) ListPhases(ctx context.Context, callID id.CallID, includeTrashed bool) ([]*models.Phase, error) {
	scope := store.ScopeActive
	if includeTrashed {
		scope = store.ScopeAll
	}
	phases, err := s.phases.ListByCall(ctx, callID, scope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list phases")
	}
	return phases, nil
}

// UpdatePhase applies the mutable phase fields. Order and ownership are
// not touched here; reordering goes through MovePhase.
func (s *Service) UpdatePhase(ctx context.Context, phaseID id.PhaseID, attrs models.UpdatePhaseAttrs, actor id.ActorID) (*models.Phase, error) {
	phase, err := s.GetPhase(ctx, phaseID, false)
	if err != nil {
		return nil, err
	}
	if err := phase.Apply(attrs, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.phases.Update(ctx, phase); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "phase not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update phase")
	}
	s.emit(ctx, events.PhaseUpdated, events.PhaseRef(phase.ID), actor, nil)
	return phase, nil
}

// MovePhase swaps a phase with its nearest non-deleted neighbor in the
// given direction. At the boundary (no neighbor) the move is a silent
// no-op. The swap is atomic: both phases change order or neither does,
// and concurrent moves on the same call serialize on the call lock.
func (s *Service) MovePhase(ctx context.Context, phaseID id.PhaseID, direction MoveDirection, actor id.ActorID) ([]*models.Phase, error) {
	if direction != MoveUp && direction != MoveDown {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown move direction %q", direction)
	}

	start := time.Now()
	var moved bool
	var phase, neighbor *models.Phase
	err := s.runTx(ctx, func(ctx context.Context) error {
		moved = false
		var err error
		phase, err = s.phases.FindByID(ctx, phaseID, store.ScopeActive)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "phase not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
		}
		if err := s.calls.Lock(ctx, phase.CallID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock call")
		}

		// Re-read under the lock so the neighbor search sees a stable order.
		siblings, err := s.phases.ListByCall(ctx, phase.CallID, store.ScopeActive)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list phases")
		}
		neighbor = nil
		for _, sibling := range siblings {
			if sibling.ID == phase.ID {
				phase = sibling
				continue
			}
			switch direction {
			case MoveUp:
				if sibling.Order < phase.Order && (neighbor == nil || sibling.Order > neighbor.Order) {
					neighbor = sibling
				}
			case MoveDown:
				if sibling.Order > phase.Order && (neighbor == nil || sibling.Order < neighbor.Order) {
					neighbor = sibling
				}
			}
		}
		if neighbor == nil {
			return nil
		}
		if err := s.phases.SwapOrder(ctx, phase, neighbor, requestcontext.Now(ctx)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to swap phase order")
		}
		phase.Order, neighbor.Order = neighbor.Order, phase.Order
		moved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moved {
		s.emit(ctx, events.PhaseReordered, events.PhaseRef(phase.ID), actor, map[string]any{
			"direction":  string(direction),
			"swapped_to": phase.Order,
			"with":       neighbor.ID.String(),
		})
		if s.metrics != nil {
			s.metrics.ObserveReorder(start)
		}
	}
	return s.phases.ListByCall(ctx, phase.CallID, store.ScopeActive)
}

// MovePhaseUp swaps the phase with its predecessor.
func (s *Service) MovePhaseUp(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) ([]*models.Phase, error) {
	return s.MovePhase(ctx, phaseID, MoveUp, actor)
}

// MovePhaseDown swaps the phase with its successor.
func (s *Service) MovePhaseDown(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) ([]*models.Phase, error) {
	return s.MovePhase(ctx, phaseID, MoveDown, actor)
}

// MarkPhaseCurrent makes the phase the call's single current one,
// clearing the flag on every sibling in the same transaction. The
// returned slice lists active siblings whose date ranges overlap the
// target's; overlap is advisory and never blocks the change.
func (s *Service) MarkPhaseCurrent(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) ([]*models.Phase, error) {
	start := time.Now()
	var overlapping []*models.Phase
	var phase *models.Phase
	err := s.runTx(ctx, func(ctx context.Context) error {
		overlapping = nil
		var err error
		phase, err = s.phases.FindByID(ctx, phaseID, store.ScopeActive)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "phase not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
		}
		if err := s.calls.Lock(ctx, phase.CallID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock call")
		}

		siblings, err := s.phases.ListByCall(ctx, phase.CallID, store.ScopeActive)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list phases")
		}
		for _, sibling := range siblings {
			if sibling.ID != phase.ID && phase.Overlaps(sibling) {
				overlapping = append(overlapping, sibling)
			}
		}
		if err := s.phases.SetCurrent(ctx, phase.CallID, phase.ID, requestcontext.Now(ctx)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark phase current")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.PhaseCurrentChanged, events.PhaseRef(phaseID), actor, map[string]any{
		"call_id":     phase.CallID.String(),
		"overlapping": len(overlapping),
	})
	if s.metrics != nil {
		s.metrics.ObserveMarkCurrent(start)
	}
	return overlapping, nil
}

// UnmarkPhaseCurrent clears the current flag on the phase, leaving the
// call with no current phase. Clearing an already-clear phase is a no-op.
func (s *Service) UnmarkPhaseCurrent(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error {
	phase, err := s.GetPhase(ctx, phaseID, false)
	if err != nil {
		return err
	}
	if !phase.IsCurrent {
		return nil
	}
	if err := s.phases.ClearCurrent(ctx, phaseID, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unmark phase current")
	}
	s.emit(ctx, events.PhaseCurrentChanged, events.PhaseRef(phaseID), actor, map[string]any{
		"call_id": phase.CallID.String(),
		"cleared": true,
	})
	return nil
}

// SoftDeletePhase trashes a phase. Blocked while any non-deleted
// resolution references it. The phase keeps its order value so a restore
// puts it back in its old slot.
func (s *Service) SoftDeletePhase(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error {
	err := s.runTx(ctx, func(ctx context.Context) error {
		phase, err := s.phases.FindByID(ctx, phaseID, store.ScopeActive)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "phase not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
		}
		if err := s.calls.Lock(ctx, phase.CallID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock call")
		}

		count, err := s.resolutions.CountByPhase(ctx, phaseID, store.ScopeActive)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count resolutions")
		}
		if !CanDeletePhase(count) {
			return relationshipConflict("phase", phaseID.String(), count)
		}
		if err := s.phases.MarkTrashed(ctx, phaseID, requestcontext.Now(ctx)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to trash phase")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRelationshipConflict) {
			s.emit(ctx, events.PhaseDeleteRejected, events.PhaseRef(phaseID), actor, map[string]any{
				"blocking_count": dErrors.LoadInt(err, "blocking_count"),
			})
			if s.metrics != nil {
				s.metrics.DeletesRejected.WithLabelValues("phase").Inc()
			}
		}
		return err
	}
	s.emit(ctx, events.PhaseDeleted, events.PhaseRef(phaseID), actor, nil)
	return nil
}

// RestorePhase brings a trashed phase back with its order and current
// flag as they were.
func (s *Service) RestorePhase(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error {
	if err := s.phases.Restore(ctx, phaseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "phase not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore phase")
	}
	s.emit(ctx, events.PhaseRestored, events.PhaseRef(phaseID), actor, nil)
	return nil
}

// PurgePhase irreversibly removes a phase. The guard counts trashed
// resolutions too; remaining orders are left untouched (gaps in the
// sequence are fine, only relative order matters).
func (s *Service) PurgePhase(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error {
	start := time.Now()
	err := s.runTx(ctx, func(ctx context.Context) error {
		phase, err := s.phases.FindByID(ctx, phaseID, store.ScopeAll)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "phase not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
		}
		if err := s.calls.Lock(ctx, phase.CallID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock call")
		}

		count, err := s.resolutions.CountByPhase(ctx, phaseID, store.ScopeAll)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count resolutions")
		}
		if !CanDeletePhase(count) {
			return relationshipConflict("phase", phaseID.String(), count)
		}
		if _, err := s.resolutions.DeleteByPhase(ctx, phaseID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge resolutions")
		}
		if err := s.phases.Delete(ctx, phaseID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge phase")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRelationshipConflict) {
			s.emit(ctx, events.PhaseDeleteRejected, events.PhaseRef(phaseID), actor, map[string]any{
				"blocking_count": dErrors.LoadInt(err, "blocking_count"),
				"purge":          true,
			})
			if s.metrics != nil {
				s.metrics.DeletesRejected.WithLabelValues("phase").Inc()
			}
		}
		return err
	}
	s.emit(ctx, events.PhasePurged, events.PhaseRef(phaseID), actor, nil)
	if s.metrics != nil {
		s.metrics.ObservePurge(start)
	}
	return nil
}
