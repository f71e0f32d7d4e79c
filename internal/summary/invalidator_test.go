package summary

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	"convoca/internal/events"
	id "convoca/pkg/domain"
)

func newInvalidatorEnv(t *testing.T) (*env, *Invalidator, *events.Recorder, context.Context) {
	t.Helper()
	e, ctx := newEnv(t)

	registry := events.NewRegistry()
	registry.Register(events.KindPhase, func(ctx context.Context, entityID string) (any, error) {
		phaseID, err := id.ParsePhaseID(entityID)
		if err != nil {
			return nil, err
		}
		return e.phases.FindByID(ctx, phaseID, store.ScopeAll)
	})

	recorder := events.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inv := NewInvalidator(recorder, e.svc, registry, logger)
	return e, inv, recorder, ctx
}

func (e *env) primeCache(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := e.svc.Get(ctx, e.call.ID)
	require.NoError(t, err)
	require.NotEmpty(t, e.cache.data)
}

func TestInvalidator(t *testing.T) {
	t.Run("call event drops the cached summary and forwards", func(t *testing.T) {
		e, inv, recorder, ctx := newInvalidatorEnv(t)
		e.primeCache(t, ctx)

		err := inv.Emit(ctx, events.Event{
			Name:   events.CallUpdated,
			Entity: events.CallRef(e.call.ID),
		})
		require.NoError(t, err)

		assert.Empty(t, e.cache.data)
		assert.Len(t, recorder.Events(), 1)
	})

	t.Run("phase event uses the call_id field when present", func(t *testing.T) {
		e, inv, _, ctx := newInvalidatorEnv(t)
		e.primeCache(t, ctx)

		err := inv.Emit(ctx, events.Event{
			Name:   events.PhaseCreated,
			Entity: events.PhaseRef(id.NewPhaseID()),
			Fields: map[string]any{"call_id": e.call.ID.String()},
		})
		require.NoError(t, err)
		assert.Empty(t, e.cache.data)
	})

	t.Run("phase event without the field resolves through the registry", func(t *testing.T) {
		e, inv, _, ctx := newInvalidatorEnv(t)
		phase, err := models.NewPhase(id.NewPhaseID(), e.call.ID, models.NewPhaseAttrs{
			Type:  models.PhaseApplications,
			Name:  "Applications",
			Order: 1,
		}, time.Now())
		require.NoError(t, err)
		require.NoError(t, e.phases.Create(ctx, phase))
		e.primeCache(t, ctx)

		err = inv.Emit(ctx, events.Event{
			Name:   events.PhaseDeleted,
			Entity: events.PhaseRef(phase.ID),
		})
		require.NoError(t, err)
		assert.Empty(t, e.cache.data)
	})

	t.Run("unresolvable entity still forwards the event", func(t *testing.T) {
		e, inv, recorder, ctx := newInvalidatorEnv(t)
		e.primeCache(t, ctx)

		err := inv.Emit(ctx, events.Event{
			Name:   events.PhasePurged,
			Entity: events.PhaseRef(id.NewPhaseID()),
		})
		require.NoError(t, err)

		assert.NotEmpty(t, e.cache.data)
		assert.Len(t, recorder.Events(), 1)
	})
}
