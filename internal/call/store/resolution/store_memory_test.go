package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	id "convoca/pkg/domain"
)

func newResolution(t *testing.T, callID id.CallID, phaseID id.PhaseID, title string, official time.Time) *models.Resolution {
	t.Helper()
	res, err := models.NewResolution(id.NewResolutionID(), callID, phaseID, models.NewResolutionAttrs{
		Type:         models.ResolutionProvisional,
		Title:        title,
		OfficialDate: official,
	}, official)
	require.NoError(t, err)
	return res
}

func TestInMemoryResolutionStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("lists sort by official date", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		phaseID := id.NewPhaseID()
		later := newResolution(t, callID, phaseID, "Final list", base.Add(48*time.Hour))
		earlier := newResolution(t, callID, phaseID, "Provisional list", base)
		require.NoError(t, s.Create(ctx, later))
		require.NoError(t, s.Create(ctx, earlier))

		byCall, err := s.ListByCall(ctx, callID, store.ScopeActive)
		require.NoError(t, err)
		require.Len(t, byCall, 2)
		assert.Equal(t, earlier.ID, byCall[0].ID)

		byPhase, err := s.ListByPhase(ctx, phaseID, store.ScopeActive)
		require.NoError(t, err)
		require.Len(t, byPhase, 2)
	})

	t.Run("counts by phase respect scope", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		phaseID := id.NewPhaseID()
		a := newResolution(t, callID, phaseID, "Provisional list", base)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.MarkTrashed(ctx, a.ID, base.Add(time.Hour)))

		active, err := s.CountByPhase(ctx, phaseID, store.ScopeActive)
		require.NoError(t, err)
		all, err := s.CountByPhase(ctx, phaseID, store.ScopeAll)
		require.NoError(t, err)
		assert.Zero(t, active)
		assert.Equal(t, 1, all)
	})

	t.Run("delete by phase removes only that phase's rows", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		phaseA := id.NewPhaseID()
		phaseB := id.NewPhaseID()
		require.NoError(t, s.Create(ctx, newResolution(t, callID, phaseA, "Provisional list", base)))
		require.NoError(t, s.Create(ctx, newResolution(t, callID, phaseB, "Final list", base)))

		n, err := s.DeleteByPhase(ctx, phaseA)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		remaining, err := s.CountByCall(ctx, callID, store.ScopeAll)
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)
	})

	t.Run("detach actor nulls created_by", func(t *testing.T) {
		s := NewInMemory()
		actor := id.NewActorID()
		res := newResolution(t, id.NewCallID(), id.NewPhaseID(), "Provisional list", base)
		res.CreatedBy = &actor
		require.NoError(t, s.Create(ctx, res))

		n, err := s.DetachActor(ctx, actor)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.FindByID(ctx, res.ID, store.ScopeActive)
		require.NoError(t, err)
		assert.Nil(t, got.CreatedBy)
	})
}
