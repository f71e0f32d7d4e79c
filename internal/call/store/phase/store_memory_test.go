package phase

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

func newPhase(t *testing.T, callID id.CallID, name string, order int) *models.Phase {
	t.Helper()
	phase, err := models.NewPhase(id.NewPhaseID(), callID, models.NewPhaseAttrs{
		Type:  models.PhaseApplications,
		Name:  name,
		Order: order,
	}, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return phase
}

func TestInMemoryPhaseStore(t *testing.T) {
	ctx := context.Background()

	t.Run("list orders by the order value", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 3)
		b := newPhase(t, callID, "B", 1)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))

		list, err := s.ListByCall(ctx, callID, store.ScopeActive)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, b.ID, list[0].ID)
		assert.Equal(t, a.ID, list[1].ID)
	})

	t.Run("max order ignores trashed phases", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 1)
		b := newPhase(t, callID, "B", 2)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))
		require.NoError(t, s.MarkTrashed(ctx, b.ID, time.Now()))

		max, err := s.MaxOrder(ctx, callID)
		require.NoError(t, err)
		assert.Equal(t, 1, max)
	})

	t.Run("swap exchanges both orders", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 1)
		b := newPhase(t, callID, "B", 2)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))

		require.NoError(t, s.SwapOrder(ctx, a, b, time.Now()))

		gotA, err := s.FindByID(ctx, a.ID, store.ScopeActive)
		require.NoError(t, err)
		gotB, err := s.FindByID(ctx, b.ID, store.ScopeActive)
		require.NoError(t, err)
		assert.Equal(t, 2, gotA.Order)
		assert.Equal(t, 1, gotB.Order)
	})

	t.Run("swap with a missing phase changes nothing", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 1)
		require.NoError(t, s.Create(ctx, a))

		ghost := newPhase(t, callID, "ghost", 2)
		assert.ErrorIs(t, s.SwapOrder(ctx, a, ghost, time.Now()), store.ErrNotFound)

		got, err := s.FindByID(ctx, a.ID, store.ScopeActive)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Order)
	})

	t.Run("set current clears every sibling", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 1)
		b := newPhase(t, callID, "B", 2)
		other := newPhase(t, id.NewCallID(), "other call", 1)
		other.IsCurrent = true
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))
		require.NoError(t, s.Create(ctx, other))

		require.NoError(t, s.SetCurrent(ctx, callID, a.ID, time.Now()))
		require.NoError(t, s.SetCurrent(ctx, callID, b.ID, time.Now()))

		gotA, err := s.FindByID(ctx, a.ID, store.ScopeActive)
		require.NoError(t, err)
		gotB, err := s.FindByID(ctx, b.ID, store.ScopeActive)
		require.NoError(t, err)
		assert.False(t, gotA.IsCurrent)
		assert.True(t, gotB.IsCurrent)

		// Phases of other calls are untouched.
		gotOther, err := s.FindByID(ctx, other.ID, store.ScopeActive)
		require.NoError(t, err)
		assert.True(t, gotOther.IsCurrent)
	})

	t.Run("set current on a trashed phase fails", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 1)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.MarkTrashed(ctx, a.ID, time.Now()))

		assert.ErrorIs(t, s.SetCurrent(ctx, callID, a.ID, time.Now()), store.ErrNotFound)
	})

	t.Run("delete by call removes trashed rows too", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 1)
		b := newPhase(t, callID, "B", 2)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))
		require.NoError(t, s.MarkTrashed(ctx, b.ID, time.Now()))

		n, err := s.DeleteByCall(ctx, callID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		count, err := s.CountByCall(ctx, callID, store.ScopeAll)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("counts respect scope", func(t *testing.T) {
		s := NewInMemory()
		callID := id.NewCallID()
		a := newPhase(t, callID, "A", 1)
		b := newPhase(t, callID, "B", 2)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))
		require.NoError(t, s.MarkTrashed(ctx, b.ID, time.Now()))

		active, err := s.CountByCall(ctx, callID, store.ScopeActive)
		require.NoError(t, err)
		all, err := s.CountByCall(ctx, callID, store.ScopeAll)
		require.NoError(t, err)
		assert.Equal(t, 1, active)
		assert.Equal(t, 2, all)
	})
}
