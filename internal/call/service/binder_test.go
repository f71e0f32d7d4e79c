package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/call/models"
	"convoca/internal/events"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/requestcontext"
)

func TestCreateResolution(t *testing.T) {
	t.Run("binds to the call and phase", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		phase := f.createPhase(t, ctx, call.ID, models.PhaseProvisional, "Provisional list")

		res := f.createResolution(t, ctx, call.ID, phase.ID)
		assert.Equal(t, call.ID, res.CallID)
		assert.Equal(t, phase.ID, res.PhaseID)
		assert.Nil(t, res.PublishedAt)
		require.Len(t, f.recorder.Named(events.ResolutionCreated), 1)
	})

	t.Run("rejects a phase belonging to another call", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		other, err := f.svc.CreateCall(ctx, models.NewCallAttrs{
			Title:          "Staff mobility 2026",
			Type:           models.TypeStaff,
			Modality:       models.ModalityShort,
			NumberOfPlaces: 5,
			Destinations:   []string{"Uppsala"},
		}, f.actor)
		require.NoError(t, err)
		foreignPhase := f.createPhase(t, ctx, other.ID, models.PhaseFinal, "Final list")

		_, err = f.svc.CreateResolution(ctx, call.ID, foreignPhase.ID, models.NewResolutionAttrs{
			Type:         models.ResolutionFinal,
			Title:        "Final list of awarded places",
			OfficialDate: f.now,
		}, f.actor)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		// Nothing was written.
		list, err := f.svc.ListResolutionsByCall(ctx, call.ID, true)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("rejects a trashed phase", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		phase := f.createPhase(t, ctx, call.ID, models.PhaseAppeals, "Appeals")
		require.NoError(t, f.svc.SoftDeletePhase(ctx, phase.ID, f.actor))

		_, err := f.svc.CreateResolution(ctx, call.ID, phase.ID, models.NewResolutionAttrs{
			Type:         models.ResolutionAppeals,
			Title:        "Appeals outcome",
			OfficialDate: f.now,
		}, f.actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("missing official date is rejected", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		phase := f.createPhase(t, ctx, call.ID, models.PhaseProvisional, "Provisional list")

		_, err := f.svc.CreateResolution(ctx, call.ID, phase.ID, models.NewResolutionAttrs{
			Type:  models.ResolutionProvisional,
			Title: "Provisional list",
		}, f.actor)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestPublishResolution(t *testing.T) {
	t.Run("first publish stamps, repeats do not", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		phase := f.createPhase(t, ctx, call.ID, models.PhaseProvisional, "Provisional list")
		res := f.createResolution(t, ctx, call.ID, phase.ID)

		published, err := f.svc.PublishResolution(ctx, res.ID, f.actor)
		require.NoError(t, err)
		require.NotNil(t, published.PublishedAt)
		assert.Equal(t, f.now, *published.PublishedAt)

		later := requestcontext.WithTime(ctx, f.now.Add(time.Hour))
		again, err := f.svc.PublishResolution(later, res.ID, f.actor)
		require.NoError(t, err)
		assert.Equal(t, f.now, *again.PublishedAt)

		assert.Len(t, f.recorder.Named(events.ResolutionPublished), 1)
	})
}

func TestResolutionLifecycle(t *testing.T) {
	t.Run("trash and restore", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		phase := f.createPhase(t, ctx, call.ID, models.PhaseProvisional, "Provisional list")
		res := f.createResolution(t, ctx, call.ID, phase.ID)

		require.NoError(t, f.svc.SoftDeleteResolution(ctx, res.ID, f.actor))
		_, err := f.svc.GetResolution(ctx, res.ID, false)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

		require.NoError(t, f.svc.RestoreResolution(ctx, res.ID, f.actor))
		restored, err := f.svc.GetResolution(ctx, res.ID, false)
		require.NoError(t, err)
		assert.False(t, restored.IsTrashed())
	})

	t.Run("purge removes the row", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		phase := f.createPhase(t, ctx, call.ID, models.PhaseProvisional, "Provisional list")
		res := f.createResolution(t, ctx, call.ID, phase.ID)

		require.NoError(t, f.svc.PurgeResolution(ctx, res.ID, f.actor))
		_, err := f.svc.GetResolution(ctx, res.ID, true)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("trashing a resolution unblocks its phase", func(t *testing.T) {
		f, ctx := newFixture(t)
		call := f.createCall(t, ctx)
		phase := f.createPhase(t, ctx, call.ID, models.PhaseProvisional, "Provisional list")
		res := f.createResolution(t, ctx, call.ID, phase.ID)

		require.Error(t, f.svc.SoftDeletePhase(ctx, phase.ID, f.actor))
		require.NoError(t, f.svc.SoftDeleteResolution(ctx, res.ID, f.actor))
		require.NoError(t, f.svc.SoftDeletePhase(ctx, phase.ID, f.actor))
	})
}

func TestListResolutions(t *testing.T) {
	f, ctx := newFixture(t)
	call := f.createCall(t, ctx)
	phaseA := f.createPhase(t, ctx, call.ID, models.PhaseProvisional, "Provisional list")
	phaseB := f.createPhase(t, ctx, call.ID, models.PhaseFinal, "Final list")
	f.createResolution(t, ctx, call.ID, phaseA.ID)
	f.createResolution(t, ctx, call.ID, phaseB.ID)

	byCall, err := f.svc.ListResolutionsByCall(ctx, call.ID, false)
	require.NoError(t, err)
	assert.Len(t, byCall, 2)

	byPhase, err := f.svc.ListResolutionsByPhase(ctx, phaseA.ID, false)
	require.NoError(t, err)
	require.Len(t, byPhase, 1)
	assert.Equal(t, phaseA.ID, byPhase[0].PhaseID)
}
