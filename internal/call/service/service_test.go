package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	callstore "convoca/internal/call/store/call"
	phasestore "convoca/internal/call/store/phase"
	resolutionstore "convoca/internal/call/store/resolution"
	"convoca/internal/events"
	id "convoca/pkg/domain"
	"convoca/pkg/requestcontext"
)

type fixture struct {
	svc      *Service
	calls    *callstore.InMemory
	phases   *phasestore.InMemory
	res      *resolutionstore.InMemory
	recorder *events.Recorder
	actor    id.ActorID
	now      time.Time
}

func newFixture(t *testing.T) (*fixture, context.Context) {
	t.Helper()

	f := &fixture{
		calls:    callstore.NewInMemory(),
		phases:   phasestore.NewInMemory(),
		res:      resolutionstore.NewInMemory(),
		recorder: events.NewRecorder(),
		actor:    id.NewActorID(),
		now:      time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.calls, f.phases, f.res, store.NewMemoryTransactor(),
		WithPublisher(f.recorder),
	)
	ctx := requestcontext.WithTime(context.Background(), f.now)
	return f, ctx
}

func (f *fixture) createCall(t *testing.T, ctx context.Context) *models.Call {
	t.Helper()
	call, err := f.svc.CreateCall(ctx, models.NewCallAttrs{
		Title:          "Erasmus 2026 outgoing",
		Type:           models.TypeStudent,
		Modality:       models.ModalityLong,
		ProgramID:      "erasmus",
		NumberOfPlaces: 40,
		Destinations:   []string{"Lisbon", "Ghent"},
	}, f.actor)
	require.NoError(t, err)
	return call
}

func (f *fixture) createPhase(t *testing.T, ctx context.Context, callID id.CallID, phaseType models.PhaseType, name string) *models.Phase {
	t.Helper()
	phase, err := f.svc.CreatePhase(ctx, callID, models.NewPhaseAttrs{
		Type: phaseType,
		Name: name,
	}, f.actor)
	require.NoError(t, err)
	return phase
}

func (f *fixture) createResolution(t *testing.T, ctx context.Context, callID id.CallID, phaseID id.PhaseID) *models.Resolution {
	t.Helper()
	res, err := f.svc.CreateResolution(ctx, callID, phaseID, models.NewResolutionAttrs{
		Type:         models.ResolutionProvisional,
		Title:        "Provisional list of admitted candidates",
		OfficialDate: f.now,
	}, f.actor)
	require.NoError(t, err)
	return res
}
