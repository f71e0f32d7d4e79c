package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	callstore "convoca/internal/call/store/call"
	phasestore "convoca/internal/call/store/phase"
	resolutionstore "convoca/internal/call/store/resolution"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/requestcontext"
)

// flakyTransactor fails the first N units of work with a serialization
// conflict, then delegates to a real in-memory transactor.
type flakyTransactor struct {
	inner    *store.MemoryTransactor
	failures int
	attempts int
}

func (t *flakyTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.attempts++
	if t.attempts <= t.failures {
		return dErrors.New(dErrors.CodeConcurrencyConflict, "could not serialize access")
	}
	return t.inner.RunInTx(ctx, fn)
}

func newRetryFixture(t *testing.T, failures int, opts ...Option) (*Service, *flakyTransactor, *models.Call, context.Context) {
	t.Helper()

	tx := &flakyTransactor{inner: store.NewMemoryTransactor(), failures: failures}
	svc := New(callstore.NewInMemory(), phasestore.NewInMemory(), resolutionstore.NewInMemory(), tx, opts...)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	call, err := svc.CreateCall(ctx, models.NewCallAttrs{
		Title:          "Erasmus 2026 outgoing",
		Type:           models.TypeStudent,
		Modality:       models.ModalityLong,
		ProgramID:      "erasmus",
		Destinations:   []string{"Uppsala"},
		NumberOfPlaces: 40,
	}, id.NewActorID())
	require.NoError(t, err)
	require.Zero(t, tx.attempts)
	return svc, tx, call, ctx
}

func TestRunTxRetries(t *testing.T) {
	attrs := models.NewPhaseAttrs{Type: models.PhaseApplications, Name: "Applications"}

	t.Run("serialization conflicts are retried until success", func(t *testing.T) {
		svc, tx, call, ctx := newRetryFixture(t, 2)

		phase, err := svc.CreatePhase(ctx, call.ID, attrs, id.NewActorID())
		require.NoError(t, err)
		assert.Equal(t, 1, phase.Order)
		assert.Equal(t, 3, tx.attempts)
	})

	t.Run("conflict surfaces once the budget is spent", func(t *testing.T) {
		svc, tx, call, ctx := newRetryFixture(t, 10, WithRetryBudget(1))

		_, err := svc.CreatePhase(ctx, call.ID, attrs, id.NewActorID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
		assert.Equal(t, 2, tx.attempts)
	})

	t.Run("business errors pass through on the first attempt", func(t *testing.T) {
		svc, tx, _, ctx := newRetryFixture(t, 0)

		_, err := svc.CreatePhase(ctx, id.NewCallID(), attrs, id.NewActorID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		assert.Equal(t, 1, tx.attempts)
	})
}
