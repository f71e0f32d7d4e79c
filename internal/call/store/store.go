// Package store defines the persistence contracts for the call module.
// Implementations are pure I/O; ordering rules, the single-current
// invariant, and deletion guards live in the service layer. Multi-row
// mutations run inside a transaction carried through the context so the
// postgres stores of all three entities share one unit of work.
package store

import (
	"context"
	"time"

	"convoca/internal/call/models"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// ErrNotFound keeps storage 404s consistent across the in-memory and
// postgres implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// Scope selects which lifecycle states a read or count touches. Default
// queries exclude trashed rows; purge checks count everything.
type Scope int

const (
	// ScopeActive covers only rows that are not soft-deleted.
	ScopeActive Scope = iota
	// ScopeAll covers active and trashed rows.
	ScopeAll
)

// CallFilter narrows call listings.
type CallFilter struct {
	Status         *models.CallStatus
	AcademicYearID *string
	IncludeTrashed bool
}

// Scope translates the trashed-inclusion flag for count/list helpers.
func (f CallFilter) Scope() Scope {
	if f.IncludeTrashed {
		return ScopeAll
	}
	return ScopeActive
}

// CallStore persists Call aggregates.
type CallStore interface {
	// Create inserts a call, failing with a conflict code when the slug
	// is already taken.
	Create(ctx context.Context, call *models.Call) error
	FindByID(ctx context.Context, callID id.CallID, scope Scope) (*models.Call, error)
	FindBySlug(ctx context.Context, slug string) (*models.Call, error)
	List(ctx context.Context, filter CallFilter) ([]*models.Call, error)
	Update(ctx context.Context, call *models.Call) error
	// Lock serializes writers on one call's aggregate. In postgres this
	// takes a row lock on the call; callers must hold a transaction in
	// the context. Returns ErrNotFound when the call row is gone.
	Lock(ctx context.Context, callID id.CallID) error
	MarkTrashed(ctx context.Context, callID id.CallID, at time.Time) error
	Restore(ctx context.Context, callID id.CallID) error
	// Delete removes the call row only; cascade is the service's job so
	// it stays observable and transactional.
	Delete(ctx context.Context, callID id.CallID) error
	// DetachActor nulls created_by/updated_by references to a removed
	// actor, returning how many rows were touched.
	DetachActor(ctx context.Context, actorID id.ActorID) (int, error)
}

// PhaseStore persists the phases of calls.
type PhaseStore interface {
	Create(ctx context.Context, phase *models.Phase) error
	FindByID(ctx context.Context, phaseID id.PhaseID, scope Scope) (*models.Phase, error)
	// ListByCall returns phases ordered by their order value.
	ListByCall(ctx context.Context, callID id.CallID, scope Scope) ([]*models.Phase, error)
	// MaxOrder returns the highest order among a call's non-deleted
	// phases, 0 when it has none.
	MaxOrder(ctx context.Context, callID id.CallID) (int, error)
	Update(ctx context.Context, phase *models.Phase) error
	// SwapOrder exchanges the order values of two phases of one call in
	// a single atomic statement.
	SwapOrder(ctx context.Context, a, b *models.Phase, at time.Time) error
	// SetCurrent clears is_current on every other non-deleted phase of
	// the call and sets it on the target.
	SetCurrent(ctx context.Context, callID id.CallID, phaseID id.PhaseID, at time.Time) error
	// ClearCurrent unsets is_current on the target phase only.
	ClearCurrent(ctx context.Context, phaseID id.PhaseID, at time.Time) error
	MarkTrashed(ctx context.Context, phaseID id.PhaseID, at time.Time) error
	Restore(ctx context.Context, phaseID id.PhaseID) error
	Delete(ctx context.Context, phaseID id.PhaseID) error
	DeleteByCall(ctx context.Context, callID id.CallID) (int, error)
	CountByCall(ctx context.Context, callID id.CallID, scope Scope) (int, error)
}

// ResolutionStore persists resolutions.
type ResolutionStore interface {
	Create(ctx context.Context, resolution *models.Resolution) error
	FindByID(ctx context.Context, resolutionID id.ResolutionID, scope Scope) (*models.Resolution, error)
	ListByCall(ctx context.Context, callID id.CallID, scope Scope) ([]*models.Resolution, error)
	ListByPhase(ctx context.Context, phaseID id.PhaseID, scope Scope) ([]*models.Resolution, error)
	Update(ctx context.Context, resolution *models.Resolution) error
	MarkTrashed(ctx context.Context, resolutionID id.ResolutionID, at time.Time) error
	Restore(ctx context.Context, resolutionID id.ResolutionID) error
	Delete(ctx context.Context, resolutionID id.ResolutionID) error
	DeleteByCall(ctx context.Context, callID id.CallID) (int, error)
	DeleteByPhase(ctx context.Context, phaseID id.PhaseID) (int, error)
	CountByCall(ctx context.Context, callID id.CallID, scope Scope) (int, error)
	CountByPhase(ctx context.Context, phaseID id.PhaseID, scope Scope) (int, error)
	DetachActor(ctx context.Context, actorID id.ActorID) (int, error)
}

// Transactor runs fn inside one unit of work. The postgres implementation
// opens a database transaction and carries it through the context; the
// in-memory implementation serializes on a mutex. Serialization failures
// surface with the concurrency-conflict code so the service can retry.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
