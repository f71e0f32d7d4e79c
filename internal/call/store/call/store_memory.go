package call

import (
	"context"
	"sort"
	"sync"
	"time"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// InMemory keeps calls in a mutex-guarded map. It mirrors the postgres
// store's observable behavior, including the slug uniqueness conflict,
// so services can be tested without a database.
type InMemory struct {
	mu    sync.RWMutex
	calls map[id.CallID]*models.Call
}

func NewInMemory() *InMemory {
	return &InMemory{calls: make(map[id.CallID]*models.Call)}
}

// clone copies the aggregate including its slice fields, so callers can
// never reach the stored record through a returned value.
func clone(call *models.Call) *models.Call {
	cp := *call
	cp.Destinations = append([]string(nil), call.Destinations...)
	cp.ScoringTable = append(models.ScoringTable(nil), call.ScoringTable...)
	return &cp
}

func (s *InMemory) Create(_ context.Context, call *models.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.calls {
		if existing.Slug == call.Slug {
			return dErrors.New(dErrors.CodeConflict, "call slug must be unique")
		}
	}
	s.calls[call.ID] = clone(call)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, callID id.CallID, scope store.Scope) (*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.calls[callID]
	if !ok || (scope == store.ScopeActive && call.IsTrashed()) {
		return nil, store.ErrNotFound
	}
	return clone(call), nil
}

func (s *InMemory) FindBySlug(_ context.Context, slug string) (*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, call := range s.calls {
		if call.Slug == slug && !call.IsTrashed() {
			return clone(call), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *InMemory) List(_ context.Context, filter store.CallFilter) ([]*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Call, 0, len(s.calls))
	for _, call := range s.calls {
		if call.IsTrashed() && !filter.IncludeTrashed {
			continue
		}
		if filter.Status != nil && call.Status != *filter.Status {
			continue
		}
		if filter.AcademicYearID != nil {
			if call.AcademicYearID == nil || *call.AcademicYearID != *filter.AcademicYearID {
				continue
			}
		}
		out = append(out, clone(call))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) Update(_ context.Context, call *models.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calls[call.ID]; !ok {
		return store.ErrNotFound
	}
	s.calls[call.ID] = clone(call)
	return nil
}

// Lock is an existence check here; the memory transactor already
// serializes writers globally.
func (s *InMemory) Lock(_ context.Context, callID id.CallID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.calls[callID]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *InMemory) MarkTrashed(_ context.Context, callID id.CallID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok || call.IsTrashed() {
		return store.ErrNotFound
	}
	t := at
	call.DeletedAt = &t
	call.UpdatedAt = at
	return nil
}

func (s *InMemory) Restore(_ context.Context, callID id.CallID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[callID]
	if !ok {
		return store.ErrNotFound
	}
	call.DeletedAt = nil
	return nil
}

func (s *InMemory) Delete(_ context.Context, callID id.CallID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calls[callID]; !ok {
		return store.ErrNotFound
	}
	delete(s.calls, callID)
	return nil
}

func (s *InMemory) DetachActor(_ context.Context, actorID id.ActorID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := 0
	for _, call := range s.calls {
		changed := false
		if call.CreatedBy != nil && *call.CreatedBy == actorID {
			call.CreatedBy = nil
			changed = true
		}
		if call.UpdatedBy != nil && *call.UpdatedBy == actorID {
			call.UpdatedBy = nil
			changed = true
		}
		if changed {
			touched++
		}
	}
	return touched, nil
}
