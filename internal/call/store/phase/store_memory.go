package phase

import (
	"context"
	"sort"
	"sync"
	"time"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	id "convoca/pkg/domain"
)

// InMemory keeps phases in a mutex-guarded map, mirroring the postgres
// store's behavior for service tests.
type InMemory struct {
	mu     sync.RWMutex
	phases map[id.PhaseID]*models.Phase
}

func NewInMemory() *InMemory {
	return &InMemory{phases: make(map[id.PhaseID]*models.Phase)}
}

func (s *InMemory) Create(_ context.Context, phase *models.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *phase
	s.phases[phase.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, phaseID id.PhaseID, scope store.Scope) (*models.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	phase, ok := s.phases[phaseID]
	if !ok || (scope == store.ScopeActive && phase.IsTrashed()) {
		return nil, store.ErrNotFound
	}
	cp := *phase
	return &cp, nil
}

func (s *InMemory) ListByCall(_ context.Context, callID id.CallID, scope store.Scope) ([]*models.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Phase
	for _, phase := range s.phases {
		if phase.CallID != callID {
			continue
		}
		if scope == store.ScopeActive && phase.IsTrashed() {
			continue
		}
		cp := *phase
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *InMemory) MaxOrder(_ context.Context, callID id.CallID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, phase := range s.phases {
		if phase.CallID == callID && !phase.IsTrashed() && phase.Order > max {
			max = phase.Order
		}
	}
	return max, nil
}

func (s *InMemory) Update(_ context.Context, phase *models.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.phases[phase.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *phase
	s.phases[phase.ID] = &cp
	return nil
}

func (s *InMemory) SwapOrder(_ context.Context, a, b *models.Phase, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pa, okA := s.phases[a.ID]
	pb, okB := s.phases[b.ID]
	if !okA || !okB {
		return store.ErrNotFound
	}
	pa.Order, pb.Order = pb.Order, pa.Order
	pa.UpdatedAt, pb.UpdatedAt = at, at
	return nil
}

func (s *InMemory) SetCurrent(_ context.Context, callID id.CallID, phaseID id.PhaseID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.phases[phaseID]
	if !ok || target.IsTrashed() {
		return store.ErrNotFound
	}
	for _, phase := range s.phases {
		if phase.CallID == callID && phase.IsCurrent && phase.ID != phaseID && !phase.IsTrashed() {
			phase.IsCurrent = false
			phase.UpdatedAt = at
		}
	}
	target.IsCurrent = true
	target.UpdatedAt = at
	return nil
}

func (s *InMemory) ClearCurrent(_ context.Context, phaseID id.PhaseID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, ok := s.phases[phaseID]
	if !ok {
		return store.ErrNotFound
	}
	phase.IsCurrent = false
	phase.UpdatedAt = at
	return nil
}

func (s *InMemory) MarkTrashed(_ context.Context, phaseID id.PhaseID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, ok := s.phases[phaseID]
	if !ok || phase.IsTrashed() {
		return store.ErrNotFound
	}
	t := at
	phase.DeletedAt = &t
	phase.UpdatedAt = at
	return nil
}

func (s *InMemory) Restore(_ context.Context, phaseID id.PhaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, ok := s.phases[phaseID]
	if !ok {
		return store.ErrNotFound
	}
	phase.DeletedAt = nil
	return nil
}

func (s *InMemory) Delete(_ context.Context, phaseID id.PhaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.phases[phaseID]; !ok {
		return store.ErrNotFound
	}
	delete(s.phases, phaseID)
	return nil
}

func (s *InMemory) DeleteByCall(_ context.Context, callID id.CallID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phaseID, phase := range s.phases {
		if phase.CallID == callID {
			delete(s.phases, phaseID)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemory) CountByCall(_ context.Context, callID id.CallID, scope store.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, phase := range s.phases {
		if phase.CallID != callID {
			continue
		}
		if scope == store.ScopeActive && phase.IsTrashed() {
			continue
		}
		count++
	}
	return count, nil
}
