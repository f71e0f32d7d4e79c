package resolution

import (
	"context"
	"sort"
	"sync"
	"time"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	id "convoca/pkg/domain"
)

// InMemory keeps resolutions in a mutex-guarded map.
type InMemory struct {
	mu          sync.RWMutex
	resolutions map[id.ResolutionID]*models.Resolution
}

func NewInMemory() *InMemory {
	return &InMemory{resolutions: make(map[id.ResolutionID]*models.Resolution)}
}

func (s *InMemory) Create(_ context.Context, resolution *models.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *resolution
	s.resolutions[resolution.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, resolutionID id.ResolutionID, scope store.Scope) (*models.Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolution, ok := s.resolutions[resolutionID]
	if !ok || (scope == store.ScopeActive && resolution.IsTrashed()) {
		return nil, store.ErrNotFound
	}
	cp := *resolution
	return &cp, nil
}

func (s *InMemory) ListByCall(_ context.Context, callID id.CallID, scope store.Scope) ([]*models.Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Resolution
	for _, resolution := range s.resolutions {
		if resolution.CallID != callID {
			continue
		}
		if scope == store.ScopeActive && resolution.IsTrashed() {
			continue
		}
		cp := *resolution
		out = append(out, &cp)
	}
	sortByOfficialDate(out)
	return out, nil
}

func (s *InMemory) ListByPhase(_ context.Context, phaseID id.PhaseID, scope store.Scope) ([]*models.Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Resolution
	for _, resolution := range s.resolutions {
		if resolution.PhaseID != phaseID {
			continue
		}
		if scope == store.ScopeActive && resolution.IsTrashed() {
			continue
		}
		cp := *resolution
		out = append(out, &cp)
	}
	sortByOfficialDate(out)
	return out, nil
}

func sortByOfficialDate(resolutions []*models.Resolution) {
	sort.Slice(resolutions, func(i, j int) bool {
		return resolutions[i].OfficialDate.Before(resolutions[j].OfficialDate)
	})
}

func (s *InMemory) Update(_ context.Context, resolution *models.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resolutions[resolution.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *resolution
	s.resolutions[resolution.ID] = &cp
	return nil
}

func (s *InMemory) MarkTrashed(_ context.Context, resolutionID id.ResolutionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolution, ok := s.resolutions[resolutionID]
	if !ok || resolution.IsTrashed() {
		return store.ErrNotFound
	}
	t := at
	resolution.DeletedAt = &t
	resolution.UpdatedAt = at
	return nil
}

func (s *InMemory) Restore(_ context.Context, resolutionID id.ResolutionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolution, ok := s.resolutions[resolutionID]
	if !ok {
		return store.ErrNotFound
	}
	resolution.DeletedAt = nil
	return nil
}

func (s *InMemory) Delete(_ context.Context, resolutionID id.ResolutionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resolutions[resolutionID]; !ok {
		return store.ErrNotFound
	}
	delete(s.resolutions, resolutionID)
	return nil
}

func (s *InMemory) DeleteByCall(_ context.Context, callID id.CallID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for resolutionID, resolution := range s.resolutions {
		if resolution.CallID == callID {
			delete(s.resolutions, resolutionID)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemory) DeleteByPhase(_ context.Context, phaseID id.PhaseID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for resolutionID, resolution := range s.resolutions {
		if resolution.PhaseID == phaseID {
			delete(s.resolutions, resolutionID)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemory) CountByCall(_ context.Context, callID id.CallID, scope store.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, resolution := range s.resolutions {
		if resolution.CallID != callID {
			continue
		}
		if scope == store.ScopeActive && resolution.IsTrashed() {
			continue
		}
		count++
	}
	return count, nil
}

func (s *InMemory) CountByPhase(_ context.Context, phaseID id.PhaseID, scope store.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, resolution := range s.resolutions {
		if resolution.PhaseID != phaseID {
			continue
		}
		if scope == store.ScopeActive && resolution.IsTrashed() {
			continue
		}
		count++
	}
	return count, nil
}

func (s *InMemory) DetachActor(_ context.Context, actorID id.ActorID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := 0
	for _, resolution := range s.resolutions {
		if resolution.CreatedBy != nil && *resolution.CreatedBy == actorID {
			resolution.CreatedBy = nil
			touched++
		}
	}
	return touched, nil
}
