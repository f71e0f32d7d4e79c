// Package summary serves denormalized call summaries (call plus its
// phase and resolution counts and current phase) through a read-through
// cache, so listing screens do not fan out three queries per row.
package summary

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// CallSummary is the cached projection.
type CallSummary struct {
	ID              id.CallID         `json:"id"`
	Slug            string            `json:"slug"`
	Title           string            `json:"title"`
	Status          models.CallStatus `json:"status"`
	NumberOfPlaces  int               `json:"number_of_places"`
	PhaseCount      int               `json:"phase_count"`
	ResolutionCount int               `json:"resolution_count"`
	CurrentPhase    *PhaseSummary     `json:"current_phase,omitempty"`
	PublishedAt     *time.Time        `json:"published_at,omitempty"`
	ComputedAt      time.Time         `json:"computed_at"`
}

// PhaseSummary is the slice of the current phase worth caching.
type PhaseSummary struct {
	ID        id.PhaseID       `json:"id"`
	Type      models.PhaseType `json:"phase_type"`
	Name      string           `json:"name"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
}

// kv is the narrow cache contract. The redis client satisfies it in
// production; tests plug in a map.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Service computes summaries and keeps the cache coherent.
type Service struct {
	calls       store.CallStore
	phases      store.PhaseStore
	resolutions store.ResolutionStore
	cache       kv
	ttl         time.Duration
	logger      *slog.Logger
}

// New builds the summary service. A nil cache disables caching; every
// read recomputes.
func New(calls store.CallStore, phases store.PhaseStore, resolutions store.ResolutionStore, cache kv, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		calls:       calls,
		phases:      phases,
		resolutions: resolutions,
		cache:       cache,
		ttl:         ttl,
		logger:      logger,
	}
}

func cacheKey(callID id.CallID) string {
	return "convoca:summary:" + callID.String()
}

// Get returns the call's summary, serving from cache when fresh. Cache
// failures degrade to a recompute, never to an error.
func (s *Service) Get(ctx context.Context, callID id.CallID) (*CallSummary, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, cacheKey(callID))
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "summary cache read failed", "error", err)
		}
		if ok {
			var cached CallSummary
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
			// Corrupt entry; fall through and overwrite it.
		}
	}

	summary, err := s.compute(ctx, callID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		raw, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey(callID), raw, s.ttl); err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "summary cache write failed", "error", err)
			}
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary after a lifecycle change. Safe to
// call when caching is off.
func (s *Service) Invalidate(ctx context.Context, callID id.CallID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(callID)); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "summary cache invalidation failed", "error", err)
	}
}

func (s *Service) compute(ctx context.Context, callID id.CallID) (*CallSummary, error) {
	call, err := s.calls.FindByID(ctx, callID, store.ScopeActive)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "call not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
	}

	phases, err := s.phases.ListByCall(ctx, callID, store.ScopeActive)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list phases")
	}
	resolutionCount, err := s.resolutions.CountByCall(ctx, callID, store.ScopeActive)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count resolutions")
	}

	summary := &CallSummary{
		ID:              call.ID,
		Slug:            call.Slug,
		Title:           call.Title,
		Status:          call.Status,
		NumberOfPlaces:  call.NumberOfPlaces,
		PhaseCount:      len(phases),
		ResolutionCount: resolutionCount,
		PublishedAt:     call.PublishedAt,
		ComputedAt:      time.Now().UTC(),
	}
	for _, phase := range phases {
		if phase.IsCurrent {
			summary.CurrentPhase = &PhaseSummary{
				ID:        phase.ID,
				Type:      phase.Type,
				Name:      phase.Name,
				StartDate: phase.StartDate,
				EndDate:   phase.EndDate,
			}
			break
		}
	}
	return summary, nil
}
