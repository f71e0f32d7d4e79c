// Package service implements the call lifecycle core: status progression
// and publish/close stamps, the ordered phase sequence with its
// single-current invariant, resolution binding, and the guarded
// trash/restore/purge lifecycle. Stores are pure I/O; every rule lives
// here.
package service

import (
	"context"
	"log/slog"

	"convoca/internal/call/metrics"
	"convoca/internal/call/store"
	"convoca/internal/events"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/requestcontext"
)

const defaultRetryBudget = 3

// Service orchestrates call, phase, and resolution lifecycle operations.
// Callers are assumed to be authorized already; the actor parameter on
// mutating operations exists for attribution, not permission checks.
type Service struct {
	calls       store.CallStore
	phases      store.PhaseStore
	resolutions store.ResolutionStore
	tx          store.Transactor
	logger      *slog.Logger
	publisher   events.Publisher
	metrics     *metrics.Metrics
	retryBudget int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRetryBudget bounds the transparent retries of serialization
// conflicts before they surface to the caller.
func WithRetryBudget(n int) Option {
	return func(s *Service) {
		s.retryBudget = n
	}
}

// New constructs a Service.
func New(calls store.CallStore, phases store.PhaseStore, resolutions store.ResolutionStore, transactor store.Transactor, opts ...Option) *Service {
	s := &Service{
		calls:       calls,
		phases:      phases,
		resolutions: resolutions,
		tx:          transactor,
		retryBudget: defaultRetryBudget,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runTx executes fn in one unit of work, retrying serialization conflicts
// transparently up to the retry budget. Business errors pass through on
// the first attempt.
func (s *Service) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.tx.RunInTx(ctx, fn)
		if err == nil || !dErrors.HasCode(err, dErrors.CodeConcurrencyConflict) {
			return err
		}
		if attempt >= s.retryBudget {
			return err
		}
		if s.metrics != nil {
			s.metrics.ConcurrencyRetries.Inc()
		}
	}
}

// emit logs and publishes a lifecycle event. Delivery is best-effort:
// the operation the event describes has already committed.
func (s *Service) emit(ctx context.Context, name string, entity events.Ref, actor id.ActorID, fields map[string]any) {
	if s.logger != nil {
		attrs := []any{"event", name, "entity_kind", string(entity.Kind), "entity_id", entity.ID}
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		if !actor.IsZero() {
			attrs = append(attrs, "actor_id", actor.String())
		}
		s.logger.InfoContext(ctx, name, attrs...)
	}
	if s.publisher == nil {
		return
	}
	event := events.Event{
		Name:     name,
		Entity:   entity,
		Occurred: requestcontext.Now(ctx),
		Fields:   fields,
	}
	if !actor.IsZero() {
		a := actor
		event.Actor = &a
	}
	if err := s.publisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "emit event failed", "event", name, "error", err)
	}
}

// actorRef converts the explicit actor parameter into the nullable form
// models carry. The zero actor means "not attributed".
func actorRef(actor id.ActorID) *id.ActorID {
	if actor.IsZero() {
		return nil
	}
	a := actor
	return &a
}
