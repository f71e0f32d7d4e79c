package events

import (
	"context"
	"log/slog"
)

// AsyncPublisher decouples emitters from a slow sink through a bounded
// channel. A full inbox drops the event rather than stalling the request
// path; lifecycle events are user feedback, not the system of record.
type AsyncPublisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewAsyncPublisher(buffer int, logger *slog.Logger) *AsyncPublisher {
	return &AsyncPublisher{inbox: make(chan Event, buffer), logger: logger}
}

func (p *AsyncPublisher) Emit(_ context.Context, event Event) error {
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("event inbox full, dropping event", "event", event.Name)
		}
	}
	return nil
}

// Run drains the inbox into the sink until the context ends. Sink
// failures are logged and skipped; one bad delivery must not wedge the
// stream.
func (p *AsyncPublisher) Run(ctx context.Context, sink Publisher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.inbox:
			if err := sink.Emit(ctx, event); err != nil && p.logger != nil {
				p.logger.Error("deliver event failed", "event", event.Name, "error", err)
			}
		}
	}
}
