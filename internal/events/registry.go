package events

import (
	"context"
	"sync"

	dErrors "convoca/pkg/domain-errors"
)

// Loader hydrates the entity behind a reference. The string id arrives in
// the ref's serialized form; loaders parse it themselves so the registry
// stays ignorant of id types.
type Loader func(ctx context.Context, entityID string) (any, error)

// Registry maps entity-kind tags to loaders. It replaces dynamic type
// lookups for polymorphic references: subscribers that want the entity
// behind an event resolve it here.
type Registry struct {
	mu      sync.RWMutex
	loaders map[Kind]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[Kind]Loader)}
}

// Register binds a loader to a kind, replacing any previous binding.
func (r *Registry) Register(kind Kind, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[kind] = loader
}

// Resolve loads the entity behind ref. Unknown kinds fail with a
// validation code rather than panicking on a missing map entry.
func (r *Registry) Resolve(ctx context.Context, ref Ref) (any, error) {
	r.mu.RLock()
	loader, ok := r.loaders[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "no loader registered for entity kind %q", ref.Kind)
	}
	return loader(ctx, ref.ID)
}
