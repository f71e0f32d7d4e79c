// Package domain holds the typed identifiers shared across modules.
//
// Each entity gets its own UUID-backed type so a PhaseID can never be passed
// where a CallID is expected. Parse helpers return coded errors so transport
// layers can map bad identifiers to 400s without inspecting strings.
package domain

import (
	"github.com/google/uuid"

	dErrors "convoca/pkg/domain-errors"
)

// CallID identifies a Call (convocatoria), the aggregate root.
type CallID uuid.UUID

// PhaseID identifies a Phase within a Call.
type PhaseID uuid.UUID

// ResolutionID identifies a Resolution bound to a Call and Phase.
type ResolutionID uuid.UUID

// ActorID identifies the administrative user performing an operation.
// It is a weak reference: rows keep a nullable actor column that is set to
// null when the actor is removed.
type ActorID uuid.UUID

// NewCallID returns a fresh Call identifier.
func NewCallID() CallID { return CallID(uuid.New()) }

// NewPhaseID returns a fresh Phase identifier.
func NewPhaseID() PhaseID { return PhaseID(uuid.New()) }

// NewResolutionID returns a fresh Resolution identifier.
func NewResolutionID() ResolutionID { return ResolutionID(uuid.New()) }

// NewActorID returns a fresh Actor identifier.
func NewActorID() ActorID { return ActorID(uuid.New()) }

func (id CallID) String() string       { return uuid.UUID(id).String() }
func (id PhaseID) String() string      { return uuid.UUID(id).String() }
func (id ResolutionID) String() string { return uuid.UUID(id).String() }
func (id ActorID) String() string      { return uuid.UUID(id).String() }

func (id CallID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id PhaseID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ResolutionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so ids render as canonical
// UUID strings in JSON payloads and log attributes.
func (id CallID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id PhaseID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ResolutionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ActorID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *CallID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid call id")
	}
	*id = CallID(u)
	return nil
}

func (id *PhaseID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid phase id")
	}
	*id = PhaseID(u)
	return nil
}

func (id *ResolutionID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid resolution id")
	}
	*id = ResolutionID(u)
	return nil
}

func (id *ActorID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid actor id")
	}
	*id = ActorID(u)
	return nil
}

// ParseCallID parses a Call identifier from its string form.
func ParseCallID(s string) (CallID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CallID{}, dErrors.New(dErrors.CodeValidation, "invalid call id")
	}
	return CallID(u), nil
}

// ParsePhaseID parses a Phase identifier from its string form.
func ParsePhaseID(s string) (PhaseID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PhaseID{}, dErrors.New(dErrors.CodeValidation, "invalid phase id")
	}
	return PhaseID(u), nil
}

// ParseResolutionID parses a Resolution identifier from its string form.
func ParseResolutionID(s string) (ResolutionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ResolutionID{}, dErrors.New(dErrors.CodeValidation, "invalid resolution id")
	}
	return ResolutionID(u), nil
}

// ParseActorID parses an Actor identifier from its string form.
func ParseActorID(s string) (ActorID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ActorID{}, dErrors.New(dErrors.CodeValidation, "invalid actor id")
	}
	return ActorID(u), nil
}
