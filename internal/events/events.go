// Package events carries the named lifecycle events the call module emits
// after each successful or rejected operation. Subscribers (UI feedback,
// logging, messaging) consume them; the core never depends on how they
// are rendered.
package events

import (
	"time"

	id "convoca/pkg/domain"
)

// Event names. Rejections are events too so subscribers can surface them
// as user feedback.
const (
	CallCreated        = "call.created"
	CallUpdated        = "call.updated"
	CallStatusChanged  = "call.status_changed"
	CallPublished      = "call.published"
	CallDeleted        = "call.deleted"
	CallDeleteRejected = "call.delete.rejected"
	CallRestored       = "call.restored"
	CallPurged         = "call.purged"

	PhaseCreated        = "phase.created"
	PhaseUpdated        = "phase.updated"
	PhaseReordered      = "phase.reordered"
	PhaseCurrentChanged = "phase.current_changed"
	PhaseDeleted        = "phase.deleted"
	PhaseDeleteRejected = "phase.delete.rejected"
	PhaseRestored       = "phase.restored"
	PhasePurged         = "phase.purged"

	ResolutionCreated   = "resolution.created"
	ResolutionPublished = "resolution.published"
	ResolutionDeleted   = "resolution.deleted"
	ResolutionRestored  = "resolution.restored"
	ResolutionPurged    = "resolution.purged"
)

// Kind tags the entity a reference points at.
type Kind string

const (
	KindCall       Kind = "call"
	KindPhase      Kind = "phase"
	KindResolution Kind = "resolution"
)

// Ref is a polymorphic entity reference: a type tag plus the entity's id
// in string form. Consumers resolve refs through a Registry instead of
// dynamic type lookups.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// CallRef builds a reference to a call.
func CallRef(callID id.CallID) Ref { return Ref{Kind: KindCall, ID: callID.String()} }

// PhaseRef builds a reference to a phase.
func PhaseRef(phaseID id.PhaseID) Ref { return Ref{Kind: KindPhase, ID: phaseID.String()} }

// ResolutionRef builds a reference to a resolution.
func ResolutionRef(resolutionID id.ResolutionID) Ref {
	return Ref{Kind: KindResolution, ID: resolutionID.String()}
}

// Event is emitted from domain logic after every operation worth telling
// a subscriber about. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	Name     string         `json:"name"`
	Entity   Ref            `json:"entity"`
	Actor    *id.ActorID    `json:"actor,omitempty"`
	Occurred time.Time      `json:"occurred"`
	Fields   map[string]any `json:"fields,omitempty"`
}
