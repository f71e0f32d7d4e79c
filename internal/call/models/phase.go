package models

import (
	"strings"
	"time"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// PhaseType names the processing stage a phase represents.
type PhaseType string

const (
	PhasePublication   PhaseType = "publication"
	PhaseApplications  PhaseType = "applications"
	PhaseProvisional   PhaseType = "provisional"
	PhaseAppeals       PhaseType = "appeals"
	PhaseFinal         PhaseType = "final"
	PhaseRenunciations PhaseType = "renunciations"
	PhaseWaitingList   PhaseType = "waiting_list"
)

func (t PhaseType) Valid() bool {
	switch t {
	case PhasePublication, PhaseApplications, PhaseProvisional, PhaseAppeals,
		PhaseFinal, PhaseRenunciations, PhaseWaitingList:
		return true
	}
	return false
}

// Phase is a named, ordered stage within a Call's pipeline.
//
// Invariants:
//   - CallID is immutable after construction
//   - Order is unique among the call's non-deleted phases
//   - At most one phase per call has IsCurrent true at any observable
//     instant (enforced transactionally by the sequencer)
//   - EndDate, when present together with StartDate, is after StartDate
type Phase struct {
	ID          id.PhaseID  `json:"id"`
	CallID      id.CallID   `json:"call_id"`
	Type        PhaseType   `json:"phase_type"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	StartDate   *time.Time  `json:"start_date,omitempty"`
	EndDate     *time.Time  `json:"end_date,omitempty"`
	Order       int         `json:"order"`
	IsCurrent   bool        `json:"is_current"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}

// IsTrashed reports whether the phase is soft-deleted.
func (p *Phase) IsTrashed() bool { return p.DeletedAt != nil }

// Overlaps reports whether two phases' date ranges intersect. Phases with
// no dates never overlap. Used for the advisory warning when marking a
// phase current; nothing is ever rejected on overlap.
func (p *Phase) Overlaps(other *Phase) bool {
	if p.StartDate == nil || p.EndDate == nil || other.StartDate == nil || other.EndDate == nil {
		return false
	}
	return p.StartDate.Before(*other.EndDate) && other.StartDate.Before(*p.EndDate)
}

// NewPhaseAttrs carries caller-supplied fields for a new phase. Order zero
// means "assign the next free slot".
type NewPhaseAttrs struct {
	Type        PhaseType
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Order       int
}

// NewPhase constructs a phase owned by callID. The sequencer assigns the
// definitive order before persisting.
func NewPhase(phaseID id.PhaseID, callID id.CallID, attrs NewPhaseAttrs, now time.Time) (*Phase, error) {
	name := strings.TrimSpace(attrs.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "phase name cannot be empty")
	}
	if !attrs.Type.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown phase type %q", attrs.Type)
	}
	if attrs.Order < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "phase order cannot be negative")
	}
	if err := validateDates(attrs.StartDate, attrs.EndDate); err != nil {
		return nil, err
	}
	return &Phase{
		ID:          phaseID,
		CallID:      callID,
		Type:        attrs.Type,
		Name:        name,
		Description: strings.TrimSpace(attrs.Description),
		StartDate:   attrs.StartDate,
		EndDate:     attrs.EndDate,
		Order:       attrs.Order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return dErrors.New(dErrors.CodeInvariantViolation, "phase end date must be after start date")
	}
	return nil
}

// UpdatePhaseAttrs carries the mutable phase fields. Nil pointers leave
// the field untouched; CallID and Order are not updatable here (ownership
// is immutable, ordering goes through the sequencer moves).
type UpdatePhaseAttrs struct {
	Type        *PhaseType
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// Apply copies the set fields onto the phase after re-checking the date
// invariant against the merged values.
func (p *Phase) Apply(attrs UpdatePhaseAttrs, now time.Time) error {
	start, end := p.StartDate, p.EndDate
	if attrs.StartDate != nil {
		start = attrs.StartDate
	}
	if attrs.EndDate != nil {
		end = attrs.EndDate
	}
	if err := validateDates(start, end); err != nil {
		return err
	}
	if attrs.Type != nil {
		if !attrs.Type.Valid() {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown phase type %q", *attrs.Type)
		}
		p.Type = *attrs.Type
	}
	if attrs.Name != nil {
		name := strings.TrimSpace(*attrs.Name)
		if name == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "phase name cannot be empty")
		}
		p.Name = name
	}
	if attrs.Description != nil {
		p.Description = strings.TrimSpace(*attrs.Description)
	}
	p.StartDate = start
	p.EndDate = end
	p.UpdatedAt = now
	return nil
}
