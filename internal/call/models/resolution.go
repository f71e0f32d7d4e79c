package models

import (
	"strings"
	"time"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// ResolutionType names the kind of official decision a resolution records.
type ResolutionType string

const (
	ResolutionProvisional ResolutionType = "provisional"
	ResolutionFinal       ResolutionType = "final"
	ResolutionAppeals     ResolutionType = "appeals"
)

func (t ResolutionType) Valid() bool {
	return t == ResolutionProvisional || t == ResolutionFinal || t == ResolutionAppeals
}

// Resolution is an official decision document bound to exactly one Call
// and one of that Call's phases.
//
// Invariant: the referenced phase's call must equal CallID. The binder
// checks this before any write; the postgres store backs it with a
// composite foreign key.
type Resolution struct {
	ID                  id.ResolutionID `json:"id"`
	CallID              id.CallID       `json:"call_id"`
	PhaseID             id.PhaseID      `json:"call_phase_id"`
	Type                ResolutionType  `json:"type"`
	Title               string          `json:"title"`
	Description         string          `json:"description,omitempty"`
	EvaluationProcedure string          `json:"evaluation_procedure,omitempty"`
	OfficialDate        time.Time       `json:"official_date"`
	PublishedAt         *time.Time      `json:"published_at,omitempty"`
	CreatedBy           *id.ActorID     `json:"created_by,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	DeletedAt           *time.Time      `json:"deleted_at,omitempty"`
}

// IsTrashed reports whether the resolution is soft-deleted.
func (r *Resolution) IsTrashed() bool { return r.DeletedAt != nil }

// Publish stamps PublishedAt on first call; repeats are no-ops. Returns
// false when already published so callers can skip the write.
func (r *Resolution) Publish(now time.Time) bool {
	if r.PublishedAt != nil {
		return false
	}
	t := now
	r.PublishedAt = &t
	r.UpdatedAt = now
	return true
}

// NewResolutionAttrs carries caller-supplied fields for a new resolution.
type NewResolutionAttrs struct {
	Type                ResolutionType
	Title               string
	Description         string
	EvaluationProcedure string
	OfficialDate        time.Time
	CreatedBy           *id.ActorID
}

// NewResolution constructs a resolution under the given call and phase.
// The cross-call ownership check is the binder's job; this constructor
// validates only the resolution's own fields.
func NewResolution(resolutionID id.ResolutionID, callID id.CallID, phaseID id.PhaseID, attrs NewResolutionAttrs, now time.Time) (*Resolution, error) {
	title := strings.TrimSpace(attrs.Title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "resolution title cannot be empty")
	}
	if !attrs.Type.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown resolution type %q", attrs.Type)
	}
	if attrs.OfficialDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "resolution official date is required")
	}
	return &Resolution{
		ID:                  resolutionID,
		CallID:              callID,
		PhaseID:             phaseID,
		Type:                attrs.Type,
		Title:               title,
		Description:         strings.TrimSpace(attrs.Description),
		EvaluationProcedure: strings.TrimSpace(attrs.EvaluationProcedure),
		OfficialDate:        attrs.OfficialDate,
		CreatedBy:           attrs.CreatedBy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}
