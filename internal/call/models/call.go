package models

import (
	"strings"
	"time"
	"unicode"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	pstrings "convoca/pkg/platform/strings"
)

// CallStatus is the administrative status of a Call.
type CallStatus string

const (
	StatusDraft        CallStatus = "draft"
	StatusOpen         CallStatus = "open"
	StatusClosed       CallStatus = "closed"
	StatusUnderScoring CallStatus = "under_scoring"
	StatusResolved     CallStatus = "resolved"
	StatusArchived     CallStatus = "archived"
)

// Valid reports whether s is one of the six known statuses.
func (s CallStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusClosed, StatusUnderScoring, StatusResolved, StatusArchived:
		return true
	}
	return false
}

// CallType classifies who a call is addressed to.
type CallType string

const (
	TypeStudent CallType = "student"
	TypeStaff   CallType = "staff"
)

func (t CallType) Valid() bool { return t == TypeStudent || t == TypeStaff }

// Modality classifies the stay length of a call.
type Modality string

const (
	ModalityShort Modality = "short"
	ModalityLong  Modality = "long"
)

func (m Modality) Valid() bool { return m == ModalityShort || m == ModalityLong }

// Call is the aggregate root for a scholarship/exchange cycle.
//
// Invariants:
//   - Title is non-empty; Slug is non-empty and unique (store-enforced)
//   - NumberOfPlaces >= 1
//   - Destinations has at least one non-blank entry
//   - Status is one of the six known values
//
// Lifecycle is three-state: Active (DeletedAt nil), Trashed (DeletedAt set,
// recoverable), Purged (row gone, irreversible). Trashing a call does NOT
// cascade to phases or resolutions; purging removes all of them atomically.
// The deletion guard in the service layer blocks both while dependent
// records exist.
//
// Status transitions are deliberately unconstrained: any status may move to
// any other through the lifecycle service. This is an administrative
// override capability. CanTransitionTo is the single place to land a
// stricter transition table if one is ever wanted.
type Call struct {
	ID             id.CallID     `json:"id"`
	Slug           string        `json:"slug"`
	Title          string        `json:"title"`
	ProgramID      string        `json:"program_id"`
	AcademicYearID *string       `json:"academic_year_id,omitempty"`
	Type           CallType      `json:"type"`
	Modality       Modality      `json:"modality"`
	NumberOfPlaces int           `json:"number_of_places"`
	Destinations   []string      `json:"destinations"`
	ScoringTable   ScoringTable  `json:"scoring_table"`
	Status         CallStatus    `json:"status"`
	PublishedAt    *time.Time    `json:"published_at,omitempty"`
	ClosedAt       *time.Time    `json:"closed_at,omitempty"`
	CreatedBy      *id.ActorID   `json:"created_by,omitempty"`
	UpdatedBy      *id.ActorID   `json:"updated_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty"`
}

// IsTrashed reports whether the call is soft-deleted.
func (c *Call) IsTrashed() bool { return c.DeletedAt != nil }

// CanTransitionTo reports whether the status may change to target. Every
// transition between known statuses is allowed today.
func (c *Call) CanTransitionTo(target CallStatus) error {
	if !target.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown call status %q", target)
	}
	return nil
}

// ApplyStatus sets the status and owns the publish/close timestamps:
// the first transition to open stamps PublishedAt, the first transition to
// closed stamps ClosedAt. Repeating a transition never re-stamps.
// Returns false when the call was already in the target status with its
// stamp in place, so callers can skip the write.
func (c *Call) ApplyStatus(target CallStatus, now time.Time) bool {
	changed := c.Status != target
	c.Status = target
	switch target {
	case StatusOpen:
		if c.PublishedAt == nil {
			t := now
			c.PublishedAt = &t
			changed = true
		}
	case StatusClosed:
		if c.ClosedAt == nil {
			t := now
			c.ClosedAt = &t
			changed = true
		}
	}
	if changed {
		c.UpdatedAt = now
	}
	return changed
}

// NewCallAttrs carries the caller-supplied fields for a new call. The
// validation layer upstream guarantees formats and referential existence;
// the constructor re-checks only the invariants this core owns.
type NewCallAttrs struct {
	Title          string
	Slug           string
	ProgramID      string
	AcademicYearID *string
	Type           CallType
	Modality       Modality
	NumberOfPlaces int
	Destinations   []string
	ScoringTable   ScoringTable
	CreatedBy      *id.ActorID
}

// NewCall constructs a Call in draft status. The slug is derived from the
// title when absent.
func NewCall(callID id.CallID, attrs NewCallAttrs, now time.Time) (*Call, error) {
	title := strings.TrimSpace(attrs.Title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "call title cannot be empty")
	}
	if !attrs.Type.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown call type %q", attrs.Type)
	}
	if !attrs.Modality.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown call modality %q", attrs.Modality)
	}
	if attrs.NumberOfPlaces < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "number of places must be at least 1")
	}
	destinations := pstrings.DedupeFold(attrs.Destinations)
	if len(destinations) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "at least one destination is required")
	}

	slug := strings.TrimSpace(attrs.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "call slug cannot be derived from title")
	}

	return &Call{
		ID:             callID,
		Slug:           slug,
		Title:          title,
		ProgramID:      attrs.ProgramID,
		AcademicYearID: attrs.AcademicYearID,
		Type:           attrs.Type,
		Modality:       attrs.Modality,
		NumberOfPlaces: attrs.NumberOfPlaces,
		Destinations:   destinations,
		ScoringTable:   attrs.ScoringTable,
		Status:         StatusDraft,
		CreatedBy:      attrs.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Slugify folds a title into a URL-safe slug: lowercase, spaces and
// punctuation collapsed to single dashes, everything non-alphanumeric
// dropped.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
