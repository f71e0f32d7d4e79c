package models

import (
	"strings"
	"time"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	pstrings "convoca/pkg/platform/strings"
)

// UpdateCallAttrs carries the mutable call fields. Nil pointers leave the
// field untouched. Status is not updatable here; it goes through the
// lifecycle so the publish/close stamps stay owned in one place.
type UpdateCallAttrs struct {
	Title          *string
	ProgramID      *string
	AcademicYearID *string
	NumberOfPlaces *int
	Destinations   *[]string
	ScoringTable   *ScoringTable
}

// ApplyUpdate copies the set fields onto the call, re-checking the
// invariants this core owns, and stamps updated_by.
func (c *Call) ApplyUpdate(attrs UpdateCallAttrs, actor *id.ActorID, now time.Time) error {
	if attrs.Title != nil {
		title := strings.TrimSpace(*attrs.Title)
		if title == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "call title cannot be empty")
		}
		c.Title = title
	}
	if attrs.ProgramID != nil {
		c.ProgramID = *attrs.ProgramID
	}
	if attrs.AcademicYearID != nil {
		if *attrs.AcademicYearID == "" {
			c.AcademicYearID = nil
		} else {
			c.AcademicYearID = attrs.AcademicYearID
		}
	}
	if attrs.NumberOfPlaces != nil {
		if *attrs.NumberOfPlaces < 1 {
			return dErrors.New(dErrors.CodeInvariantViolation, "number of places must be at least 1")
		}
		c.NumberOfPlaces = *attrs.NumberOfPlaces
	}
	if attrs.Destinations != nil {
		destinations := pstrings.DedupeFold(*attrs.Destinations)
		if len(destinations) == 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, "at least one destination is required")
		}
		c.Destinations = destinations
	}
	if attrs.ScoringTable != nil {
		c.ScoringTable = *attrs.ScoringTable
	}
	c.UpdatedBy = actor
	c.UpdatedAt = now
	return nil
}
