package handler

import (
	"time"

	"convoca/internal/call/models"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

type createCallRequest struct {
	Title          string              `json:"title"`
	Slug           string              `json:"slug"`
	ProgramID      string              `json:"program_id"`
	AcademicYearID *string             `json:"academic_year_id"`
	Type           string              `json:"type"`
	Modality       string              `json:"modality"`
	NumberOfPlaces int                 `json:"number_of_places"`
	Destinations   []string            `json:"destinations"`
	ScoringTable   models.ScoringTable `json:"scoring_table"`
}

func (r createCallRequest) attrs() models.NewCallAttrs {
	return models.NewCallAttrs{
		Title:          r.Title,
		Slug:           r.Slug,
		ProgramID:      r.ProgramID,
		AcademicYearID: r.AcademicYearID,
		Type:           models.CallType(r.Type),
		Modality:       models.Modality(r.Modality),
		NumberOfPlaces: r.NumberOfPlaces,
		Destinations:   r.Destinations,
		ScoringTable:   r.ScoringTable,
	}
}

type updateCallRequest struct {
	Title          *string              `json:"title"`
	ProgramID      *string              `json:"program_id"`
	AcademicYearID *string              `json:"academic_year_id"`
	NumberOfPlaces *int                 `json:"number_of_places"`
	Destinations   []string             `json:"destinations"`
	ScoringTable   *models.ScoringTable `json:"scoring_table"`
}

func (r updateCallRequest) attrs() models.UpdateCallAttrs {
	attrs := models.UpdateCallAttrs{
		Title:          r.Title,
		ProgramID:      r.ProgramID,
		AcademicYearID: r.AcademicYearID,
		NumberOfPlaces: r.NumberOfPlaces,
		ScoringTable:   r.ScoringTable,
	}
	if r.Destinations != nil {
		attrs.Destinations = &r.Destinations
	}
	return attrs
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type createPhaseRequest struct {
	Type        string     `json:"phase_type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Order       int        `json:"order"`
}

func (r createPhaseRequest) attrs() models.NewPhaseAttrs {
	return models.NewPhaseAttrs{
		Type:        models.PhaseType(r.Type),
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Order:       r.Order,
	}
}

type updatePhaseRequest struct {
	Type        *string    `json:"phase_type"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (r updatePhaseRequest) attrs() models.UpdatePhaseAttrs {
	attrs := models.UpdatePhaseAttrs{
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
	}
	if r.Type != nil {
		t := models.PhaseType(*r.Type)
		attrs.Type = &t
	}
	return attrs
}

type createResolutionRequest struct {
	Type                string    `json:"type"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	EvaluationProcedure string    `json:"evaluation_procedure"`
	OfficialDate        time.Time `json:"official_date"`
}

func (r createResolutionRequest) attrs() models.NewResolutionAttrs {
	return models.NewResolutionAttrs{
		Type:                models.ResolutionType(r.Type),
		Title:               r.Title,
		Description:         r.Description,
		EvaluationProcedure: r.EvaluationProcedure,
		OfficialDate:        r.OfficialDate,
	}
}

func callIDParam(raw string) (id.CallID, error) {
	callID, err := id.ParseCallID(raw)
	if err != nil {
		return id.CallID{}, dErrors.New(dErrors.CodeValidation, "invalid call id")
	}
	return callID, nil
}

func phaseIDParam(raw string) (id.PhaseID, error) {
	phaseID, err := id.ParsePhaseID(raw)
	if err != nil {
		return id.PhaseID{}, dErrors.New(dErrors.CodeValidation, "invalid phase id")
	}
	return phaseID, nil
}

func resolutionIDParam(raw string) (id.ResolutionID, error) {
	resolutionID, err := id.ParseResolutionID(raw)
	if err != nil {
		return id.ResolutionID{}, dErrors.New(dErrors.CodeValidation, "invalid resolution id")
	}
	return resolutionID, nil
}
