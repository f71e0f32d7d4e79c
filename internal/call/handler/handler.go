// Package handler exposes the call lifecycle over HTTP. It is a thin
// layer: decode, delegate to the service, encode. No business rules.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"convoca/internal/call/models"
	"convoca/internal/call/service"
	"convoca/internal/call/store"
	"convoca/internal/platform/middleware"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/requestcontext"
)

// Service is the slice of the call service the HTTP layer needs.
type Service interface {
	CreateCall(ctx context.Context, attrs models.NewCallAttrs, actor id.ActorID) (*models.Call, error)
	GetCall(ctx context.Context, callID id.CallID, includeTrashed bool) (*models.Call, error)
	GetCallBySlug(ctx context.Context, slug string) (*models.Call, error)
	ListCalls(ctx context.Context, filter store.CallFilter) ([]*models.Call, error)
	UpdateCall(ctx context.Context, callID id.CallID, attrs models.UpdateCallAttrs, actor id.ActorID) (*models.Call, error)
	ChangeStatus(ctx context.Context, callID id.CallID, target models.CallStatus, actor id.ActorID) (*models.Call, error)
	PublishCall(ctx context.Context, callID id.CallID, actor id.ActorID) (*models.Call, error)
	SoftDeleteCall(ctx context.Context, callID id.CallID, actor id.ActorID) error
	RestoreCall(ctx context.Context, callID id.CallID, actor id.ActorID) error
	PurgeCall(ctx context.Context, callID id.CallID, actor id.ActorID) error

	CreatePhase(ctx context.Context, callID id.CallID, attrs models.NewPhaseAttrs, actor id.ActorID) (*models.Phase, error)
	GetPhase(ctx context.Context, phaseID id.PhaseID, includeTrashed bool) (*models.Phase, error)
	ListPhases(ctx context.Context, callID id.CallID, includeTrashed bool) ([]*models.Phase, error)
	UpdatePhase(ctx context.Context, phaseID id.PhaseID, attrs models.UpdatePhaseAttrs, actor id.ActorID) (*models.Phase, error)
	MovePhase(ctx context.Context, phaseID id.PhaseID, direction service.MoveDirection, actor id.ActorID) ([]*models.Phase, error)
	MarkPhaseCurrent(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) ([]*models.Phase, error)
	UnmarkPhaseCurrent(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error
	SoftDeletePhase(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error
	RestorePhase(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error
	PurgePhase(ctx context.Context, phaseID id.PhaseID, actor id.ActorID) error

	CreateResolution(ctx context.Context, callID id.CallID, phaseID id.PhaseID, attrs models.NewResolutionAttrs, actor id.ActorID) (*models.Resolution, error)
	GetResolution(ctx context.Context, resolutionID id.ResolutionID, includeTrashed bool) (*models.Resolution, error)
	ListResolutionsByCall(ctx context.Context, callID id.CallID, includeTrashed bool) ([]*models.Resolution, error)
	ListResolutionsByPhase(ctx context.Context, phaseID id.PhaseID, includeTrashed bool) ([]*models.Resolution, error)
	PublishResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) (*models.Resolution, error)
	SoftDeleteResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) error
	RestoreResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) error
	PurgeResolution(ctx context.Context, resolutionID id.ResolutionID, actor id.ActorID) error

	DetachActor(ctx context.Context, actorID id.ActorID) (int, error)
}

// Handler handles the call, phase, and resolution endpoints.
type Handler struct {
	logger    *slog.Logger
	svc       Service
	validator middleware.TokenValidator
}

// New creates a call Handler. A nil validator disables authentication,
// which only tests should do.
func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		svc:       svc,
		validator: validator,
	}
}

// Register mounts the routes on the parent router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	if h.validator != nil {
		router.Use(middleware.RequireActor(h.validator, h.logger))
	}

	router.Route("/calls", func(r chi.Router) {
		r.Post("/", h.handleCreateCall)
		r.Get("/", h.handleListCalls)
		r.Get("/slug/{slug}", h.handleGetCallBySlug)

		r.Route("/{callID}", func(r chi.Router) {
			r.Get("/", h.handleGetCall)
			r.Patch("/", h.handleUpdateCall)
			r.Post("/status", h.handleChangeStatus)
			r.Post("/publish", h.handlePublishCall)
			r.Delete("/", h.handleSoftDeleteCall)
			r.Post("/restore", h.handleRestoreCall)
			r.Delete("/purge", h.handlePurgeCall)

			r.Post("/phases", h.handleCreatePhase)
			r.Get("/phases", h.handleListPhases)
			r.Get("/resolutions", h.handleListResolutionsByCall)
			r.Post("/phases/{phaseID}/resolutions", h.handleCreateResolution)
		})
	})

	router.Route("/phases/{phaseID}", func(r chi.Router) {
		r.Get("/", h.handleGetPhase)
		r.Patch("/", h.handleUpdatePhase)
		r.Post("/move-up", h.handleMovePhaseUp)
		r.Post("/move-down", h.handleMovePhaseDown)
		r.Put("/current", h.handleMarkCurrent)
		r.Delete("/current", h.handleUnmarkCurrent)
		r.Delete("/", h.handleSoftDeletePhase)
		r.Post("/restore", h.handleRestorePhase)
		r.Delete("/purge", h.handlePurgePhase)
		r.Get("/resolutions", h.handleListResolutionsByPhase)
	})

	router.Delete("/actors/{actorID}/references", h.handleDetachActor)

	router.Route("/resolutions/{resolutionID}", func(r chi.Router) {
		r.Get("/", h.handleGetResolution)
		r.Post("/publish", h.handlePublishResolution)
		r.Delete("/", h.handleSoftDeleteResolution)
		r.Post("/restore", h.handleRestoreResolution)
		r.Delete("/purge", h.handlePurgeResolution)
	})

	r.Mount("/", router)
}

func (h *Handler) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	call, err := h.svc.CreateCall(r.Context(), req.attrs(), requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

func (h *Handler) handleListCalls(w http.ResponseWriter, r *http.Request) {
	filter := store.CallFilter{
		IncludeTrashed: r.URL.Query().Get("include_trashed") == "true",
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.CallStatus(raw)
		if !status.Valid() {
			writeError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw))
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("academic_year"); raw != "" {
		filter.AcademicYearID = &raw
	}

	calls, err := h.svc.ListCalls(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callListResponse(calls))
}

func (h *Handler) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	call, err := h.svc.GetCall(r.Context(), callID, r.URL.Query().Get("include_trashed") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (h *Handler) handleGetCallBySlug(w http.ResponseWriter, r *http.Request) {
	call, err := h.svc.GetCallBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (h *Handler) handleUpdateCall(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	call, err := h.svc.UpdateCall(r.Context(), callID, req.attrs(), requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	call, err := h.svc.ChangeStatus(r.Context(), callID, models.CallStatus(req.Status), requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (h *Handler) handlePublishCall(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	call, err := h.svc.PublishCall(r.Context(), callID, requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (h *Handler) handleSoftDeleteCall(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, h.svc.SoftDeleteCall)
}

func (h *Handler) handleRestoreCall(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, h.svc.RestoreCall)
}

func (h *Handler) handlePurgeCall(w http.ResponseWriter, r *http.Request) {
	h.callAction(w, r, h.svc.PurgeCall)
}

func (h *Handler) handleDetachActor(w http.ResponseWriter, r *http.Request) {
	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid actor id"))
		return
	}
	detached, err := h.svc.DetachActor(r.Context(), actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"detached": detached})
}

func (h *Handler) callAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.CallID, id.ActorID) error) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := fn(r.Context(), callID, requestcontext.ActorID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreatePhase(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req createPhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	phase, err := h.svc.CreatePhase(r.Context(), callID, req.attrs(), requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, phase)
}

func (h *Handler) handleListPhases(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	phases, err := h.svc.ListPhases(r.Context(), callID, r.URL.Query().Get("include_trashed") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phaseListResponse(phases))
}

func (h *Handler) handleGetPhase(w http.ResponseWriter, r *http.Request) {
	phaseID, err := phaseIDParam(chi.URLParam(r, "phaseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	phase, err := h.svc.GetPhase(r.Context(), phaseID, r.URL.Query().Get("include_trashed") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

func (h *Handler) handleUpdatePhase(w http.ResponseWriter, r *http.Request) {
	phaseID, err := phaseIDParam(chi.URLParam(r, "phaseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req updatePhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	phase, err := h.svc.UpdatePhase(r.Context(), phaseID, req.attrs(), requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

func (h *Handler) handleMovePhaseUp(w http.ResponseWriter, r *http.Request) {
	h.movePhase(w, r, service.MoveUp)
}

func (h *Handler) handleMovePhaseDown(w http.ResponseWriter, r *http.Request) {
	h.movePhase(w, r, service.MoveDown)
}

func (h *Handler) movePhase(w http.ResponseWriter, r *http.Request, direction service.MoveDirection) {
	phaseID, err := phaseIDParam(chi.URLParam(r, "phaseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	phases, err := h.svc.MovePhase(r.Context(), phaseID, direction, requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phaseListResponse(phases))
}

func (h *Handler) handleMarkCurrent(w http.ResponseWriter, r *http.Request) {
	phaseID, err := phaseIDParam(chi.URLParam(r, "phaseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	overlapping, err := h.svc.MarkPhaseCurrent(r.Context(), phaseID, requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markCurrentResponse(overlapping))
}

func (h *Handler) handleUnmarkCurrent(w http.ResponseWriter, r *http.Request) {
	h.phaseAction(w, r, h.svc.UnmarkPhaseCurrent)
}

func (h *Handler) handleSoftDeletePhase(w http.ResponseWriter, r *http.Request) {
	h.phaseAction(w, r, h.svc.SoftDeletePhase)
}

func (h *Handler) handleRestorePhase(w http.ResponseWriter, r *http.Request) {
	h.phaseAction(w, r, h.svc.RestorePhase)
}

func (h *Handler) handlePurgePhase(w http.ResponseWriter, r *http.Request) {
	h.phaseAction(w, r, h.svc.PurgePhase)
}

func (h *Handler) phaseAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.PhaseID, id.ActorID) error) {
	phaseID, err := phaseIDParam(chi.URLParam(r, "phaseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := fn(r.Context(), phaseID, requestcontext.ActorID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateResolution(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	phaseID, err := phaseIDParam(chi.URLParam(r, "phaseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req createResolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	resolution, err := h.svc.CreateResolution(r.Context(), callID, phaseID, req.attrs(), requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resolution)
}

func (h *Handler) handleListResolutionsByCall(w http.ResponseWriter, r *http.Request) {
	callID, err := callIDParam(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.svc.ListResolutionsByCall(r.Context(), callID, r.URL.Query().Get("include_trashed") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionListResponse(list))
}

func (h *Handler) handleListResolutionsByPhase(w http.ResponseWriter, r *http.Request) {
	phaseID, err := phaseIDParam(chi.URLParam(r, "phaseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.svc.ListResolutionsByPhase(r.Context(), phaseID, r.URL.Query().Get("include_trashed") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionListResponse(list))
}

func (h *Handler) handleGetResolution(w http.ResponseWriter, r *http.Request) {
	resolutionID, err := resolutionIDParam(chi.URLParam(r, "resolutionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	resolution, err := h.svc.GetResolution(r.Context(), resolutionID, r.URL.Query().Get("include_trashed") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (h *Handler) handlePublishResolution(w http.ResponseWriter, r *http.Request) {
	resolutionID, err := resolutionIDParam(chi.URLParam(r, "resolutionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	resolution, err := h.svc.PublishResolution(r.Context(), resolutionID, requestcontext.ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (h *Handler) handleSoftDeleteResolution(w http.ResponseWriter, r *http.Request) {
	h.resolutionAction(w, r, h.svc.SoftDeleteResolution)
}

func (h *Handler) handleRestoreResolution(w http.ResponseWriter, r *http.Request) {
	h.resolutionAction(w, r, h.svc.RestoreResolution)
}

func (h *Handler) handlePurgeResolution(w http.ResponseWriter, r *http.Request) {
	h.resolutionAction(w, r, h.svc.PurgeResolution)
}

func (h *Handler) resolutionAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.ResolutionID, id.ActorID) error) {
	resolutionID, err := resolutionIDParam(chi.URLParam(r, "resolutionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := fn(r.Context(), resolutionID, requestcontext.ActorID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
