package summary

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
)

// Handler exposes the cached summary over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/summaries/{callID}", h.get)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	callID, err := id.ParseCallID(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid call id"))
		return
	}

	result, err := h.svc.Get(r.Context(), callID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation:
		status = http.StatusBadRequest
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   string(dErrors.CodeOf(err)),
		"message": err.Error(),
	})
}
