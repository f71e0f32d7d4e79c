package export

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"convoca/internal/call/models"
	dErrors "convoca/pkg/domain-errors"
)

// Handler streams the workbook as an attachment.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/export/calls.xlsx", h.download)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	opts := Options{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.CallStatus(raw)
		if !status.Valid() {
			writeError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw))
			return
		}
		opts.Status = &status
	}
	if raw := r.URL.Query().Get("academic_year"); raw != "" {
		opts.AcademicYearID = &raw
	}
	if raw := r.URL.Query().Get("include_trashed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, dErrors.New(dErrors.CodeValidation, "include_trashed must be a boolean"))
			return
		}
		opts.IncludeTrashed = v
	}

	buf, filename, err := h.svc.Workbook(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if dErrors.HasCode(err, dErrors.CodeValidation) {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   string(dErrors.CodeOf(err)),
		"message": err.Error(),
	})
}
