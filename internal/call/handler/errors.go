package handler

import (
	"encoding/json"
	"net/http"

	dErrors "convoca/pkg/domain-errors"
)

// writeError centralizes domain error translation to HTTP responses so
// every endpoint speaks the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation:
		status = http.StatusBadRequest
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeInvariantViolation:
		status = http.StatusUnprocessableEntity
	case dErrors.CodeRelationshipConflict, dErrors.CodeConflict:
		status = http.StatusConflict
	case dErrors.CodeConcurrencyConflict:
		status = http.StatusConflict
	case dErrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	}

	body := map[string]any{
		"error":   string(dErrors.CodeOf(err)),
		"message": err.Error(),
	}
	if n := dErrors.LoadInt(err, "blocking_count"); n > 0 {
		body["blocking_count"] = n
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
