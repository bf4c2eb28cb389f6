package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"repairhub/internal/apperrors"
)

// envelope is the wire shape every endpoint answers with.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: status < 400, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= 500 {
		slog.Error("request failed", "error", err.Error())
	}

	msg := err.Error()
	if status >= 500 {
		// Do not leak storage internals to the scan gun.
		msg = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: msg})
}

func statusOf(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindInvalidTransition:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindDuplicateBinding:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &apperrors.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
