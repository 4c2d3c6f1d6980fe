package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jakechorley/session-booking/pkg/core/model"
)

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, model.ErrSlotNotFound),
		errors.Is(err, model.ErrBookingNotFound),
		errors.Is(err, model.ErrOwnerNotFound),
		errors.Is(err, model.ErrUnknownReminderWindow):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrBookingNotConfirmed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrUnknownHost):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: "host"})
	case errors.Is(err, model.ErrExternalIntegration):
		h.Log.Warn("External integration failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: model.ErrExternalIntegration.Error()})
	default:
		h.Log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("body", "malformed JSON: %v", err)
	}
	return nil
}
