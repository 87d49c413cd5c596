package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/caredesk/frontdesk/internal/patient"
	"github.com/caredesk/frontdesk/internal/queueing"
	"github.com/caredesk/frontdesk/internal/scheduling"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// writeDomainError maps the service error taxonomy onto HTTP statuses.
// Validation and business-rule failures carry their message to the UI;
// anything unrecognized is a store fault and gets a generic body.
func writeDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, scheduling.ErrNotFound),
		errors.Is(err, queueing.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, patient.ErrDoctorNotFound),
		errors.Is(err, scheduling.ErrSchedulingConflict),
		errors.Is(err, scheduling.ErrInvalidState),
		errors.Is(err, scheduling.ErrInvalidTime),
		errors.Is(err, scheduling.ErrInvalidType),
		errors.Is(err, scheduling.ErrInvalidStatus),
		errors.Is(err, queueing.ErrPatientMismatch),
		errors.Is(err, queueing.ErrNotConfirmed),
		errors.Is(err, queueing.ErrAlreadyCheckedIn),
		errors.Is(err, queueing.ErrInvalidStatus):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
