package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caredesk/frontdesk/internal/scheduling"
)

func bookAppointmentHandler(svc SchedulerService, log zerolog.Logger, autoConfirm bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON")
			return
		}
		if req.PatientRef == "" {
			writeError(w, http.StatusUnprocessableEntity, "patient_ref is required")
			return
		}

		date, err := time.Parse(dateFormat, req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
			return
		}

		detail, err := svc.Book(r.Context(), scheduling.BookParams{
			PatientRef:  req.PatientRef,
			DoctorID:    req.DoctorRef,
			Date:        date,
			StartTime:   req.Time,
			Type:        scheduling.Type(req.Type),
			WalkIn:      req.IsWalkIn,
			AutoConfirm: autoConfirm,
		})
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(detail))
	}
}

func getAppointmentHandler(svc SchedulerService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func rescheduleAppointmentHandler(svc SchedulerService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON")
			return
		}

		patch := scheduling.Patch{
			PatientRef: req.PatientRef,
			DoctorID:   req.DoctorRef,
			StartTime:  req.Time,
		}
		if req.Date != nil {
			date, err := time.Parse(dateFormat, *req.Date)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
				return
			}
			patch.Date = &date
		}
		if req.Type != nil {
			typ := scheduling.Type(*req.Type)
			patch.Type = &typ
		}
		if req.Status != nil {
			status := scheduling.Status(*req.Status)
			patch.Status = &status
		}

		detail, err := svc.Reschedule(r.Context(), id, patch)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func confirmAppointmentHandler(svc SchedulerService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		detail, err := svc.Confirm(r.Context(), id)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func closeAppointmentHandler(svc SchedulerService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON")
			return
		}

		detail, err := svc.Close(r.Context(), id, scheduling.Status(req.Status))
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func deleteAppointmentHandler(svc SchedulerService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, MessageResponse{Message: "appointment deleted"})
	}
}

func listDoctorAppointmentsHandler(svc SchedulerService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "doctor id must be numeric")
			return
		}

		filters, ok := parseListFilters(w, r)
		if !ok {
			return
		}
		filters.PatientName = r.URL.Query().Get("patient_name")

		details, err := svc.ListForDoctor(r.Context(), doctorID, filters)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(details))
	}
}

func listPatientAppointmentsHandler(svc SchedulerService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")

		filters, ok := parseListFilters(w, r)
		if !ok {
			return
		}

		details, err := svc.ListForPatient(r.Context(), ref, filters)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(details))
	}
}

func toAppointmentResponses(details []scheduling.Detail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(details))
	for i := range details {
		out = append(out, toAppointmentResponse(&details[i]))
	}
	return out
}

func parseListFilters(w http.ResponseWriter, r *http.Request) (scheduling.ListFilters, bool) {
	var f scheduling.ListFilters

	if v := r.URL.Query().Get("date"); v != "" {
		date, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return f, false
		}
		f.Date = &date
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := scheduling.Status(v)
		f.Status = &status
	}

	return f, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
