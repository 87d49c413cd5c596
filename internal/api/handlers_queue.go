package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caredesk/frontdesk/internal/queueing"
)

func checkInHandler(svc QueueService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON")
			return
		}
		if req.PatientRef == "" {
			writeError(w, http.StatusUnprocessableEntity, "patient_ref is required")
			return
		}

		params := queueing.CheckInParams{
			PatientRef: req.PatientRef,
			DoctorID:   req.DoctorRef,
			CreatedBy:  r.Header.Get("X-Staff-ID"),
		}

		if req.AppointmentRef != nil {
			apptID, err := uuid.Parse(*req.AppointmentRef)
			if err != nil {
				writeError(w, http.StatusBadRequest, "appointment_ref must be a valid UUID")
				return
			}
			params.AppointmentID = &apptID
		}
		if req.QueueDate != nil {
			date, err := time.Parse(dateFormat, *req.QueueDate)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "queue_date must be YYYY-MM-DD")
				return
			}
			params.QueueDate = &date
		}

		detail, err := svc.CheckIn(r.Context(), params)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toQueueEntryResponse(detail))
	}
}

func queueStatusHandler(svc QueueService, log zerolog.Logger) http.HandlerFunc {
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

		detail, err := svc.SetStatus(r.Context(), id, queueing.Status(req.Status))
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(detail))
	}
}

func listQueueHandler(svc QueueService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, doctorID, ok := parseQueueFilters(w, r)
		if !ok {
			return
		}

		var status *queueing.Status
		if v := r.URL.Query().Get("status"); v != "" {
			s := queueing.Status(v)
			if !queueing.ValidStatus(s) {
				writeError(w, http.StatusUnprocessableEntity, "unknown queue status")
				return
			}
			status = &s
		}

		items, err := svc.ListForDate(r.Context(), date, doctorID, status)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		out := make([]QueueListItem, 0, len(items))
		for _, m := range items {
			out = append(out, toQueueListItem(m))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func clearQueueHandler(svc QueueService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, doctorID, ok := parseQueueFilters(w, r)
		if !ok {
			return
		}

		count, err := svc.Clear(r.Context(), date, doctorID)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, ClearQueueResponse{Deleted: count})
	}
}

// parseQueueFilters reads the shared ?date= and ?doctor_ref= parameters.
// Date defaults to the server's today. doctor_ref absent means all
// buckets; 0 is the unassigned bucket.
func parseQueueFilters(w http.ResponseWriter, r *http.Request) (time.Time, *int64, bool) {
	date := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return time.Time{}, nil, false
		}
		date = parsed
	}

	var doctorID *int64
	if v := r.URL.Query().Get("doctor_ref"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "doctor_ref must be numeric")
			return time.Time{}, nil, false
		}
		doctorID = &id
	}

	return date, doctorID, true
}
