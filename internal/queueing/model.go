package queueing

import (
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/frontdesk/internal/patient"
)

type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusInConsultation Status = "in_consultation"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusWaiting, StatusInConsultation, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the status still occupies the appointment's
// check-in for the day. Cancelled entries free the appointment for a
// fresh check-in.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusInConsultation || s == StatusCompleted
}

// Entry is a position in the day's physical queue. Number is unique per
// (QueueDate, doctor bucket); DoctorID nil is the unassigned bucket.
type Entry struct {
	ID            uuid.UUID
	AppointmentID *uuid.UUID
	PatientID     int64
	DoctorID      *int64
	QueueDate     time.Time
	Number        int
	Status        Status
	CheckedInAt   time.Time
	CheckedOutAt  *time.Time
	CreatedBy     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Detail is the hydrated read shape.
type Detail struct {
	Entry
	Patient *patient.Patient
	Doctor  *patient.Doctor
}

// MergedItem is one row of the front-desk work list: either a checked-in
// queue entry or a booked appointment whose patient has not arrived yet
// (QueueNumber nil).
type MergedItem struct {
	Key           string // "queue:<id>" or "appointment:<id>"
	QueueEntryID  *uuid.UUID
	AppointmentID *uuid.UUID
	QueueNumber   *int
	Patient       *patient.Patient
	Doctor        *patient.Doctor
	Status        string
	StartTime     string
	CheckedInAt   *time.Time
}
