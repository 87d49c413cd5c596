package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/frontdesk/internal/patient"
)

type Type string

const (
	TypeInPerson     Type = "in_person"
	TypeTelemedicine Type = "telemedicine"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment is a booked slot. Number is unique per Date; the confirmed
// flag is orthogonal to Status, only scheduled appointments take part in
// the doctor-slot collision check.
type Appointment struct {
	ID          uuid.UUID
	PatientID   int64
	DoctorID    *int64
	Clinic      string
	Number      int
	Date        time.Time
	StartTime   string // "15:04"
	Type        Type
	Status      Status
	WalkIn      bool
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Appointment) Confirmed() bool {
	return a.ConfirmedAt != nil
}

// Detail is the hydrated read shape.
type Detail struct {
	Appointment
	Patient *patient.Patient
	Doctor  *patient.Doctor
}
