package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/frontdesk/internal/patient"
	"github.com/caredesk/frontdesk/internal/queueing"
	"github.com/caredesk/frontdesk/internal/scheduling"
)

const dateFormat = "2006-01-02"

type BookAppointmentRequest struct {
	PatientRef string `json:"patient_ref"`
	DoctorRef  int64  `json:"doctor_ref,omitempty"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Type       string `json:"type,omitempty"`
	IsWalkIn   bool   `json:"is_walk_in,omitempty"`
}

type RescheduleRequest struct {
	PatientRef *string `json:"patient_ref,omitempty"`
	DoctorRef  *int64  `json:"doctor_ref,omitempty"`
	Date       *string `json:"date,omitempty"`
	Time       *string `json:"time,omitempty"`
	Type       *string `json:"type,omitempty"`
	Status     *string `json:"status,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type CheckInRequest struct {
	PatientRef     string  `json:"patient_ref"`
	DoctorRef      int64   `json:"doctor_ref"`
	AppointmentRef *string `json:"appointment_ref,omitempty"`
	QueueDate      *string `json:"queue_date,omitempty"`
}

type PatientRef struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type DoctorRef struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Specialty *string `json:"specialty,omitempty"`
}

type AppointmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	AppointmentNumber int        `json:"appointment_number"`
	Patient           PatientRef `json:"patient"`
	Doctor            *DoctorRef `json:"doctor,omitempty"`
	Clinic            string     `json:"clinic,omitempty"`
	Date              string     `json:"date"`
	Time              string     `json:"time"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	IsWalkIn          bool       `json:"is_walk_in"`
	ConfirmedAt       *time.Time `json:"confirmed_at"`
}

type QueueEntryResponse struct {
	ID           uuid.UUID  `json:"id"`
	QueueNumber  int        `json:"queue_number"`
	Patient      PatientRef `json:"patient"`
	Doctor       *DoctorRef `json:"doctor,omitempty"`
	Appointment  *uuid.UUID `json:"appointment,omitempty"`
	QueueDate    string     `json:"queue_date"`
	Status       string     `json:"status"`
	CheckedInAt  time.Time  `json:"checked_in_at"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
}

type QueueListItem struct {
	Key         string     `json:"key"`
	QueueNumber *int       `json:"queue_number"`
	Appointment *uuid.UUID `json:"appointment,omitempty"`
	Patient     PatientRef `json:"patient"`
	Doctor      *DoctorRef `json:"doctor,omitempty"`
	Status      string     `json:"status"`
	Time        string     `json:"time,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

type ClearQueueResponse struct {
	Deleted int64 `json:"deleted"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func toPatientRef(p *patient.Patient) PatientRef {
	if p == nil {
		return PatientRef{}
	}
	return PatientRef{ID: p.ID, Code: p.Code, Name: p.FullName}
}

func toDoctorRef(d *patient.Doctor) *DoctorRef {
	if d == nil {
		return nil
	}
	return &DoctorRef{ID: d.ID, Name: d.FullName, Specialty: d.Specialty}
}

func toAppointmentResponse(d *scheduling.Detail) AppointmentResponse {
	return AppointmentResponse{
		ID:                d.ID,
		AppointmentNumber: d.Number,
		Patient:           toPatientRef(d.Patient),
		Doctor:            toDoctorRef(d.Doctor),
		Clinic:            d.Clinic,
		Date:              d.Date.Format(dateFormat),
		Time:              d.StartTime,
		Type:              string(d.Type),
		Status:            string(d.Status),
		IsWalkIn:          d.WalkIn,
		ConfirmedAt:       d.ConfirmedAt,
	}
}

func toQueueEntryResponse(d *queueing.Detail) QueueEntryResponse {
	return QueueEntryResponse{
		ID:           d.ID,
		QueueNumber:  d.Number,
		Patient:      toPatientRef(d.Patient),
		Doctor:       toDoctorRef(d.Doctor),
		Appointment:  d.AppointmentID,
		QueueDate:    d.QueueDate.Format(dateFormat),
		Status:       string(d.Status),
		CheckedInAt:  d.CheckedInAt,
		CheckedOutAt: d.CheckedOutAt,
	}
}

func toQueueListItem(m queueing.MergedItem) QueueListItem {
	return QueueListItem{
		Key:         m.Key,
		QueueNumber: m.QueueNumber,
		Appointment: m.AppointmentID,
		Patient:     toPatientRef(m.Patient),
		Doctor:      toDoctorRef(m.Doctor),
		Status:      m.Status,
		Time:        m.StartTime,
		CheckedInAt: m.CheckedInAt,
	}
}
