package queueing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/caredesk/frontdesk/internal/audit"
	"github.com/caredesk/frontdesk/internal/db"
	"github.com/caredesk/frontdesk/internal/patient"
	redisclient "github.com/caredesk/frontdesk/internal/redis"
	"github.com/caredesk/frontdesk/internal/scheduling"
	"github.com/caredesk/frontdesk/internal/sequence"
)

var (
	ErrPatientMismatch  = errors.New("appointment belongs to a different patient")
	ErrNotConfirmed     = errors.New("appointment must be confirmed before check-in")
	ErrAlreadyCheckedIn = errors.New("patient is already checked in for this appointment today")
	ErrInvalidStatus    = errors.New("unknown queue status")
)

// AppointmentStore is the slice of the scheduler's repository the queue
// manager reads from.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	ListUnqueuedForDate(ctx context.Context, date time.Time, doctorID *int64) ([]scheduling.Detail, error)
}

// WalkInBooker creates the walk-in appointment inside the check-in
// transaction.
type WalkInBooker interface {
	BookWalkInTx(ctx context.Context, tx pgx.Tx, patientID int64, doctorID *int64, date time.Time) (*scheduling.Appointment, error)
}

type Service struct {
	db       db.TxBeginner
	repo     Repository
	appts    AppointmentStore
	booker   WalkInBooker
	resolver *patient.Resolver
	seq      sequence.Allocator
	audit    audit.Recorder
	notify   redisclient.BoardNotifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(txdb db.TxBeginner, repo Repository, appts AppointmentStore, booker WalkInBooker, resolver *patient.Resolver, seq sequence.Allocator, rec audit.Recorder, notify redisclient.BoardNotifier, log zerolog.Logger) *Service {
	return &Service{
		db:       txdb,
		repo:     repo,
		appts:    appts,
		booker:   booker,
		resolver: resolver,
		seq:      seq,
		audit:    rec,
		notify:   notify,
		log:      log,
		now:      time.Now,
	}
}

type CheckInParams struct {
	PatientRef    string
	DoctorID      int64 // 0 = unassigned bucket
	AppointmentID *uuid.UUID
	QueueDate     *time.Time // defaults to today
	CreatedBy     string     // staff identity, opaque
}

// CheckIn puts a patient into the day's queue. With an appointment
// reference it validates the booking; without one it creates a walk-in
// appointment in the same transaction. The queue number comes from the
// (date, doctor bucket) partition.
func (s *Service) CheckIn(ctx context.Context, p CheckInParams) (*Detail, error) {
	pat, err := s.resolver.Resolve(ctx, p.PatientRef)
	if err != nil {
		return nil, err
	}

	var doctorID *int64
	doc, err := s.resolver.ResolveDoctor(ctx, p.DoctorID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		doctorID = &doc.ID
	}

	date := s.now()
	if p.QueueDate != nil {
		date = *p.QueueDate
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin check-in: %w", err)
	}
	defer tx.Rollback(ctx)

	// Holding the bucket lock before the duplicate check closes the race
	// between two simultaneous check-ins for the same appointment.
	number, err := s.seq.Next(ctx, tx, sequence.QueueBucket(date, p.DoctorID))
	if err != nil {
		return nil, fmt.Errorf("allocate queue number: %w", err)
	}

	var appointmentID *uuid.UUID
	if p.AppointmentID != nil {
		// A second check-in for the same appointment may target a
		// different bucket, so the bucket lock alone does not order the
		// two; this lock does.
		if err := s.seq.Lock(ctx, tx, sequence.CheckInGuard(*p.AppointmentID, date)); err != nil {
			return nil, err
		}

		appt, err := s.appts.GetByID(ctx, *p.AppointmentID)
		if err != nil {
			return nil, err
		}
		if appt.PatientID != pat.ID {
			return nil, ErrPatientMismatch
		}
		if !appt.WalkIn && !appt.Confirmed() {
			return nil, ErrNotConfirmed
		}

		existing, err := s.repo.FindActiveForAppointment(ctx, appt.ID, date)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check existing queue entry: %w", err)
		}
		if existing != nil {
			return nil, ErrAlreadyCheckedIn
		}

		appointmentID = &appt.ID
	} else {
		appt, err := s.booker.BookWalkInTx(ctx, tx, pat.ID, doctorID, date)
		if err != nil {
			return nil, fmt.Errorf("create walk-in appointment: %w", err)
		}
		appointmentID = &appt.ID
	}

	now := s.now()
	entry := &Entry{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		PatientID:     pat.ID,
		DoctorID:      doctorID,
		QueueDate:     date,
		Number:        number,
		Status:        StatusWaiting,
		CheckedInAt:   now,
	}
	if p.CreatedBy != "" {
		entry.CreatedBy = &p.CreatedBy
	}

	if err := s.repo.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit check-in: %w", err)
	}

	s.audit.Record(ctx, audit.EventQueueCheckedIn, entry.ID, map[string]any{
		"patient_id":   pat.ID,
		"queue_number": entry.Number,
		"date":         date.Format("2006-01-02"),
	})
	s.notify.QueueChanged(ctx, date, p.DoctorID, "checked_in", map[string]any{
		"queue_number": entry.Number,
		"patient":      pat.FullName,
	})

	return &Detail{Entry: *entry, Patient: pat, Doctor: doc}, nil
}

// SetStatus moves an entry through the queue lifecycle. Completing an
// entry stamps checked_out_at.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Detail, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	var checkedOutAt *time.Time
	if status == StatusCompleted {
		now := s.now()
		checkedOutAt = &now
	}

	entry, err := s.repo.UpdateStatus(ctx, id, status, checkedOutAt)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.EventQueueStatusChanged, entry.ID, map[string]any{
		"status": status,
	})
	s.notify.QueueChanged(ctx, entry.QueueDate, bucketID(entry.DoctorID), "status_changed", map[string]any{
		"queue_number": entry.Number,
		"status":       status,
	})

	return s.repo.GetDetail(ctx, id)
}

// ListForDate produces the front-desk work list: checked-in entries in
// queue order, then booked appointments whose patient has not arrived, in
// time order. Computed on read so appointment edits never desync it.
func (s *Service) ListForDate(ctx context.Context, date time.Time, doctorID *int64, status *Status) ([]MergedItem, error) {
	entries, err := s.repo.ListForDate(ctx, date, doctorID, status)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}

	pending, err := s.appts.ListUnqueuedForDate(ctx, date, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list pending appointments: %w", err)
	}

	items := make([]MergedItem, 0, len(entries)+len(pending))
	for i := range entries {
		e := &entries[i]
		num := e.Number
		checkedIn := e.CheckedInAt
		items = append(items, MergedItem{
			Key:           "queue:" + e.ID.String(),
			QueueEntryID:  &e.ID,
			AppointmentID: e.AppointmentID,
			QueueNumber:   &num,
			Patient:       e.Patient,
			Doctor:        e.Doctor,
			Status:        string(e.Status),
			CheckedInAt:   &checkedIn,
		})
	}
	for i := range pending {
		a := &pending[i]
		if a.Status != scheduling.StatusScheduled {
			continue
		}
		items = append(items, MergedItem{
			Key:           "appointment:" + a.ID.String(),
			AppointmentID: &a.ID,
			Patient:       a.Patient,
			Doctor:        a.Doctor,
			Status:        string(a.Status),
			StartTime:     a.StartTime,
		})
	}

	return items, nil
}

// Clear hard-deletes the matching queue entries and reports how many went.
// Appointments are untouched.
func (s *Service) Clear(ctx context.Context, date time.Time, doctorID *int64) (int64, error) {
	count, err := s.repo.DeleteForDate(ctx, date, doctorID)
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, audit.EventQueueCleared, uuid.Nil, map[string]any{
		"date":    date.Format("2006-01-02"),
		"deleted": count,
	})
	s.notify.QueueChanged(ctx, date, bucketID(doctorID), "cleared", map[string]any{
		"deleted": count,
	})

	return count, nil
}

// SweepStale cancels queue entries left open from past days.
func (s *Service) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	count, err := s.repo.CancelStaleBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Msg("cancelled stale queue entries")
	}
	return count, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return s.repo.GetDetail(ctx, id)
}

func bucketID(doctorID *int64) int64 {
	if doctorID == nil {
		return 0
	}
	return *doctorID
}
