package scheduling

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
	"github.com/caredesk/frontdesk/internal/sequence"
)

var (
	ErrSchedulingConflict = errors.New("doctor is already booked for this time slot")
	ErrInvalidState       = errors.New("operation not valid for current appointment status")
	ErrInvalidTime        = errors.New("start time must be in HH:MM format")
	ErrInvalidType        = errors.New("unknown appointment type")
	ErrInvalidStatus      = errors.New("unknown appointment status")
)

type Service struct {
	db       db.TxBeginner
	repo     Repository
	resolver *patient.Resolver
	seq      sequence.Allocator
	audit    audit.Recorder
	clinic   string
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(txdb db.TxBeginner, repo Repository, resolver *patient.Resolver, seq sequence.Allocator, rec audit.Recorder, clinic string, log zerolog.Logger) *Service {
	return &Service{
		db:       txdb,
		repo:     repo,
		resolver: resolver,
		seq:      seq,
		audit:    rec,
		clinic:   clinic,
		log:      log,
		now:      time.Now,
	}
}

type BookParams struct {
	PatientRef string
	DoctorID   int64 // 0 = no doctor assigned yet
	Date       time.Time
	StartTime  string
	Type       Type
	WalkIn     bool

	// AutoConfirm stamps confirmed_at at booking time. Front-desk bookings
	// are pre-confirmed; portal bookings confirm separately.
	AutoConfirm bool
}

// Book resolves the patient, allocates the day's next appointment number
// and inserts the appointment, all in one transaction.
func (s *Service) Book(ctx context.Context, p BookParams) (*Detail, error) {
	typ, err := normalizeType(p.Type)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse("15:04", p.StartTime); err != nil {
		return nil, ErrInvalidTime
	}

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

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := s.bookTx(ctx, tx, pat.ID, doctorID, p.Date, p.StartTime, typ, p.WalkIn, p.AutoConfirm)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}

	s.audit.Record(ctx, audit.EventAppointmentBooked, appt.ID, map[string]any{
		"patient_id":         appt.PatientID,
		"appointment_number": appt.Number,
		"date":               appt.Date.Format("2006-01-02"),
		"walk_in":            appt.WalkIn,
	})

	return &Detail{Appointment: *appt, Patient: pat, Doctor: doc}, nil
}

// BookWalkInTx creates the confirmed walk-in appointment the queue manager
// needs during check-in, inside the check-in transaction.
func (s *Service) BookWalkInTx(ctx context.Context, tx pgx.Tx, patientID int64, doctorID *int64, date time.Time) (*Appointment, error) {
	return s.bookTx(ctx, tx, patientID, doctorID, date, s.now().Format("15:04"), TypeInPerson, true, true)
}

func (s *Service) bookTx(ctx context.Context, tx pgx.Tx, patientID int64, doctorID *int64, date time.Time, startTime string, typ Type, walkIn, autoConfirm bool) (*Appointment, error) {
	number, err := s.seq.Next(ctx, tx, sequence.AppointmentDate(date))
	if err != nil {
		return nil, fmt.Errorf("allocate appointment number: %w", err)
	}

	// The slot probe runs after the partition lock is held, so a racing
	// booking for the same day has either committed or not started.
	if doctorID != nil {
		if err := s.checkSlotFree(ctx, *doctorID, date, startTime, uuid.Nil); err != nil {
			return nil, err
		}
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Clinic:    s.clinic,
		Number:    number,
		Date:      date,
		StartTime: startTime,
		Type:      typ,
		Status:    StatusScheduled,
		WalkIn:    walkIn,
	}
	if autoConfirm {
		now := s.now()
		appt.ConfirmedAt = &now
	}

	if err := s.repo.Insert(ctx, tx, appt); err != nil {
		return nil, err
	}

	return appt, nil
}

type Patch struct {
	PatientRef *string
	DoctorID   *int64 // 0 clears the doctor
	Date       *time.Time
	StartTime  *string
	Type       *Type
	Status     *Status
}

// Reschedule applies a partial update. The whole patch is validated before
// any write; a slot collision rejects the entire patch. The row is read
// under lock inside the transaction so unpatched fields cannot clobber a
// concurrent writer.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, p Patch) (*Detail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if p.PatientRef != nil {
		pat, err := s.resolver.Resolve(ctx, *p.PatientRef)
		if err != nil {
			return nil, err
		}
		appt.PatientID = pat.ID
	}
	if p.DoctorID != nil {
		doc, err := s.resolver.ResolveDoctor(ctx, *p.DoctorID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			appt.DoctorID = nil
		} else {
			appt.DoctorID = &doc.ID
		}
	}
	dateChanged := false
	if p.Date != nil && !sameDay(*p.Date, appt.Date) {
		appt.Date = *p.Date
		dateChanged = true
	}
	if p.StartTime != nil {
		if _, err := time.Parse("15:04", *p.StartTime); err != nil {
			return nil, ErrInvalidTime
		}
		appt.StartTime = *p.StartTime
	}
	if p.Type != nil {
		typ, err := normalizeType(*p.Type)
		if err != nil {
			return nil, err
		}
		appt.Type = typ
	}
	if p.Status != nil {
		if !validStatus(*p.Status) {
			return nil, ErrInvalidStatus
		}
		appt.Status = *p.Status
	}

	if dateChanged {
		// Moving days re-numbers the appointment in its new day's
		// sequence; the old number may leave a gap, which is acceptable.
		number, err := s.seq.Next(ctx, tx, sequence.AppointmentDate(appt.Date))
		if err != nil {
			return nil, fmt.Errorf("allocate appointment number: %w", err)
		}
		appt.Number = number
	} else {
		if err := s.seq.Lock(ctx, tx, sequence.AppointmentDate(appt.Date)); err != nil {
			return nil, err
		}
	}

	if appt.Status == StatusScheduled && appt.DoctorID != nil {
		if err := s.checkSlotFree(ctx, *appt.DoctorID, appt.Date, appt.StartTime, appt.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, tx, appt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}

	s.audit.Record(ctx, audit.EventAppointmentRescheduled, appt.ID, map[string]any{
		"date":   appt.Date.Format("2006-01-02"),
		"time":   appt.StartTime,
		"status": appt.Status,
	})

	return s.repo.GetDetail(ctx, appt.ID)
}

// Confirm stamps confirmed_at on a scheduled appointment. Confirming an
// already confirmed appointment returns it unchanged.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Detail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusScheduled {
		return nil, ErrInvalidState
	}
	if appt.Confirmed() {
		return s.repo.GetDetail(ctx, id)
	}

	now := s.now()
	appt.ConfirmedAt = &now

	if err := s.repo.Update(ctx, tx, appt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm: %w", err)
	}

	s.audit.Record(ctx, audit.EventAppointmentConfirmed, appt.ID, nil)

	return s.repo.GetDetail(ctx, id)
}

// Close moves an appointment to completed or cancelled. The slot is
// vacated either way, so no collision check is needed.
func (s *Service) Close(ctx context.Context, id uuid.UUID, status Status) (*Detail, error) {
	if status != StatusCompleted && status != StatusCancelled {
		return nil, ErrInvalidStatus
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin status change: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	appt.Status = status

	if err := s.repo.Update(ctx, tx, appt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}

	s.audit.Record(ctx, audit.EventAppointmentClosed, appt.ID, map[string]any{
		"status": status,
	})

	return s.repo.GetDetail(ctx, id)
}

// Delete removes the appointment; linked queue entries go with it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	s.audit.Record(ctx, audit.EventAppointmentDeleted, id, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return s.repo.GetDetail(ctx, id)
}

// ListForDoctor is the clinical work list, chronological.
func (s *Service) ListForDoctor(ctx context.Context, doctorID int64, f ListFilters) ([]Detail, error) {
	f.NewestFirst = false
	return s.repo.ListForDoctor(ctx, doctorID, f)
}

// ListForPatient is the patient-facing history, most recent first.
func (s *Service) ListForPatient(ctx context.Context, patientRef string, f ListFilters) ([]Detail, error) {
	pat, err := s.resolver.Resolve(ctx, patientRef)
	if err != nil {
		return nil, err
	}
	f.NewestFirst = true
	f.PatientName = ""
	return s.repo.ListForPatient(ctx, pat.ID, f)
}

func (s *Service) checkSlotFree(ctx context.Context, doctorID int64, date time.Time, startTime string, excludeID uuid.UUID) error {
	existing, err := s.repo.FindScheduledAt(ctx, doctorID, date, startTime, excludeID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check doctor slot: %w", err)
	}
	if existing != nil {
		return ErrSchedulingConflict
	}
	return nil
}

func normalizeType(t Type) (Type, error) {
	switch t {
	case "":
		return TypeInPerson, nil
	case TypeInPerson, TypeTelemedicine:
		return t, nil
	default:
		return "", ErrInvalidType
	}
}

func validStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}
