package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("appointment not found")

type ListFilters struct {
	Date        *time.Time
	Status      *Status
	PatientName string // free-text match on the patient's name
	NewestFirst bool
}

// Repository contains all DB interactions needed by the service. Mutations
// take the caller's transaction so a whole operation commits or rolls back
// as one unit.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)

	// GetByIDForUpdate reads the row inside the caller's transaction with
	// a row lock, so a concurrent writer cannot slip in between the read
	// and the Update that follows.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Appointment, error)

	// FindScheduledAt is the doctor-slot collision probe. excludeID skips
	// the appointment being updated; pass uuid.Nil on create.
	FindScheduledAt(ctx context.Context, doctorID int64, date time.Time, startTime string, excludeID uuid.UUID) (*Appointment, error)

	Insert(ctx context.Context, tx pgx.Tx, a *Appointment) error
	Update(ctx context.Context, tx pgx.Tx, a *Appointment) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	ListForDoctor(ctx context.Context, doctorID int64, f ListFilters) ([]Detail, error)
	ListForPatient(ctx context.Context, patientID int64, f ListFilters) ([]Detail, error)

	// ListUnqueuedForDate returns the day's appointments with no queue
	// entry yet, ordered by start time. doctorID nil = all, 0 = without a
	// doctor, >0 = that doctor.
	ListUnqueuedForDate(ctx context.Context, date time.Time, doctorID *int64) ([]Detail, error)
}
