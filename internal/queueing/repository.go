package queueing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("queue entry not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)

	// FindActiveForAppointment reports an existing waiting / in
	// consultation / completed entry for the appointment on the date.
	FindActiveForAppointment(ctx context.Context, appointmentID uuid.UUID, date time.Time) (*Entry, error)

	Insert(ctx context.Context, tx pgx.Tx, e *Entry) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, checkedOutAt *time.Time) (*Entry, error)

	// ListForDate returns entries in queue order. doctorID nil = all
	// buckets, 0 = unassigned bucket, >0 = that doctor's bucket.
	ListForDate(ctx context.Context, date time.Time, doctorID *int64, status *Status) ([]Detail, error)

	DeleteForDate(ctx context.Context, date time.Time, doctorID *int64) (int64, error)

	// CancelStaleBefore cancels waiting / in-consultation entries from
	// days before the cutoff (sweeper).
	CancelStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
