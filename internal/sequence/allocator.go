package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Partition is a numbering domain: all callers racing for the same
// partition serialize against each other, unrelated partitions never
// contend.
type Partition struct {
	key      string
	maxQuery string
	args     []any
}

// Key identifies the partition for locking and diagnostics.
func (p Partition) Key() string { return p.key }

// AppointmentDate numbers appointments per calendar day.
func AppointmentDate(date time.Time) Partition {
	day := date.Format("2006-01-02")
	return Partition{
		key:      "appointments:" + day,
		maxQuery: `SELECT COALESCE(MAX(appointment_number), 0) FROM appointments WHERE appointment_date = $1`,
		args:     []any{day},
	}
}

// QueueBucket numbers queue entries per day and doctor bucket. doctorID 0
// is the unassigned bucket, stored as NULL on the row.
func QueueBucket(date time.Time, doctorID int64) Partition {
	day := date.Format("2006-01-02")
	return Partition{
		key:      fmt.Sprintf("queue:%s:%d", day, doctorID),
		maxQuery: `SELECT COALESCE(MAX(queue_number), 0) FROM queue_entries WHERE queue_date = $1 AND COALESCE(doctor_id, 0) = $2`,
		args:     []any{day, doctorID},
	}
}

// CheckInGuard is a lock-only partition serializing check-ins for one
// appointment on one day. Two check-ins for the same appointment may land
// in different queue buckets, so the bucket lock alone cannot order them.
func CheckInGuard(appointmentID uuid.UUID, date time.Time) Partition {
	return Partition{
		key: fmt.Sprintf("checkin:%s:%s", date.Format("2006-01-02"), appointmentID),
	}
}

// Allocator hands out the next sequence number for a partition. Next must
// run inside the transaction that inserts the numbered row, so the number
// stays reserved until commit.
type Allocator interface {
	Next(ctx context.Context, tx pgx.Tx, p Partition) (int, error)

	// Lock serializes against allocators in the partition without taking a
	// number, for updates that must not interleave with an in-flight
	// allocation.
	Lock(ctx context.Context, tx pgx.Tx, p Partition) error
}

type PgAllocator struct{}

func NewPgAllocator() *PgAllocator {
	return &PgAllocator{}
}

// Next serializes same-partition callers with a transaction-scoped
// advisory lock, then reads the current maximum. The advisory lock (rather
// than row locks on the partition) also covers the empty-partition case,
// where there are no rows to lock and two callers would otherwise both
// read max=0. The lock is released automatically at commit or rollback.
func (a *PgAllocator) Next(ctx context.Context, tx pgx.Tx, p Partition) (int, error) {
	if err := a.Lock(ctx, tx, p); err != nil {
		return 0, err
	}

	var max int
	if err := tx.QueryRow(ctx, p.maxQuery, p.args...).Scan(&max); err != nil {
		return 0, fmt.Errorf("read max for partition %s: %w", p.key, err)
	}

	return max + 1, nil
}

func (a *PgAllocator) Lock(ctx context.Context, tx pgx.Tx, p Partition) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.key); err != nil {
		return fmt.Errorf("lock partition %s: %w", p.key, err)
	}
	return nil
}
