package queueing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caredesk/frontdesk/internal/patient"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const entryColumns = `
	q.id, q.appointment_id, q.patient_id, q.doctor_id, q.queue_date,
	q.queue_number, q.status, q.checked_in_at, q.checked_out_at,
	q.created_by, q.created_at, q.updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry

	err := row.Scan(
		&e.ID,
		&e.AppointmentID,
		&e.PatientID,
		&e.DoctorID,
		&e.QueueDate,
		&e.Number,
		&e.Status,
		&e.CheckedInAt,
		&e.CheckedOutAt,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &e, nil
}

const detailColumns = entryColumns + `,
	p.id, p.code, p.full_name, p.phone, p.created_at, p.updated_at,
	d.id, d.full_name, d.specialty, d.created_at, d.updated_at`

const detailJoins = `
	FROM queue_entries q
	JOIN patients p ON p.id = q.patient_id
	LEFT JOIN doctors d ON d.id = q.doctor_id`

func scanDetail(row pgx.Row) (*Detail, error) {
	var det Detail
	var pat patient.Patient
	var docID *int64
	var docName, docSpecialty *string
	var docCreated, docUpdated *time.Time

	err := row.Scan(
		&det.ID,
		&det.AppointmentID,
		&det.PatientID,
		&det.DoctorID,
		&det.QueueDate,
		&det.Number,
		&det.Status,
		&det.CheckedInAt,
		&det.CheckedOutAt,
		&det.CreatedBy,
		&det.CreatedAt,
		&det.UpdatedAt,
		&pat.ID,
		&pat.Code,
		&pat.FullName,
		&pat.Phone,
		&pat.CreatedAt,
		&pat.UpdatedAt,
		&docID,
		&docName,
		&docSpecialty,
		&docCreated,
		&docUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	det.Patient = &pat
	if docID != nil {
		det.Doctor = &patient.Doctor{
			ID:        *docID,
			FullName:  *docName,
			Specialty: docSpecialty,
			CreatedAt: *docCreated,
			UpdatedAt: *docUpdated,
		}
	}

	return &det, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+entryColumns+` FROM queue_entries q WHERE q.id = $1`, id)
	return scanEntry(row)
}

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+detailColumns+detailJoins+` WHERE q.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) FindActiveForAppointment(ctx context.Context, appointmentID uuid.UUID, date time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+entryColumns+`
		FROM queue_entries q
		WHERE q.appointment_id = $1
		  AND q.queue_date = $2
		  AND q.status IN ('waiting', 'in_consultation', 'completed')
	`, appointmentID, date.Format("2006-01-02"))
	return scanEntry(row)
}

func (r *PgRepository) Insert(ctx context.Context, tx pgx.Tx, e *Entry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO queue_entries (
			id, appointment_id, patient_id, doctor_id, queue_date,
			queue_number, status, checked_in_at, created_by,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	`, e.ID, e.AppointmentID, e.PatientID, e.DoctorID,
		e.QueueDate.Format("2006-01-02"), e.Number, e.Status, e.CheckedInAt,
		e.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, checkedOutAt *time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries q
		SET status = $2,
		    checked_out_at = COALESCE($3, checked_out_at),
		    updated_at = now()
		WHERE id = $1
		RETURNING`+entryColumns,
		id, status, checkedOutAt)
	return scanEntry(row)
}

func (r *PgRepository) ListForDate(ctx context.Context, date time.Time, doctorID *int64, status *Status) ([]Detail, error) {
	query := `SELECT` + detailColumns + detailJoins + ` WHERE q.queue_date = $1`
	args := []any{date.Format("2006-01-02")}

	if doctorID != nil {
		if *doctorID == 0 {
			query += ` AND q.doctor_id IS NULL`
		} else {
			args = append(args, *doctorID)
			query += fmt.Sprintf(` AND q.doctor_id = $%d`, len(args))
		}
	}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(` AND q.status = $%d`, len(args))
	}

	query += ` ORDER BY q.queue_number ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DeleteForDate(ctx context.Context, date time.Time, doctorID *int64) (int64, error) {
	query := `DELETE FROM queue_entries WHERE queue_date = $1`
	args := []any{date.Format("2006-01-02")}

	if doctorID != nil {
		if *doctorID == 0 {
			query += ` AND doctor_id IS NULL`
		} else {
			args = append(args, *doctorID)
			query += fmt.Sprintf(` AND doctor_id = $%d`, len(args))
		}
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) CancelStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = 'cancelled',
		    updated_at = now()
		WHERE queue_date < $1
		  AND status IN ('waiting', 'in_consultation')
	`, cutoff.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("cancel stale queue entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
