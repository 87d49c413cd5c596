package scheduling

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

const appointmentColumns = `
	a.id, a.patient_id, a.doctor_id, a.clinic, a.appointment_number,
	a.appointment_date, a.start_time, a.type, a.status, a.is_walk_in,
	a.confirmed_at, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var doctorID *int64
	var confirmedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&doctorID,
		&a.Clinic,
		&a.Number,
		&a.Date,
		&a.StartTime,
		&a.Type,
		&a.Status,
		&a.WalkIn,
		&confirmedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.DoctorID = doctorID
	a.ConfirmedAt = confirmedAt
	return &a, nil
}

const detailColumns = appointmentColumns + `,
	p.id, p.code, p.full_name, p.phone, p.created_at, p.updated_at,
	d.id, d.full_name, d.specialty, d.created_at, d.updated_at`

const detailJoins = `
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	LEFT JOIN doctors d ON d.id = a.doctor_id`

func scanDetail(row pgx.Row) (*Detail, error) {
	var det Detail
	var doctorID *int64
	var confirmedAt *time.Time
	var pat patient.Patient
	var docID *int64
	var docName, docSpecialty *string
	var docCreated, docUpdated *time.Time

	err := row.Scan(
		&det.ID,
		&det.PatientID,
		&doctorID,
		&det.Clinic,
		&det.Number,
		&det.Date,
		&det.StartTime,
		&det.Type,
		&det.Status,
		&det.WalkIn,
		&confirmedAt,
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

	det.DoctorID = doctorID
	det.ConfirmedAt = confirmedAt
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

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Appointment, error) {
	row := tx.QueryRow(ctx, `SELECT`+appointmentColumns+` FROM appointments a WHERE a.id = $1 FOR UPDATE`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+detailColumns+detailJoins+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) FindScheduledAt(ctx context.Context, doctorID int64, date time.Time, startTime string, excludeID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		WHERE a.doctor_id = $1
		  AND a.appointment_date = $2
		  AND a.start_time = $3
		  AND a.status = 'scheduled'
		  AND a.id <> $4
	`, doctorID, date.Format("2006-01-02"), startTime, excludeID)
	return scanAppointment(row)
}

func (r *PgRepository) Insert(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, clinic, appointment_number,
			appointment_date, start_time, type, status, is_walk_in,
			confirmed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	`, a.ID, a.PatientID, a.DoctorID, a.Clinic, a.Number,
		a.Date.Format("2006-01-02"), a.StartTime, a.Type, a.Status, a.WalkIn,
		a.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    doctor_id = $3,
		    appointment_number = $4,
		    appointment_date = $5,
		    start_time = $6,
		    type = $7,
		    status = $8,
		    confirmed_at = $9,
		    updated_at = now()
		WHERE id = $1
	`, a.ID, a.PatientID, a.DoctorID, a.Number,
		a.Date.Format("2006-01-02"), a.StartTime, a.Type, a.Status, a.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	// queue_entries.appointment_id cascades on delete
	tag, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) ListForDoctor(ctx context.Context, doctorID int64, f ListFilters) ([]Detail, error) {
	query := `SELECT` + detailColumns + detailJoins + ` WHERE a.doctor_id = $1`
	args := []any{doctorID}

	query, args = appendFilters(query, args, f)
	query += orderClause(f.NewestFirst)

	return r.queryDetails(ctx, query, args)
}

func (r *PgRepository) ListForPatient(ctx context.Context, patientID int64, f ListFilters) ([]Detail, error) {
	query := `SELECT` + detailColumns + detailJoins + ` WHERE a.patient_id = $1`
	args := []any{patientID}

	query, args = appendFilters(query, args, f)
	query += orderClause(f.NewestFirst)

	return r.queryDetails(ctx, query, args)
}

func (r *PgRepository) ListUnqueuedForDate(ctx context.Context, date time.Time, doctorID *int64) ([]Detail, error) {
	query := `
		SELECT` + detailColumns + detailJoins + `
		WHERE a.appointment_date = $1
			  AND a.status = 'scheduled'
		  AND a.id NOT IN (
			SELECT q.appointment_id FROM queue_entries q
			WHERE q.queue_date = $1
				  AND q.appointment_id IS NOT NULL
				  AND q.status IN ('waiting', 'in_consultation', 'completed')
		  )`
	args := []any{date.Format("2006-01-02")}

	if doctorID != nil {
		if *doctorID == 0 {
			query += ` AND a.doctor_id IS NULL`
		} else {
			args = append(args, *doctorID)
			query += fmt.Sprintf(` AND a.doctor_id = $%d`, len(args))
		}
	}

	query += ` ORDER BY a.start_time ASC, a.appointment_number ASC`

	return r.queryDetails(ctx, query, args)
}

func appendFilters(query string, args []any, f ListFilters) (string, []any) {
	if f.Date != nil {
		args = append(args, f.Date.Format("2006-01-02"))
		query += fmt.Sprintf(` AND a.appointment_date = $%d`, len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(` AND a.status = $%d`, len(args))
	}
	if f.PatientName != "" {
		args = append(args, "%"+f.PatientName+"%")
		query += fmt.Sprintf(` AND p.full_name ILIKE $%d`, len(args))
	}
	return query, args
}

func orderClause(newestFirst bool) string {
	if newestFirst {
		return ` ORDER BY a.appointment_date DESC, a.start_time DESC`
	}
	return ` ORDER BY a.appointment_date ASC, a.start_time ASC`
}

func (r *PgRepository) queryDetails(ctx context.Context, query string, args []any) ([]Detail, error) {
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
