package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentClosed      = "APPOINTMENT_CLOSED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
	EventQueueCheckedIn         = "QUEUE_CHECKED_IN"
	EventQueueStatusChanged     = "QUEUE_STATUS_CHANGED"
	EventQueueCleared           = "QUEUE_CLEARED"
)

// Recorder writes the clinic's audit trail. Recording is best effort: a
// failed audit insert is logged but never fails the operation it
// describes.
type Recorder interface {
	Record(ctx context.Context, eventType string, entityID uuid.UUID, payload map[string]any)
}

type PgRecorder struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPgRecorder(pool *pgxpool.Pool, log zerolog.Logger) *PgRecorder {
	return &PgRecorder{pool: pool, log: log}
}

func (r *PgRecorder) Record(ctx context.Context, eventType string, entityID uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Str("event_type", eventType).Msg("marshal audit payload")
		data = nil
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, eventType, entityID, data)
	if err != nil {
		r.log.Error().Err(err).
			Str("event_type", eventType).
			Stringer("entity_id", entityID).
			Msg("insert audit event")
	}
}

// NopRecorder is used where no audit trail is wanted, e.g. tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, uuid.UUID, map[string]any) {}
