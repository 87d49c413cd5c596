package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caredesk/frontdesk/internal/queueing"
	"github.com/caredesk/frontdesk/internal/scheduling"
)

type SchedulerService interface {
	Book(ctx context.Context, p scheduling.BookParams) (*scheduling.Detail, error)
	Get(ctx context.Context, id uuid.UUID) (*scheduling.Detail, error)
	Reschedule(ctx context.Context, id uuid.UUID, p scheduling.Patch) (*scheduling.Detail, error)
	Confirm(ctx context.Context, id uuid.UUID) (*scheduling.Detail, error)
	Close(ctx context.Context, id uuid.UUID, status scheduling.Status) (*scheduling.Detail, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForDoctor(ctx context.Context, doctorID int64, f scheduling.ListFilters) ([]scheduling.Detail, error)
	ListForPatient(ctx context.Context, patientRef string, f scheduling.ListFilters) ([]scheduling.Detail, error)
}

type QueueService interface {
	CheckIn(ctx context.Context, p queueing.CheckInParams) (*queueing.Detail, error)
	SetStatus(ctx context.Context, id uuid.UUID, status queueing.Status) (*queueing.Detail, error)
	ListForDate(ctx context.Context, date time.Time, doctorID *int64, status *queueing.Status) ([]queueing.MergedItem, error)
	Clear(ctx context.Context, date time.Time, doctorID *int64) (int64, error)
}

type RouterConfig struct {
	Scheduler SchedulerService
	Queue     QueueService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Log       zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Front-desk bookings are confirmed on the spot; portal bookings wait
	// for a separate confirmation.
	r.Post("/appointments", bookAppointmentHandler(cfg.Scheduler, cfg.Log, true))
	r.Post("/portal/appointments", bookAppointmentHandler(cfg.Scheduler, cfg.Log, false))

	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduler, cfg.Log))
	r.Patch("/appointments/{id}", rescheduleAppointmentHandler(cfg.Scheduler, cfg.Log))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Scheduler, cfg.Log))
	r.Patch("/appointments/{id}/status", closeAppointmentHandler(cfg.Scheduler, cfg.Log))
	r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Scheduler, cfg.Log))

	r.Get("/doctors/{id}/appointments", listDoctorAppointmentsHandler(cfg.Scheduler, cfg.Log))
	r.Get("/patients/{ref}/appointments", listPatientAppointmentsHandler(cfg.Scheduler, cfg.Log))

	r.Post("/queue/check-in", checkInHandler(cfg.Queue, cfg.Log))
	r.Patch("/queue/{id}/status", queueStatusHandler(cfg.Queue, cfg.Log))
	r.Get("/queue", listQueueHandler(cfg.Queue, cfg.Log))
	r.Delete("/queue", clearQueueHandler(cfg.Queue, cfg.Log))

	return r
}
