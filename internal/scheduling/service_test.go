package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/frontdesk/internal/audit"
	"github.com/caredesk/frontdesk/internal/patient"
	"github.com/caredesk/frontdesk/internal/sequence"
)

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeDB struct {
	onBegin func()
}

func (f fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if f.onBegin != nil {
		f.onBegin()
	}
	return fakeTx{}, nil
}

type fakePatientRepo struct {
	patients map[string]*patient.Patient
	doctors  map[int64]*patient.Doctor
}

func (f *fakePatientRepo) GetPatientByCode(_ context.Context, code string) (*patient.Patient, error) {
	if p, ok := f.patients[code]; ok {
		return p, nil
	}
	return nil, patient.ErrPatientNotFound
}

func (f *fakePatientRepo) GetPatientByID(context.Context, int64) (*patient.Patient, error) {
	return nil, patient.ErrPatientNotFound
}

func (f *fakePatientRepo) GetDoctorByID(_ context.Context, id int64) (*patient.Doctor, error) {
	if d, ok := f.doctors[id]; ok {
		return d, nil
	}
	return nil, patient.ErrDoctorNotFound
}

type fakeRepo struct {
	appointments map[uuid.UUID]*Appointment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appointments: make(map[uuid.UUID]*Appointment)}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	if a, ok := f.appointments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*Appointment, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	a, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Appointment: *a, Patient: &patient.Patient{ID: a.PatientID}}, nil
}

func (f *fakeRepo) FindScheduledAt(_ context.Context, doctorID int64, date time.Time, startTime string, excludeID uuid.UUID) (*Appointment, error) {
	for _, a := range f.appointments {
		if a.ID == excludeID || a.DoctorID == nil {
			continue
		}
		if *a.DoctorID == doctorID && sameDay(a.Date, date) && a.StartTime == startTime && a.Status == StatusScheduled {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Insert(_ context.Context, _ pgx.Tx, a *Appointment) error {
	cp := *a
	f.appointments[a.ID] = &cp
	return nil
}

func (f *fakeRepo) Update(_ context.Context, _ pgx.Tx, a *Appointment) error {
	if _, ok := f.appointments[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	f.appointments[a.ID] = &cp
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	if _, ok := f.appointments[id]; !ok {
		return ErrNotFound
	}
	delete(f.appointments, id)
	return nil
}

func (f *fakeRepo) ListForDoctor(context.Context, int64, ListFilters) ([]Detail, error) {
	return nil, nil
}

func (f *fakeRepo) ListForPatient(context.Context, int64, ListFilters) ([]Detail, error) {
	return nil, nil
}

func (f *fakeRepo) ListUnqueuedForDate(context.Context, time.Time, *int64) ([]Detail, error) {
	return nil, nil
}

type fakeAllocator struct {
	counts map[string]int
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{counts: make(map[string]int)}
}

func (f *fakeAllocator) Next(_ context.Context, _ pgx.Tx, p sequence.Partition) (int, error) {
	f.counts[p.Key()]++
	return f.counts[p.Key()], nil
}

func (f *fakeAllocator) Lock(context.Context, pgx.Tx, sequence.Partition) error { return nil }

func newTestService(repo *fakeRepo) *Service {
	patRepo := &fakePatientRepo{
		patients: map[string]*patient.Patient{
			"PT-000001": {ID: 1, Code: "PT-000001", FullName: "Ada Osei"},
			"PT-000002": {ID: 2, Code: "PT-000002", FullName: "Lee Park"},
		},
		doctors: map[int64]*patient.Doctor{
			5: {ID: 5, FullName: "Dr. Grey"},
			6: {ID: 6, FullName: "Dr. Bailey"},
		},
	}
	return NewService(fakeDB{}, repo, patient.NewResolver(patRepo), newFakeAllocator(),
		audit.NopRecorder{}, "Main Clinic", zerolog.Nop())
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestBookAssignsPerDateNumbers(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", DoctorID: 5, Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, StatusScheduled, first.Status)

	// Same date, different slot: numbers are per date, not per slot.
	second, err := svc.Book(ctx, BookParams{PatientRef: "PT-000002", DoctorID: 5, Date: day("2024-01-10"), StartTime: "09:30"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Number)

	// A new date starts its own sequence.
	other, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", DoctorID: 6, Date: day("2024-01-11"), StartTime: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, 1, other.Number)
}

func TestBookRejectsDoubleBooking(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", DoctorID: 5, Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	_, err = svc.Book(ctx, BookParams{PatientRef: "PT-000002", DoctorID: 5, Date: day("2024-01-10"), StartTime: "09:00"})
	assert.ErrorIs(t, err, ErrSchedulingConflict)
	assert.Len(t, repo.appointments, 1)
}

func TestBookWithoutDoctorSkipsCollisionCheck(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	for _, ref := range []string{"PT-000001", "PT-000002"} {
		_, err := svc.Book(ctx, BookParams{PatientRef: ref, Date: day("2024-01-10"), StartTime: "09:00"})
		require.NoError(t, err)
	}
	assert.Len(t, repo.appointments, 2)
}

func TestBookUnknownPatient(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Book(context.Background(), BookParams{PatientRef: "PT-999999", Date: day("2024-01-10"), StartTime: "09:00"})
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestBookValidatesTimeAndType(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "late morning"})
	assert.ErrorIs(t, err, ErrInvalidTime)

	_, err = svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00", Type: "house_call"})
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestBookAutoConfirm(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	desk, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00", AutoConfirm: true})
	require.NoError(t, err)
	assert.NotNil(t, desk.ConfirmedAt)

	portal, err := svc.Book(ctx, BookParams{PatientRef: "PT-000002", Date: day("2024-01-10"), StartTime: "10:00"})
	require.NoError(t, err)
	assert.Nil(t, portal.ConfirmedAt)
}

func TestConfirmIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	booked, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)
	require.Nil(t, booked.ConfirmedAt)

	fixed := time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	first, err := svc.Confirm(ctx, booked.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ConfirmedAt)
	assert.Equal(t, fixed, *first.ConfirmedAt)

	svc.now = func() time.Time { return fixed.Add(time.Hour) }

	second, err := svc.Confirm(ctx, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, fixed, *second.ConfirmedAt)
}

// A reschedule committing between the caller's read and the confirm must
// survive the confirm: the row is re-read under lock inside the confirm
// transaction, never rewritten from a stale copy.
func TestConfirmPreservesConcurrentReschedule(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	booked, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	svc.db = fakeDB{onBegin: func() {
		repo.appointments[booked.ID].StartTime = "11:00"
	}}

	confirmed, err := svc.Confirm(ctx, booked.ID)
	require.NoError(t, err)
	assert.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, "11:00", confirmed.StartTime)
}

func TestClosePreservesConcurrentReschedule(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	booked, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	svc.db = fakeDB{onBegin: func() {
		repo.appointments[booked.ID].StartTime = "11:00"
	}}

	closed, err := svc.Close(ctx, booked.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, closed.Status)
	assert.Equal(t, "11:00", closed.StartTime)
}

func TestConfirmRequiresScheduled(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	booked, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	_, err = svc.Close(ctx, booked.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, booked.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRescheduleCollisionLeavesRowUntouched(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", DoctorID: 5, Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	victim, err := svc.Book(ctx, BookParams{PatientRef: "PT-000002", DoctorID: 5, Date: day("2024-01-10"), StartTime: "10:00"})
	require.NoError(t, err)

	newTime := "09:00"
	_, err = svc.Reschedule(ctx, victim.ID, Patch{StartTime: &newTime})
	assert.ErrorIs(t, err, ErrSchedulingConflict)

	current, err := svc.Get(ctx, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", current.StartTime)
}

func TestRescheduleIntoVacatedSlot(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	holder, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", DoctorID: 5, Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	mover, err := svc.Book(ctx, BookParams{PatientRef: "PT-000002", DoctorID: 5, Date: day("2024-01-10"), StartTime: "10:00"})
	require.NoError(t, err)

	// Cancelled appointments are exempt from the collision check.
	_, err = svc.Close(ctx, holder.ID, StatusCancelled)
	require.NoError(t, err)

	newTime := "09:00"
	moved, err := svc.Reschedule(ctx, mover.ID, Patch{StartTime: &newTime})
	require.NoError(t, err)
	assert.Equal(t, "09:00", moved.StartTime)
}

func TestRescheduleToNewDateReallocatesNumber(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-11"), StartTime: "09:00"})
	require.NoError(t, err)

	booked, err := svc.Book(ctx, BookParams{PatientRef: "PT-000002", Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)
	require.Equal(t, 1, booked.Number)

	newDate := day("2024-01-11")
	moved, err := svc.Reschedule(ctx, booked.ID, Patch{Date: &newDate})
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Number)
	assert.Equal(t, "2024-01-11", moved.Date.Format("2006-01-02"))
}

func TestRescheduleUnknownPatientRef(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	booked, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	ref := "PT-999999"
	_, err = svc.Reschedule(ctx, booked.ID, Patch{PatientRef: &ref})
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestCloseValidatesStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	booked, err := svc.Book(ctx, BookParams{PatientRef: "PT-000001", Date: day("2024-01-10"), StartTime: "09:00"})
	require.NoError(t, err)

	_, err = svc.Close(ctx, booked.ID, StatusScheduled)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	done, err := svc.Close(ctx, booked.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestDeleteMissing(t *testing.T) {
	svc := newTestService(newFakeRepo())

	err := svc.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
