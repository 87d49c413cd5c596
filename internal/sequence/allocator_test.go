package sequence

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestAppointmentDateKeys(t *testing.T) {
	a := AppointmentDate(date("2024-01-10"))
	b := AppointmentDate(date("2024-01-10"))
	c := AppointmentDate(date("2024-01-11"))

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestQueueBucketKeysSplitByDoctor(t *testing.T) {
	unassigned := QueueBucket(date("2024-01-10"), 0)
	doc5 := QueueBucket(date("2024-01-10"), 5)
	doc5NextDay := QueueBucket(date("2024-01-11"), 5)

	assert.NotEqual(t, unassigned.Key(), doc5.Key())
	assert.NotEqual(t, doc5.Key(), doc5NextDay.Key())
	assert.Equal(t, doc5.Key(), QueueBucket(date("2024-01-10"), 5).Key())
}

// Appointment, queue and check-in partitions must never share a lock key
// even for the same date.
func TestPartitionKindsDoNotCollide(t *testing.T) {
	appt := AppointmentDate(date("2024-01-10"))
	queue := QueueBucket(date("2024-01-10"), 0)
	guard := CheckInGuard(uuid.New(), date("2024-01-10"))

	assert.NotEqual(t, appt.Key(), queue.Key())
	assert.NotEqual(t, appt.Key(), guard.Key())
	assert.NotEqual(t, queue.Key(), guard.Key())
}

func TestCheckInGuardKeysSplitByAppointment(t *testing.T) {
	id := uuid.New()

	assert.Equal(t, CheckInGuard(id, date("2024-01-10")).Key(), CheckInGuard(id, date("2024-01-10")).Key())
	assert.NotEqual(t, CheckInGuard(id, date("2024-01-10")).Key(), CheckInGuard(id, date("2024-01-11")).Key())
	assert.NotEqual(t, CheckInGuard(id, date("2024-01-10")).Key(), CheckInGuard(uuid.New(), date("2024-01-10")).Key())
}

// recordingTx captures the statements the allocator runs against the
// transaction.
type recordingTx struct {
	pgx.Tx
	execSQL   []string
	execArgs  [][]any
	querySQL  []string
	queryArgs [][]any
	max       int
}

func (t *recordingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	t.execArgs = append(t.execArgs, args)
	return pgconn.CommandTag{}, nil
}

func (t *recordingTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	t.querySQL = append(t.querySQL, sql)
	t.queryArgs = append(t.queryArgs, args)
	return maxRow{n: t.max}
}

type maxRow struct{ n int }

func (r maxRow) Scan(dest ...any) error {
	*(dest[0].(*int)) = r.n
	return nil
}

// Next must take the partition's advisory lock before reading the current
// maximum, and both statements must carry the partition's key and
// predicate arguments.
func TestNextLocksPartitionThenReadsMax(t *testing.T) {
	tx := &recordingTx{max: 41}
	alloc := NewPgAllocator()

	n, err := alloc.Next(context.Background(), tx, QueueBucket(date("2024-01-10"), 5))
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	require.Len(t, tx.execSQL, 1)
	assert.Contains(t, tx.execSQL[0], "pg_advisory_xact_lock")
	assert.Equal(t, []any{"queue:2024-01-10:5"}, tx.execArgs[0])

	require.Len(t, tx.querySQL, 1)
	assert.Contains(t, tx.querySQL[0], "MAX(queue_number)")
	assert.Equal(t, []any{"2024-01-10", int64(5)}, tx.queryArgs[0])
}

func TestNextWiresAppointmentPredicate(t *testing.T) {
	tx := &recordingTx{}
	alloc := NewPgAllocator()

	n, err := alloc.Next(context.Background(), tx, AppointmentDate(date("2024-01-10")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, tx.querySQL, 1)
	assert.Contains(t, tx.querySQL[0], "MAX(appointment_number)")
	assert.Equal(t, []any{"2024-01-10"}, tx.queryArgs[0])
}

func TestLockOnlyTakesTheLock(t *testing.T) {
	tx := &recordingTx{}
	alloc := NewPgAllocator()

	err := alloc.Lock(context.Background(), tx, CheckInGuard(uuid.New(), date("2024-01-10")))
	require.NoError(t, err)

	require.Len(t, tx.execSQL, 1)
	assert.Contains(t, tx.execSQL[0], "pg_advisory_xact_lock")
	assert.Empty(t, tx.querySQL)
}

// Requires a live Postgres; set POSTGRES_DSN to run. Concurrent
// allocations in one partition must come out distinct and contiguous.
func TestConcurrentNextAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS allocation_scratch (
			part text NOT NULL,
			n    int NOT NULL,
			UNIQUE (part, n)
		)
	`)
	require.NoError(t, err)

	key := fmt.Sprintf("scratch:%d", time.Now().UnixNano())
	part := Partition{
		key:      key,
		maxQuery: `SELECT COALESCE(MAX(n), 0) FROM allocation_scratch WHERE part = $1`,
		args:     []any{key},
	}
	defer pool.Exec(ctx, `DELETE FROM allocation_scratch WHERE part = $1`, key)

	const workers = 16
	alloc := NewPgAllocator()
	numbers := make(chan int, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			tx, err := pool.Begin(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			defer tx.Rollback(ctx)

			n, err := alloc.Next(ctx, tx, part)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := tx.Exec(ctx, `INSERT INTO allocation_scratch (part, n) VALUES ($1, $2)`, key, n); err != nil {
				t.Error(err)
				return
			}
			if err := tx.Commit(ctx); err != nil {
				t.Error(err)
				return
			}
			numbers <- n
		}()
	}
	wg.Wait()
	close(numbers)

	var got []int
	for n := range numbers {
		got = append(got, n)
	}
	require.Len(t, got, workers)

	sort.Ints(got)
	for i, n := range got {
		assert.Equal(t, i+1, n)
	}
}
