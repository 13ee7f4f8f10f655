package testutil

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// FixedTimeFunc returns a clock that always reports t.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestTime is the fixed instant used by clock-dependent tests.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// CountRows returns the number of rows in table matching the optional where clause.
func CountRows(t TestingTB, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := "SELECT count(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// JobState is the terminal-relevant slice of a job row.
type JobState struct {
	ID          string
	Status      string
	OutputURL   *string
	ErrorCode   *string
	CompletedAt *time.Time
}

// JobStates returns every job row, oldest first.
func JobStates(t TestingTB, db *sql.DB) []JobState {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT id, status, output_url, error_code, completed_at
		FROM jobs
		ORDER BY requested_at, id
	`)
	if err != nil {
		t.Fatalf("Failed to query job states: %v", err)
	}
	defer closeAndLog(t, "job state rows", rows)

	var states []JobState
	for rows.Next() {
		var s JobState
		if err := rows.Scan(&s.ID, &s.Status, &s.OutputURL, &s.ErrorCode, &s.CompletedAt); err != nil {
			t.Fatalf("Failed to scan job state: %v", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Failed to read job states: %v", err)
	}
	return states
}

// ConcurrentTestRunner starts operations together to exercise database races.
type ConcurrentTestRunner struct {
	t  TestingTB
	db *sql.DB
}

// NewConcurrentTestRunner creates a runner reporting through t.
func NewConcurrentTestRunner(t TestingTB, db *sql.DB) *ConcurrentTestRunner {
	return &ConcurrentTestRunner{t: t, db: db}
}

// RunConcurrent releases every fn at once and returns their errors in argument order.
func (r *ConcurrentTestRunner) RunConcurrent(funcs ...func() error) []error {
	r.t.Helper()

	errs := make([]error, len(funcs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

// LogJobStates dumps every job row, for failure diagnostics after a race.
func (r *ConcurrentTestRunner) LogJobStates() []JobState {
	r.t.Helper()
	states := JobStates(r.t, r.db)
	for _, s := range states {
		r.t.Logf("job %s: status=%s output=%v error=%v completed=%v",
			s.ID, s.Status, deref(s.OutputURL), deref(s.ErrorCode), s.CompletedAt)
	}
	return states
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// AssertNoErrors fails the test on the first non-nil error.
func (r *ConcurrentTestRunner) AssertNoErrors(errs []error) {
	r.t.Helper()
	for i, err := range errs {
		if err != nil {
			r.t.Fatalf("Concurrent operation %d failed: %v", i, err)
		}
	}
}
