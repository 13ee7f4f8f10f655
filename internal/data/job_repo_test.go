package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/renderjobs/internal/domain/model"
	"github.com/target/renderjobs/internal/testutil"
)

const testRoutingKey = "render.jobs.requested"

func createTestJob(t *testing.T, repo *JobRepo, payload string) *model.Job {
	t.Helper()
	req := testutil.NewJobRequest().WithPayloadString(payload).Build()
	job, event := testutil.NewJobRecord(req, testRoutingKey, time.Now())
	created, err := repo.CreateWithEvent(context.Background(), job, event)
	require.NoError(t, err)
	return created
}

func TestJobRepo_CreateWithEvent(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("writes job and exactly one outbox event", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			req := testutil.NewJobRequest().WithTraceContext("00-abc-def-01").Build()
			job, event := testutil.NewJobRecord(req, testRoutingKey, time.Now())

			created, err := repo.CreateWithEvent(ctx, job, event)
			require.NoError(t, err)
			assert.Equal(t, job.ID, created.ID)
			assert.Equal(t, model.JobStatusRequested, created.Status)
			assert.Nil(t, created.OutputURL)
			assert.Nil(t, created.ErrorCode)
			require.NotNil(t, created.TraceContext)
			assert.Equal(t, "00-abc-def-01", *created.TraceContext)

			assert.Equal(t, 1, testutil.CountRows(t, db, "outbox_events", "aggregate_id = $1", job.ID))

			events, err := NewOutboxRepo(db, RepoConfig{}).ListByAggregate(ctx, model.AggregateTypeJob, job.ID)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, model.EventTypeJobRequested, events[0].EventType)
			assert.Equal(t, testRoutingKey, events[0].RoutingKey)

			var snapshot model.JobRequestedPayload
			require.NoError(t, json.Unmarshal(events[0].Payload, &snapshot))
			assert.Equal(t, job.ID, snapshot.JobID)
			assert.JSONEq(t, `{"type":"BANNER"}`, string(snapshot.Payload))
		})
	})

	t.Run("neither row exists when the outbox insert fails", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			first := createTestJob(t, repo, `{"n":1}`)
			events, err := NewOutboxRepo(db, RepoConfig{}).ListByAggregate(ctx, model.AggregateTypeJob, first.ID)
			require.NoError(t, err)
			require.Len(t, events, 1)

			// reuse the existing event id to force a unique violation on the second write
			job, event := testutil.NewJobRecord(testutil.NewJobRequest().Build(), testRoutingKey, time.Now())
			event.ID = events[0].ID

			_, err = repo.CreateWithEvent(ctx, job, event)
			require.Error(t, err)

			_, getErr := repo.GetByID(ctx, job.ID)
			assert.ErrorIs(t, getErr, ErrJobNotFound)
			assert.Equal(t, 1, testutil.CountRows(t, db, "jobs", ""))
		})
	})

	t.Run("payload is returned verbatim", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			created := createTestJob(t, repo, `{"type":"BANNER"}`)

			got, err := repo.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.JSONEq(t, `{"type":"BANNER"}`, string(got.Payload))
		})
	})
}

func TestJobRepo_GetByID_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		_, err := repo.GetByID(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Finalize(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("success sets output and runs side effect", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()
			job := createTestJob(t, repo, `{}`)

			ran := false
			applied, err := repo.Finalize(ctx, model.FinalizeJobParams{
				JobID:     job.ID,
				Status:    model.JobStatusSucceeded,
				OutputURL: "https://cdn.example.com/b/x.png",
			}, func(context.Context, *sql.Tx) error {
				ran = true
				return nil
			})
			require.NoError(t, err)
			assert.True(t, applied)
			assert.True(t, ran)

			got, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusSucceeded, got.Status)
			require.NotNil(t, got.OutputURL)
			assert.Equal(t, "https://cdn.example.com/b/x.png", *got.OutputURL)
			assert.Nil(t, got.ErrorCode)
			assert.NotNil(t, got.CompletedAt)
		})
	})

	t.Run("terminal job is left untouched and side effect is skipped", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()
			job := createTestJob(t, repo, `{}`)

			applied, err := repo.Finalize(ctx, model.FinalizeJobParams{
				JobID: job.ID, Status: model.JobStatusSucceeded, OutputURL: "https://x/1.png",
			}, nil)
			require.NoError(t, err)
			require.True(t, applied)
			before, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)

			applied, err = repo.Finalize(ctx, model.FinalizeJobParams{
				JobID: job.ID, Status: model.JobStatusFailed, ErrorCode: "OOM",
			}, func(context.Context, *sql.Tx) error {
				t.Fatal("side effect must not run for a finalized job")
				return nil
			})
			require.NoError(t, err)
			assert.False(t, applied)

			after, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	})

	t.Run("side effect failure rolls back the transition", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()
			job := createTestJob(t, repo, `{}`)

			_, err := repo.Finalize(ctx, model.FinalizeJobParams{
				JobID: job.ID, Status: model.JobStatusSucceeded, OutputURL: "https://x/1.png",
			}, func(context.Context, *sql.Tx) error {
				return ErrContentNotFound
			})
			require.ErrorIs(t, err, ErrContentNotFound)

			got, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRequested, got.Status)
			assert.Nil(t, got.OutputURL)
		})
	})

	t.Run("concurrent conflicting outcomes have one winner", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()
			job := createTestJob(t, repo, `{}`)

			results := make([]bool, 2)
			runner := testutil.NewConcurrentTestRunner(t, db)
			errs := runner.RunConcurrent(
				func() error {
					var err error
					results[0], err = repo.Finalize(ctx, model.FinalizeJobParams{
						JobID: job.ID, Status: model.JobStatusSucceeded, OutputURL: "https://x/ok.png",
					}, nil)
					return err
				},
				func() error {
					var err error
					results[1], err = repo.Finalize(ctx, model.FinalizeJobParams{
						JobID: job.ID, Status: model.JobStatusFailed, ErrorCode: "OOM",
					}, nil)
					return err
				},
			)
			runner.AssertNoErrors(errs)
			defer func() {
				if t.Failed() {
					runner.LogJobStates()
				}
			}()
			assert.NotEqual(t, results[0], results[1], "exactly one transition must apply")

			states := testutil.JobStates(t, db)
			require.Len(t, states, 1)
			require.NotNil(t, states[0].CompletedAt)
			assert.True(t, (states[0].OutputURL == nil) != (states[0].ErrorCode == nil),
				"terminal row carries exactly one of output and error")

			got, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			if results[0] {
				assert.Equal(t, model.JobStatusSucceeded, got.Status)
				assert.Nil(t, got.ErrorCode)
			} else {
				assert.Equal(t, model.JobStatusFailed, got.Status)
				assert.Nil(t, got.OutputURL)
			}
		})
	})

	t.Run("invalid params are rejected before touching the database", func(t *testing.T) {
		repo := NewJobRepo(nil, RepoConfig{})
		_, err := repo.Finalize(context.Background(), model.FinalizeJobParams{
			JobID: "not-a-uuid", Status: model.JobStatusFailed, ErrorCode: "X",
		}, nil)
		assert.Error(t, err)
	})
}

func TestJobRepo_MarkRunning(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()
		job := createTestJob(t, repo, `{}`)

		ok, err := repo.MarkRunning(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkRunning(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		applied, err := repo.Finalize(ctx, model.FinalizeJobParams{
			JobID: job.ID, Status: model.JobStatusFailed, ErrorCode: model.ErrorCodeWorkerFailed,
		}, nil)
		require.NoError(t, err)
		assert.True(t, applied, "RUNNING jobs accept a terminal transition")
	})
}
