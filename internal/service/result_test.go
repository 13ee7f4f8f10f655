package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/domain/model"
	apperrors "github.com/target/renderjobs/internal/errors"
	"github.com/target/renderjobs/internal/mocks"
	"github.com/target/renderjobs/internal/observability/statsd"
)

const testJobID = "550e8400-e29b-41d4-a716-446655440000"

type resultFixture struct {
	jobs     *mocks.MockJobRepository
	contents *mocks.MockTargetRepository
	projects *mocks.MockTargetRepository
	storage  *mocks.MockURLNormalizer
	metrics  *statsd.Recorder
	svc      *ResultService
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &resultFixture{
		jobs:     mocks.NewMockJobRepository(ctrl),
		contents: mocks.NewMockTargetRepository(ctrl),
		projects: mocks.NewMockTargetRepository(ctrl),
		storage:  mocks.NewMockURLNormalizer(ctrl),
		metrics:  &statsd.Recorder{},
	}
	svc, err := NewResultService(ResultServiceOptions{
		Jobs:     f.jobs,
		Contents: f.contents,
		Projects: f.projects,
		Storage:  f.storage,
		Metrics:  f.metrics,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func testJob(status model.JobStatus, payload string) *model.Job {
	return &model.Job{
		ID:          testJobID,
		ProjectID:   "p-1",
		Type:        model.JobTypeBannerGeneration,
		Status:      status,
		Payload:     []byte(payload),
		RequestedAt: time.Now().Add(-time.Minute),
	}
}

// runInTx makes a mocked Finalize behave like the repository: inTx runs only when the
// guard matches and its error is returned.
func runInTx(ctx context.Context, _ model.FinalizeJobParams, inTx core.TxFunc) (bool, error) {
	if err := inTx(ctx, nil); err != nil {
		return false, err
	}
	return true, nil
}

func TestResultService_ApplyResult_Success(t *testing.T) {
	ctx := context.Background()

	t.Run("updates content inside the finalize transaction", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"contentId":"c-1","projectId":"p-1"}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, "store://renders/c-1.png").Return("https://cdn/renders/c-1.png", nil)
		f.jobs.EXPECT().Finalize(ctx, model.FinalizeJobParams{
			JobID:     testJobID,
			Status:    model.JobStatusSucceeded,
			OutputURL: "https://cdn/renders/c-1.png",
		}, gomock.Any()).DoAndReturn(runInTx)
		f.contents.EXPECT().UpdateResultInTx(gomock.Any(), gomock.Nil(), "c-1", "https://cdn/renders/c-1.png").Return(nil)

		err := f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: " store://renders/c-1.png "})
		require.NoError(t, err)
		assert.Equal(t, int64(1), f.metrics.Total("job.transition", map[string]string{
			"transition": "succeeded", "result": "success",
		}))
	})

	t.Run("falls back to project target", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRunning, `{"project_id":"p-1"}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, "https://x/1.png").Return("https://x/1.png", nil)
		f.jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).DoAndReturn(runInTx)
		f.projects.EXPECT().UpdateResultInTx(gomock.Any(), gomock.Nil(), "p-1", "https://x/1.png").Return(nil)

		require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "https://x/1.png"}))
	})

	t.Run("no target only finalizes the job", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"type":"BANNER"}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, gomock.Any()).Return("https://x/1.png", nil)
		f.jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).DoAndReturn(runInTx)

		require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "https://x/1.png"}))
	})

	t.Run("numeric content id updates the content", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"contentId":42,"type":"BANNER"}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, "store://bucket/x.png").Return("https://cdn/bucket/x.png", nil)
		f.jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).DoAndReturn(runInTx)
		f.contents.EXPECT().UpdateResultInTx(gomock.Any(), gomock.Nil(), "42", "https://cdn/bucket/x.png").Return(nil)

		require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "store://bucket/x.png"}))
	})

	t.Run("unusable target id is a validation error and leaves the job alone", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"contentId":true}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, gomock.Any()).Return("https://x/1.png", nil)

		err := f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "https://x/1.png"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("missing target is not found and rolls back", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"contentId":"gone"}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, gomock.Any()).Return("https://x/1.png", nil)
		f.jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).DoAndReturn(runInTx)
		f.contents.EXPECT().UpdateResultInTx(gomock.Any(), gomock.Any(), "gone", gomock.Any()).Return(data.ErrContentNotFound)

		err := f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "https://x/1.png"})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.ErrorIs(t, err, data.ErrContentNotFound)
	})

	t.Run("missing output uri is a validation error", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{}`), nil)

		err := f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "   "})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.ErrorIs(t, err, model.ErrOutputURIRequired)
	})

	t.Run("storage rejection stops before the transaction", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, "ftp://x").
			Return("", apperrors.ValidationField("outputUri", "unsupported outputUri scheme ftp"))

		err := f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "ftp://x"})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("lost race is a silent no-op", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"contentId":"c-1"}`), nil)
		f.storage.EXPECT().NormalizeToPublicURL(ctx, gomock.Any()).Return("https://x/1.png", nil)
		f.jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).Return(false, nil)

		require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true, OutputURI: "https://x/1.png"}))
		assert.Equal(t, int64(1), f.metrics.Total("job.transition", map[string]string{"result": "noop"}))
	})
}

func TestResultService_ApplyResult_Terminal(t *testing.T) {
	ctx := context.Background()

	for _, status := range []model.JobStatus{model.JobStatusSucceeded, model.JobStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newResultFixture(t)
			f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(status, `{"contentId":"c-1"}`), nil).Times(2)

			// an invalid outcome is still a no-op once the job is terminal
			require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: true}))
			require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{Success: false}))
		})
	}
}

func TestResultService_ApplyResult_Failure(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults the error code and marks the target failed", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"contentId":"c-1"}`), nil)
		f.jobs.EXPECT().Finalize(ctx, model.FinalizeJobParams{
			JobID:        testJobID,
			Status:       model.JobStatusFailed,
			ErrorCode:    model.ErrorCodeWorkerFailed,
			ErrorMessage: "gpu crashed",
		}, gomock.Any()).DoAndReturn(runInTx)
		f.contents.EXPECT().MarkFailedInTx(gomock.Any(), gomock.Nil(), "c-1").Return(nil)

		require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{ErrorMessage: " gpu crashed "}))
	})

	t.Run("target miss is logged and ignored", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{"projectId":"p-x"}`), nil)
		f.jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).DoAndReturn(runInTx)
		f.projects.EXPECT().MarkFailedInTx(gomock.Any(), gomock.Any(), "p-x").Return(data.ErrProjectNotFound)

		require.NoError(t, f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{ErrorCode: "OOM"}))
		assert.Equal(t, int64(1), f.metrics.Total("job.transition", map[string]string{
			"transition": "failed", "result": "success",
		}))
	})

	t.Run("resolver error still fails the job", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		jobs := mocks.NewMockJobRepository(ctrl)
		resolver := mocks.NewMockTargetResolver(ctrl)
		svc, err := NewResultService(ResultServiceOptions{
			Jobs:     jobs,
			Contents: mocks.NewMockTargetRepository(ctrl),
			Projects: mocks.NewMockTargetRepository(ctrl),
			Storage:  mocks.NewMockURLNormalizer(ctrl),
			Resolver: resolver,
		})
		require.NoError(t, err)

		jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{}`), nil)
		resolver.EXPECT().Resolve(gomock.Any()).Return(model.TargetRef{}, errors.New("bad expression"))
		jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).DoAndReturn(runInTx)

		require.NoError(t, svc.ApplyResult(ctx, testJobID, model.ResultOutcome{ErrorCode: "OOM"}))
	})

	t.Run("database error is returned", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{}`), nil)
		f.jobs.EXPECT().Finalize(ctx, gomock.Any(), gomock.Any()).Return(false, sql.ErrConnDone)

		err := f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{ErrorCode: "OOM"})
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestResultService_ApplyResult_UnknownJob(t *testing.T) {
	ctx := context.Background()

	t.Run("not a uuid", func(t *testing.T) {
		f := newResultFixture(t)
		err := f.svc.ApplyResult(ctx, "job-1", model.ResultOutcome{Success: true, OutputURI: "https://x"})
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("missing row", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(nil, data.ErrJobNotFound)
		err := f.svc.ApplyResult(ctx, testJobID, model.ResultOutcome{ErrorCode: "OOM"})
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestResultService_MarkRunning(t *testing.T) {
	ctx := context.Background()

	t.Run("requested job moves to running", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusRequested, `{}`), nil)
		f.jobs.EXPECT().MarkRunning(ctx, testJobID).Return(true, nil)
		require.NoError(t, f.svc.MarkRunning(ctx, testJobID))
		assert.Equal(t, int64(1), f.metrics.Total("job.transition", map[string]string{
			"transition": "running", "result": "success",
		}))
	})

	t.Run("anything else is a no-op", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(testJob(model.JobStatusSucceeded, `{}`), nil)
		f.jobs.EXPECT().MarkRunning(ctx, testJobID).Return(false, nil)
		require.NoError(t, f.svc.MarkRunning(ctx, testJobID))
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newResultFixture(t)
		f.jobs.EXPECT().GetByID(ctx, testJobID).Return(nil, data.ErrJobNotFound)
		assert.True(t, apperrors.IsNotFound(f.svc.MarkRunning(ctx, testJobID)))
	})
}

func TestNewResultService_RequiresDependencies(t *testing.T) {
	_, err := NewResultService(ResultServiceOptions{})
	assert.Error(t, err)
}
