package resultsconsumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/renderjobs/internal/domain/model"
	"github.com/target/renderjobs/internal/mocks"
	"github.com/target/renderjobs/internal/observability/statsd"
	"github.com/target/renderjobs/internal/testutil"
)

const testJobID = "550e8400-e29b-41d4-a716-446655440000"

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr bool
		check   func(t *testing.T, msg model.ResultMessage)
	}{
		{
			name:   "success result",
			values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","success":true,"outputUri":"store://b/k.png"}`},
			check: func(t *testing.T, msg model.ResultMessage) {
				outcome := msg.Outcome()
				assert.True(t, outcome.Success)
				assert.Equal(t, "store://b/k.png", outcome.OutputURI)
				assert.False(t, msg.IsProgress())
			},
		},
		{
			name:   "progress report",
			values: map[string]any{FieldData: []byte(`{"jobId":" ` + testJobID + ` ","status":"RUNNING"}`)},
			check: func(t *testing.T, msg model.ResultMessage) {
				assert.Equal(t, testJobID, msg.JobID)
				assert.True(t, msg.IsProgress())
			},
		},
		{name: "missing data field", values: map[string]any{"payload": "{}"}, wantErr: true},
		{name: "bad json", values: map[string]any{FieldData: `{"jobId":`}, wantErr: true},
		{name: "missing job id", values: map[string]any{FieldData: `{"success":false}`}, wantErr: true},
		{name: "non uuid job id", values: map[string]any{FieldData: `{"jobId":"job-1","success":false}`}, wantErr: true},
		{name: "unknown status", values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","status":"PAUSED"}`}, wantErr: true},
		{name: "no success flag or status", values: map[string]any{FieldData: `{"jobId":"` + testJobID + `"}`}, wantErr: true},
		{
			name:    "error fields without success flag",
			values:  map[string]any{FieldData: `{"jobId":"` + testJobID + `","errorCode":"OOM"}`},
			wantErr: true,
		},
		{name: "requested status", values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","status":"REQUESTED"}`}, wantErr: true},
		{
			name:    "requested status with success flag",
			values:  map[string]any{FieldData: `{"jobId":"` + testJobID + `","status":"REQUESTED","success":true}`},
			wantErr: true,
		},
		{
			name:   "failed status without success flag",
			values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","status":"FAILED","errorCode":"OOM"}`},
			check: func(t *testing.T, msg model.ResultMessage) {
				outcome := msg.Outcome()
				assert.False(t, outcome.Success)
				assert.Equal(t, "OOM", outcome.ErrorCode)
			},
		},
		{
			name:   "succeeded status without success flag",
			values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","status":"SUCCEEDED","outputUri":"store://b/k.png"}`},
			check: func(t *testing.T, msg model.ResultMessage) {
				assert.True(t, msg.Outcome().Success)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

func newTestConsumer(t *testing.T, client redis.UniversalClient, applier *mocks.MockResultApplier, sink statsd.Sink) *Consumer {
	t.Helper()
	c, err := New(Options{
		Client:      client,
		Applier:     applier,
		Stream:      "test.render.jobs.results",
		Group:       "renderjobs-test",
		Consumer:    "consumer-1",
		Block:       100 * time.Millisecond,
		Concurrency: 2,
		Metrics:     sink,
	})
	require.NoError(t, err)
	return c
}

func TestConsumer_Dispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	applier := mocks.NewMockResultApplier(ctrl)
	rec := &statsd.Recorder{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	c := newTestConsumer(t, client, applier, rec)

	ctx, cancel := context.WithCancel(context.Background())

	applier.EXPECT().ApplyResult(gomock.Any(), testJobID, model.ResultOutcome{ErrorCode: "OOM"}).
		DoAndReturn(func(hctx context.Context, _ string, _ model.ResultOutcome) error {
			// the receiving context is gone; reconciliation must not see its cancellation
			assert.NoError(t, hctx.Err())
			return errors.New("db down")
		})
	applier.EXPECT().MarkRunning(gomock.Any(), testJobID).Return(nil)

	c.Dispatch(ctx, redis.XMessage{ID: "1-0", Values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","success":false,"errorCode":"OOM"}`}})
	c.Dispatch(ctx, redis.XMessage{ID: "2-0", Values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","status":"RUNNING"}`}})
	c.Dispatch(ctx, redis.XMessage{ID: "3-0", Values: map[string]any{FieldData: `not json`}})
	cancel()
	c.wait()

	assert.Equal(t, int64(1), rec.Total("results.message", map[string]string{"outcome": "failed"}))
	assert.Equal(t, int64(1), rec.Total("results.message", map[string]string{"outcome": "progress"}))
	assert.Equal(t, int64(1), rec.Total("results.message", map[string]string{"outcome": "dropped"}))
}

func TestConsumer_ConcurrencyIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	applier := mocks.NewMockResultApplier(ctrl)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	c := newTestConsumer(t, client, applier, nil)

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	applier.EXPECT().ApplyResult(gomock.Any(), gomock.Any(), gomock.Any()).Times(6).DoAndReturn(
		func(context.Context, string, model.ResultOutcome) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		})

	for i := 0; i < 6; i++ {
		c.Dispatch(context.Background(), redis.XMessage{
			ID:     "1-0",
			Values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","success":false}`},
		})
	}
	c.wait()
	assert.LessOrEqual(t, peak, 2)
}

func TestConsumer_ReadBatch_AcksEverything(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	ctrl := gomock.NewController(t)
	applier := mocks.NewMockResultApplier(ctrl)
	c := newTestConsumer(t, client, applier, nil)
	ctx := context.Background()

	require.NoError(t, c.EnsureGroup(ctx))
	require.NoError(t, c.EnsureGroup(ctx), "creating an existing group is not an error")

	for _, data := range []string{
		`{"jobId":"` + testJobID + `","success":true,"outputUri":"store://b/k.png"}`,
		`{"jobId":"nope"}`,
		`{"jobId":"` + testJobID + `","success":false}`,
	} {
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: "test.render.jobs.results",
			Values: map[string]any{FieldData: data},
		}).Err())
	}

	applier.EXPECT().ApplyResult(gomock.Any(), testJobID, gomock.Any()).Return(nil)
	applier.EXPECT().ApplyResult(gomock.Any(), testJobID, gomock.Any()).Return(errors.New("not found"))

	n, err := c.ReadBatch(ctx, ">")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	c.wait()

	pending, err := client.XPending(ctx, "test.render.jobs.results", "renderjobs-test").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumer_Run_StopsOnCancel(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	ctrl := gomock.NewController(t)
	applier := mocks.NewMockResultApplier(ctrl)
	c := newTestConsumer(t, client, applier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	applied := make(chan struct{})
	applier.EXPECT().MarkRunning(gomock.Any(), testJobID).DoAndReturn(func(context.Context, string) error {
		close(applied)
		return nil
	})
	require.NoError(t, client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: "test.render.jobs.results",
		Values: map[string]any{FieldData: `{"jobId":"` + testJobID + `","status":"RUNNING"}`},
	}).Err())

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("result was not applied")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	_, err = New(Options{Client: client, Applier: mocks.NewMockResultApplier(ctrl), Stream: "s"})
	require.Error(t, err)
}
