package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/renderjobs/config"
	"github.com/target/renderjobs/internal/mocks"
	"github.com/target/renderjobs/internal/observability/statsd"
)

func testOutboxConfig() config.OutboxConfig {
	return config.OutboxConfig{
		Retention:         7 * 24 * time.Hour,
		SweepInterval:     10 * time.Minute,
		SweepBatchSize:    100,
		RelayBatchSize:    10,
		RelayPollInterval: 50 * time.Millisecond,
	}
}

func TestOutboxSweeperService_SweepOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("loops until a short batch", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockOutboxRepository(ctrl)
		svc, err := NewOutboxSweeperService(OutboxSweeperServiceOptions{Repo: repo, Config: testOutboxConfig()})
		require.NoError(t, err)

		gomock.InOrder(
			repo.EXPECT().DeleteOlderThan(ctx, 7*24*time.Hour, 100).Return(int64(100), nil),
			repo.EXPECT().DeleteOlderThan(ctx, 7*24*time.Hour, 100).Return(int64(100), nil),
			repo.EXPECT().DeleteOlderThan(ctx, 7*24*time.Hour, 100).Return(int64(3), nil),
		)

		deleted, err := svc.SweepOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(203), deleted)
	})

	t.Run("returns partial count on error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockOutboxRepository(ctrl)
		svc, err := NewOutboxSweeperService(OutboxSweeperServiceOptions{Repo: repo, Config: testOutboxConfig()})
		require.NoError(t, err)

		boom := errors.New("db down")
		gomock.InOrder(
			repo.EXPECT().DeleteOlderThan(ctx, gomock.Any(), gomock.Any()).Return(int64(100), nil),
			repo.EXPECT().DeleteOlderThan(ctx, gomock.Any(), gomock.Any()).Return(int64(0), boom),
		)

		deleted, err := svc.SweepOnce(ctx)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int64(100), deleted)
	})
}

func TestOutboxSweeperService_Run(t *testing.T) {
	t.Run("errors are absorbed and the loop stops on cancel", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockOutboxRepository(ctrl)
		rec := &statsd.Recorder{}

		cfg := testOutboxConfig()
		cfg.SweepInterval = 20 * time.Millisecond
		svc, err := NewOutboxSweeperService(OutboxSweeperServiceOptions{Repo: repo, Config: cfg, Metrics: rec})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, time.Duration, int) (int64, error) {
				calls++
				if calls >= 3 {
					cancel()
				}
				return 0, errors.New("db down")
			}).MinTimes(3)

		done := make(chan error, 1)
		go func() { done <- svc.Run(ctx) }()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("sweeper did not stop")
		}
		assert.GreaterOrEqual(t, rec.Total("outbox.sweep.runs", map[string]string{"result": "error"}), int64(2))
	})
}

func TestNewOutboxSweeperService_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockOutboxRepository(ctrl)

	_, err := NewOutboxSweeperService(OutboxSweeperServiceOptions{Config: testOutboxConfig()})
	require.Error(t, err)

	cfg := testOutboxConfig()
	cfg.SweepBatchSize = 0
	_, err = NewOutboxSweeperService(OutboxSweeperServiceOptions{Repo: repo, Config: cfg})
	require.Error(t, err)
}
