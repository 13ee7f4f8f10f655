// Package mocks provides gomock implementations of the render job ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().GetByID(gomock.Any(), jobID).Return(job, nil)
package mocks

// CreateWithEvent, GetByID, MarkRunning, Finalize
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/renderjobs/internal/core JobRepository

// UpdateResultInTx, MarkFailedInTx
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=target_repository_mock.go github.com/target/renderjobs/internal/core TargetRepository

// RelayBatch, WaitForEvent, DeleteOlderThan
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=outbox_repository_mock.go github.com/target/renderjobs/internal/core OutboxRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=event_publisher_mock.go github.com/target/renderjobs/internal/core EventPublisher

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=url_normalizer_mock.go github.com/target/renderjobs/internal/core URLNormalizer

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=target_resolver_mock.go github.com/target/renderjobs/internal/core TargetResolver

// ApplyResult, MarkRunning
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=result_applier_mock.go github.com/target/renderjobs/internal/core ResultApplier
