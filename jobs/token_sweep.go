package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/jobs"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
)

// TokenSweepJob expires stale confirmation tokens on a schedule. The
// sweep is idempotent, so overlapping runs are harmless.
type TokenSweepJob struct {
	service *procurement.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewTokenSweepJob constructs the sweep handler.
func NewTokenSweepJob(service *procurement.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *TokenSweepJob {
	return &TokenSweepJob{service: service, logger: logger, metrics: metrics}
}

// Handle runs one sweep.
func (j *TokenSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("token_sweep")
	count, err := j.service.ExpireStaleTokens(ctx)
	if err != nil {
		j.logger.Error("token sweep", slog.Any("error", err))
		return tracker.End(err)
	}
	if count > 0 {
		j.logger.Info("expired stale confirmation tokens", slog.Int64("count", count))
	}
	j.metrics.AddExpiredTokens(count)
	return tracker.End(nil)
}
