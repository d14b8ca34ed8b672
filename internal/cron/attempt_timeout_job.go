package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/deshcart/deshcart-backend/pkg/logger"
)

const (
	defaultAttemptTimeout = 2 * time.Hour
	attemptBatchSize      = 200
)

type staleAttemptExpirer interface {
	ExpireStaleAttempts(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// AttemptTimeoutJobParams configure the stale attempt closer.
type AttemptTimeoutJobParams struct {
	Logger     *logger.Logger
	Settlement staleAttemptExpirer
	Timeout    time.Duration
	BatchSize  int
}

// NewAttemptTimeoutJob builds the job that closes payment attempts whose
// provider never delivered a verdict.
func NewAttemptTimeoutJob(params AttemptTimeoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = attemptBatchSize
	}
	return &attemptTimeoutJob{
		logg:       params.Logger,
		settlement: params.Settlement,
		timeout:    timeout,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type attemptTimeoutJob struct {
	logg       *logger.Logger
	settlement staleAttemptExpirer
	timeout    time.Duration
	batch      int
	now        func() time.Time
}

func (j *attemptTimeoutJob) Name() string { return "attempt-timeout" }

func (j *attemptTimeoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.timeout)
	expired, err := j.settlement.ExpireStaleAttempts(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("expire stale attempts: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": expired})
	j.logg.Info(logCtx, "attempt timeout sweep complete")
	return nil
}
