package cron

import (
	"context"
	"testing"
	"time"

	"github.com/deshcart/deshcart-backend/pkg/logger"
)

type fakePruner struct {
	cutoff  time.Time
	limit   int
	deleted int64
	err     error
}

func (f *fakePruner) DeletePublishedBefore(cutoff time.Time, limit int) (int64, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.deleted, f.err
}

func TestOutboxRetentionPrunesOldPublishedRows(t *testing.T) {
	t.Parallel()

	pruner := &fakePruner{deleted: 12}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: pruner,
		Retention:  7 * 24 * time.Hour,
		BatchSize:  100,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if pruner.limit != 100 {
		t.Fatalf("batch size not passed through, got %d", pruner.limit)
	}
	age := time.Since(pruner.cutoff)
	if age < 7*24*time.Hour-time.Minute || age > 7*24*time.Hour+time.Minute {
		t.Fatalf("cutoff not ~7d back: %v", age)
	}
}

func TestOutboxRetentionRequiresRepository(t *testing.T) {
	t.Parallel()

	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
