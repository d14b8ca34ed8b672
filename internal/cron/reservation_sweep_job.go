package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/logger"
	"github.com/deshcart/deshcart-backend/pkg/metrics"
)

const sweepBatchSize = 200

type expiredReservationReader interface {
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.InventoryReservation, error)
}

type reservationExpirer interface {
	ExpireReservation(ctx context.Context, reservation models.InventoryReservation) (bool, error)
}

// ReservationSweepJobParams configure the reservation sweeper.
type ReservationSweepJobParams struct {
	Logger     *logger.Logger
	Inventory  expiredReservationReader
	Settlement reservationExpirer
	Metrics    *metrics.SettlementMetrics
	BatchSize  int
}

// NewReservationSweepJob builds the job that releases stock claims whose
// payment window elapsed and cancels the orders behind them.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory reader required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = sweepBatchSize
	}
	return &reservationSweepJob{
		logg:       params.Logger,
		inventory:  params.Inventory,
		settlement: params.Settlement,
		metrics:    params.Metrics,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type reservationSweepJob struct {
	logg       *logger.Logger
	inventory  expiredReservationReader
	settlement reservationExpirer
	metrics    *metrics.SettlementMetrics
	batch      int
	now        func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	reservations, err := j.inventory.FindExpired(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("query expired reservations: %w", err)
	}
	swept := 0
	var errs []error
	for _, reservation := range reservations {
		acted, err := j.settlement.ExpireReservation(ctx, reservation)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire reservation %s: %w", reservation.ID, err))
			continue
		}
		if acted {
			swept++
		}
	}
	if j.metrics != nil && swept > 0 {
		j.metrics.AddReservationsSwept(swept)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"found": len(reservations), "swept": swept, "failed": len(errs)})
	j.logg.Info(logCtx, "reservation sweep complete")
	return multierr.Combine(errs...)
}
