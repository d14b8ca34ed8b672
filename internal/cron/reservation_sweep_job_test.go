package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

type fakeExpiredReader struct {
	reservations []models.InventoryReservation
	err          error
}

func (f *fakeExpiredReader) FindExpired(context.Context, time.Time, int) ([]models.InventoryReservation, error) {
	return f.reservations, f.err
}

type fakeExpirer struct {
	acted map[uuid.UUID]bool
	calls int
	err   error
}

func (f *fakeExpirer) ExpireReservation(_ context.Context, reservation models.InventoryReservation) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.acted[reservation.ID], nil
}

func TestReservationSweepExpiresEachReservation(t *testing.T) {
	t.Parallel()

	first := uuid.New()
	second := uuid.New()
	reader := &fakeExpiredReader{reservations: []models.InventoryReservation{
		{ID: first, OrderID: uuid.New()},
		{ID: second, OrderID: uuid.New()},
	}}
	expirer := &fakeExpirer{acted: map[uuid.UUID]bool{first: true, second: false}}

	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Inventory:  reader,
		Settlement: expirer,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != 2 {
		t.Fatalf("expected 2 expire calls, got %d", expirer.calls)
	}
}

func TestReservationSweepContinuesPastExpireErrors(t *testing.T) {
	t.Parallel()

	reader := &fakeExpiredReader{reservations: []models.InventoryReservation{
		{ID: uuid.New(), OrderID: uuid.New()},
		{ID: uuid.New(), OrderID: uuid.New()},
	}}
	expirer := &fakeExpirer{err: errors.New("lock timeout")}

	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Inventory:  reader,
		Settlement: expirer,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected combined error")
	}
	if expirer.calls != 2 {
		t.Fatalf("sweep must try every reservation, got %d calls", expirer.calls)
	}
}

func TestReservationSweepRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err == nil {
		t.Fatal("expected error for missing deps")
	}
}
