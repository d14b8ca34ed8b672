package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, db
}

func seedItem(t *testing.T, db *gorm.DB, sku string, onHand int) {
	t.Helper()
	if err := db.Create(&models.InventoryItem{SKU: sku, OnHandQty: onHand, AvailableQty: onHand}).Error; err != nil {
		t.Fatalf("seed %s: %v", sku, err)
	}
}

func TestServiceReserveAllOrNothing(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedItem(t, db, "SKU-A", 10)
	seedItem(t, db, "SKU-B", 1)

	orderID := uuid.New()
	lines := []models.ReservationLine{
		{SKU: "SKU-A", Qty: 2},
		{SKU: "SKU-B", Qty: 3},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Reserve(ctx, tx, orderID, lines, 15*time.Minute)
		return rerr
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	failed, ok := typed.Details().(map[string]string)
	if !ok || len(failed) != 1 {
		t.Fatalf("expected one failed sku, got %+v", typed.Details())
	}
	if _, reported := failed["SKU-B"]; !reported {
		t.Fatalf("expected SKU-B in failure details, got %+v", failed)
	}

	// rollback must leave stock untouched
	var item models.InventoryItem
	if err := db.First(&item, "sku = ?", "SKU-A").Error; err != nil {
		t.Fatalf("load SKU-A: %v", err)
	}
	if item.AvailableQty != 10 || item.ReservedQty != 0 {
		t.Fatalf("partial reservation leaked: %+v", item)
	}
}

func TestServiceReserveThenCommit(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedItem(t, db, "SKU-A", 5)

	orderID := uuid.New()
	lines := []models.ReservationLine{{SKU: "SKU-A", Qty: 2}}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Reserve(ctx, tx, orderID, lines, 15*time.Minute)
		return rerr
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Commit(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// second commit is a no-op
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Commit(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("repeat commit: %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "sku = ?", "SKU-A").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.OnHandQty != 3 || item.AvailableQty != 3 || item.ReservedQty != 0 {
		t.Fatalf("unexpected state after commit: %+v", item)
	}

	var reservation models.InventoryReservation
	if err := db.First(&reservation, "order_id = ?", orderID).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusCommitted {
		t.Fatalf("expected committed, got %s", reservation.Status)
	}
}

func TestServiceReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedItem(t, db, "SKU-A", 5)

	orderID := uuid.New()
	lines := []models.ReservationLine{{SKU: "SKU-A", Qty: 2}}

	if err := db.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Reserve(ctx, tx, orderID, lines, 15*time.Minute)
		return rerr
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var released bool
	if err := db.Transaction(func(tx *gorm.DB) error {
		var rerr error
		released, rerr = svc.Release(ctx, tx, orderID)
		return rerr
	}); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Fatal("expected first release to act")
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var rerr error
		released, rerr = svc.Release(ctx, tx, orderID)
		return rerr
	}); err != nil {
		t.Fatalf("repeat release: %v", err)
	}
	if released {
		t.Fatal("expected repeat release to be a no-op")
	}

	var item models.InventoryItem
	if err := db.First(&item, "sku = ?", "SKU-A").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 5 || item.ReservedQty != 0 {
		t.Fatalf("unexpected state after release: %+v", item)
	}
}

func TestServiceReleaseAfterCommitConflicts(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedItem(t, db, "SKU-A", 5)

	orderID := uuid.New()
	lines := []models.ReservationLine{{SKU: "SKU-A", Qty: 1}}

	if err := db.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Reserve(ctx, tx, orderID, lines, 15*time.Minute)
		return rerr
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Commit(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Release(ctx, tx, orderID)
		return rerr
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestServiceRestockAfterRefund(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedItem(t, db, "SKU-A", 5)

	orderID := uuid.New()
	lines := []models.ReservationLine{{SKU: "SKU-A", Qty: 2}}

	if err := db.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Reserve(ctx, tx, orderID, lines, 15*time.Minute)
		return rerr
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Commit(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Restock(ctx, tx, orderID)
	}); err != nil {
		t.Fatalf("restock: %v", err)
	}

	var item models.InventoryItem
	if err := db.First(&item, "sku = ?", "SKU-A").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.OnHandQty != 5 || item.AvailableQty != 5 {
		t.Fatalf("unexpected state after restock: %+v", item)
	}
}

func TestServiceFindExpired(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	seedItem(t, db, "SKU-A", 10)

	stale := uuid.New()
	fresh := uuid.New()

	if err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Reserve(ctx, tx, stale, []models.ReservationLine{{SKU: "SKU-A", Qty: 1}}, time.Millisecond); err != nil {
			return err
		}
		_, err := svc.Reserve(ctx, tx, fresh, []models.ReservationLine{{SKU: "SKU-A", Qty: 1}}, time.Hour)
		return err
	}); err != nil {
		t.Fatalf("seed reservations: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	expired, err := svc.FindExpired(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("find expired: %v", err)
	}
	if len(expired) != 1 || expired[0].OrderID != stale {
		t.Fatalf("unexpected expired set: %+v", expired)
	}
}
