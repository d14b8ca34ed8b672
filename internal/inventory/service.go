package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// Service owns the stock ledger: reservations are the only path from
// available to sold, and every transition is driven by one order.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []models.ReservationLine, ttl time.Duration) (*models.InventoryReservation, error)
	Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	Restock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.InventoryReservation, error)
	Availability(ctx context.Context, sku string) (*models.InventoryItem, error)
}

type service struct {
	repo Repository
}

// NewService builds the inventory service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

// Reserve claims stock for every line or none. Failed SKUs are reported
// together so the storefront can show all shortages at once.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []models.ReservationLine, ttl time.Duration) (*models.InventoryReservation, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation requires at least one line")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation ttl must be positive")
	}

	requests := make([]ReservationRequest, len(lines))
	for i, line := range lines {
		requests[i] = ReservationRequest{SKU: line.SKU, Qty: line.Qty}
	}

	results, err := ReserveInventory(ctx, tx, requests)
	if err != nil {
		return nil, err
	}

	failed := map[string]string{}
	for _, result := range results {
		if !result.Reserved {
			failed[result.SKU] = result.Reason
		}
	}
	if len(failed) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested quantity is not available").
			WithDetails(failed)
	}

	reservation := &models.InventoryReservation{
		OrderID:   orderID,
		Lines:     lines,
		Status:    enums.ReservationStatusActive,
		ExpiresAt: time.Now().Add(ttl),
	}
	return s.repo.WithTx(tx).CreateReservation(ctx, reservation)
}

// Commit converts the order's active reservation into a sale. Calling it
// again after success is a no-op.
func (s *service) Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	reservation, err := repo.FindReservationByOrderForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	if reservation == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no reservation for order")
	}
	switch reservation.Status {
	case enums.ReservationStatusCommitted:
		return nil
	case enums.ReservationStatusReleased:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already released")
	}

	if err := CommitReserved(ctx, tx, reservation.Lines); err != nil {
		return err
	}
	return repo.UpdateReservationStatus(ctx, reservation.ID, enums.ReservationStatusCommitted)
}

// Release returns reserved stock to the pool. It reports whether this call
// performed the release, so callers can skip follow-up work on replays.
func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	reservation, err := repo.FindReservationByOrderForUpdate(ctx, orderID)
	if err != nil {
		return false, err
	}
	if reservation == nil || reservation.Status == enums.ReservationStatusReleased {
		return false, nil
	}
	if reservation.Status == enums.ReservationStatusCommitted {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already committed")
	}

	if err := ReleaseReserved(ctx, tx, reservation.Lines); err != nil {
		return false, err
	}
	if err := repo.UpdateReservationStatus(ctx, reservation.ID, enums.ReservationStatusReleased); err != nil {
		return false, err
	}
	return true, nil
}

// Restock puts a committed reservation's units back on hand after a refund.
func (s *service) Restock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	reservation, err := repo.FindReservationByOrderForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	if reservation == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no reservation for order")
	}
	if reservation.Status != enums.ReservationStatusCommitted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only committed stock can be restocked")
	}
	return RestockReturned(ctx, tx, reservation.Lines)
}

func (s *service) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.InventoryReservation, error) {
	return s.repo.FindExpiredActive(ctx, cutoff, limit)
}

func (s *service) Availability(ctx context.Context, sku string) (*models.InventoryItem, error) {
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}
	return s.repo.FindItem(ctx, sku)
}
