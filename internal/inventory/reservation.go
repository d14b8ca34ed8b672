package inventory

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a SKU to be moved from available to reserved.
type ReservationRequest struct {
	SKU string
	Qty int
}

// ReservationResult reports the outcome for a single request line.
type ReservationResult struct {
	SKU      string
	Reserved bool
	Reason   string
}

// ReserveInventory applies conditional decrements line by line. A line only
// succeeds when available_qty still covers the requested qty, so concurrent
// checkouts cannot oversell. Callers run this inside a transaction and roll
// back when any line fails.
func ReserveInventory(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	results := make([]ReservationResult, len(requests))
	for i, req := range requests {
		if req.SKU == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}

		res := tx.WithContext(ctx).Model(&models.InventoryItem{}).
			Where("sku = ? AND available_qty >= ?", req.SKU, req.Qty).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", req.Qty),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", req.Qty),
			})
		if res.Error != nil {
			return nil, res.Error
		}

		result := ReservationResult{SKU: req.SKU, Reserved: res.RowsAffected == 1}
		if !result.Reserved {
			result.Reason = "requested quantity is not available"
		}
		results[i] = result
	}
	return results, nil
}

// CommitReserved permanently removes reserved units from stock. The guard on
// reserved_qty keeps a double commit from driving counts negative.
func CommitReserved(ctx context.Context, tx *gorm.DB, lines []models.ReservationLine) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	for _, line := range lines {
		res := tx.WithContext(ctx).Model(&models.InventoryItem{}).
			Where("sku = ? AND reserved_qty >= ?", line.SKU, line.Qty).
			Updates(map[string]any{
				"on_hand_qty":  gorm.Expr("on_hand_qty - ?", line.Qty),
				"reserved_qty": gorm.Expr("reserved_qty - ?", line.Qty),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("reserved stock missing for sku %s", line.SKU))
		}
	}
	return nil
}

// ReleaseReserved returns reserved units to the available pool.
func ReleaseReserved(ctx context.Context, tx *gorm.DB, lines []models.ReservationLine) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	for _, line := range lines {
		res := tx.WithContext(ctx).Model(&models.InventoryItem{}).
			Where("sku = ? AND reserved_qty >= ?", line.SKU, line.Qty).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty + ?", line.Qty),
				"reserved_qty":  gorm.Expr("reserved_qty - ?", line.Qty),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("reserved stock missing for sku %s", line.SKU))
		}
	}
	return nil
}

// RestockReturned puts returned units back on hand after a refund.
func RestockReturned(ctx context.Context, tx *gorm.DB, lines []models.ReservationLine) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	for _, line := range lines {
		res := tx.WithContext(ctx).Model(&models.InventoryItem{}).
			Where("sku = ?", line.SKU).
			Updates(map[string]any{
				"on_hand_qty":   gorm.Expr("on_hand_qty + ?", line.Qty),
				"available_qty": gorm.Expr("available_qty + ?", line.Qty),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("inventory item %s not found", line.SKU))
		}
	}
	return nil
}
