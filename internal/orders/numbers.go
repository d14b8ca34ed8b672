package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const orderNumberPrefix = "DC"

// nextOrderNumber allocates the next human-facing order number for today,
// e.g. DC-20260825-000042. The per-day counter row is upserted atomically so
// two checkouts can never draw the same sequence.
func nextOrderNumber(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("transaction required")
	}
	day := now.Format("20060102")

	var seq int64
	err := tx.WithContext(ctx).Raw(`
		INSERT INTO order_number_counters (day, last_seq)
		VALUES (?, 1)
		ON CONFLICT (day) DO UPDATE SET last_seq = order_number_counters.last_seq + 1
		RETURNING last_seq`, day).Scan(&seq).Error
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", err)
	}

	return fmt.Sprintf("%s-%s-%06d", orderNumberPrefix, day, seq), nil
}
