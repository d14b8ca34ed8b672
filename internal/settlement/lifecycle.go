package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	"github.com/deshcart/deshcart-backend/pkg/outbox"
	"github.com/deshcart/deshcart-backend/pkg/outbox/payloads"
)

// CancelOrder cancels an order that has not shipped. Reserved stock is
// released and open attempts are closed so a late callback cannot settle a
// cancelled order without tripping reconciliation.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusCancelled, actor.label(), reason); err != nil {
			return err
		}
		if _, err := s.inventory.Release(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.closeOpenAttempts(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				CancelledAt: time.Now(),
				Reason:      reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, order, "order_cancelled")
	})
}

// MarkFulfilling records that the warehouse started picking the order.
func (s *service) MarkFulfilling(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusFulfilling, actor.label(), "fulfillment started"); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, order, "order_fulfilling")
	})
}

// MarkCompleted records delivery. For collect-on-delivery orders this is also
// the point where the cash obligation is settled by the courier.
func (s *service) MarkCompleted(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusCompleted, actor.label(), "delivered"); err != nil {
			return err
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data: payloads.OrderCompletedEvent{
				OrderID:     order.ID,
				CompletedAt: time.Now(),
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventERPOrderSync,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         SystemActor.ref(),
			Data: payloads.ERPOrderSyncEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Status:      enums.OrderStatusCompleted,
				TotalCents:  order.TotalCents,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, order, "order_completed")
	})
}

// ExpireReservation sweeps one expired stock claim. The paired order, if it is
// still waiting for payment, is expired and then cancelled in the same
// transaction so its history shows why it died. Returns whether stock moved.
func (s *service) ExpireReservation(ctx context.Context, reservation models.InventoryReservation) (bool, error) {
	var acted bool
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, reservation.OrderID)
		if err != nil {
			return err
		}

		released, err := s.inventory.Release(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		acted = released
		if !released {
			// Raced with a concurrent settle or sweep.
			return nil
		}
		if order.Status != enums.OrderStatusPendingPayment {
			return nil
		}

		if err := s.closeOpenAttempts(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusExpired, SystemActor.label(), "payment window elapsed"); err != nil {
			return err
		}
		if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusCancelled, SystemActor.label(), "expired order auto-cancelled"); err != nil {
			return err
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         SystemActor.ref(),
			Data: payloads.OrderExpiredEvent{
				OrderID:       order.ID,
				ReservationID: reservation.ID,
				ExpiredAt:     time.Now(),
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, order, "order_expired")
	})
	return acted, err
}

// ExpireStaleAttempts closes attempts whose provider never answered. Orders
// themselves are expired by the reservation sweep; this only stops the
// attempts from matching a very late callback as an open attempt.
func (s *service) ExpireStaleAttempts(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	attempts, err := s.payments.FindStaleAttempts(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	var expired int
	for _, attempt := range attempts {
		err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			return s.payments.WithTx(tx).UpdateAttempt(ctx, attempt.ID, map[string]any{
				"status":     enums.AttemptStatusExpired,
				"settled_at": time.Now(),
			})
		})
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *service) closeOpenAttempts(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	payments := s.payments.WithTx(tx)
	open, err := payments.FindOpenAttemptsByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, attempt := range open {
		if err := payments.UpdateAttempt(ctx, attempt.ID, map[string]any{
			"status":     enums.AttemptStatusExpired,
			"settled_at": time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}
