package orders

import (
	"fmt"

	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// transitions is the only authority on order state changes. Every hop an
// order makes has to appear here, including the compensation paths.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusDraft: {
		enums.OrderStatusPendingPayment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPendingPayment: {
		enums.OrderStatusPaid,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusExpired,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaid: {
		enums.OrderStatusFulfilling,
		enums.OrderStatusReturned,
	},
	enums.OrderStatusFulfilling: {
		enums.OrderStatusCompleted,
		enums.OrderStatusReturned,
	},
	enums.OrderStatusPaymentFailed: {
		enums.OrderStatusPendingPayment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusExpired: {
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusReturned: {
		enums.OrderStatusRefunded,
	},
}

// CanTransition reports whether from -> to is a legal hop.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a state-conflict error for illegal hops.
func ValidateTransition(from, to enums.OrderStatus) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is already %s", from))
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to))
	}
	return nil
}
