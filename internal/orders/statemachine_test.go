package orders

import (
	"testing"

	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusDraft, enums.OrderStatusPendingPayment, true},
		{enums.OrderStatusDraft, enums.OrderStatusCancelled, true},
		{enums.OrderStatusDraft, enums.OrderStatusPaid, false},
		{enums.OrderStatusPendingPayment, enums.OrderStatusPaid, true},
		{enums.OrderStatusPendingPayment, enums.OrderStatusPaymentFailed, true},
		{enums.OrderStatusPendingPayment, enums.OrderStatusExpired, true},
		{enums.OrderStatusPendingPayment, enums.OrderStatusCompleted, false},
		{enums.OrderStatusPaid, enums.OrderStatusFulfilling, true},
		{enums.OrderStatusPaid, enums.OrderStatusReturned, true},
		{enums.OrderStatusPaid, enums.OrderStatusPendingPayment, false},
		{enums.OrderStatusFulfilling, enums.OrderStatusCompleted, true},
		{enums.OrderStatusPaymentFailed, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPaymentFailed, enums.OrderStatusPendingPayment, true},
		{enums.OrderStatusExpired, enums.OrderStatusCancelled, true},
		{enums.OrderStatusReturned, enums.OrderStatusRefunded, true},
		{enums.OrderStatusCompleted, enums.OrderStatusReturned, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPendingPayment, false},
		{enums.OrderStatusRefunded, enums.OrderStatusDraft, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestValidateTransitionTerminal(t *testing.T) {
	t.Parallel()

	for _, terminal := range []enums.OrderStatus{
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	} {
		err := ValidateTransition(terminal, enums.OrderStatusDraft)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Errorf("%s: expected state conflict, got %v", terminal, err)
		}
	}
}
