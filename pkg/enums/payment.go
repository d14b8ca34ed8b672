package enums

import "fmt"

// PaymentMethod identifies how the buyer chose to pay.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCOD    PaymentMethod = "cod"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodWallet,
	PaymentMethodCOD,
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// AttemptStatus tracks one gateway-facing payment attempt.
type AttemptStatus string

const (
	AttemptStatusInitiated        AttemptStatus = "initiated"
	AttemptStatusAwaitingCallback AttemptStatus = "awaiting_callback"
	AttemptStatusConfirmed        AttemptStatus = "confirmed"
	AttemptStatusDeclined         AttemptStatus = "declined"
	AttemptStatusExpired          AttemptStatus = "expired"
)

var validAttemptStatuses = []AttemptStatus{
	AttemptStatusInitiated,
	AttemptStatusAwaitingCallback,
	AttemptStatusConfirmed,
	AttemptStatusDeclined,
	AttemptStatusExpired,
}

// IsValid reports whether the value is a known AttemptStatus.
func (a AttemptStatus) IsValid() bool {
	for _, candidate := range validAttemptStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsSettled reports whether the attempt reached a final gateway answer.
func (a AttemptStatus) IsSettled() bool {
	switch a {
	case AttemptStatusConfirmed, AttemptStatusDeclined, AttemptStatusExpired:
		return true
	default:
		return false
	}
}

// ParseAttemptStatus converts raw input into an AttemptStatus.
func ParseAttemptStatus(value string) (AttemptStatus, error) {
	for _, candidate := range validAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attempt status %q", value)
}

// RefundStatus tracks the lifecycle of a refund record.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusPending,
	RefundStatusSucceeded,
	RefundStatusFailed,
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	for _, candidate := range validRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}
