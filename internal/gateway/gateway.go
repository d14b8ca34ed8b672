package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// CallbackStatus is the provider's verdict carried in a callback.
type CallbackStatus string

const (
	CallbackSucceeded CallbackStatus = "succeeded"
	CallbackFailed    CallbackStatus = "failed"
)

// InitiateRequest starts collection of an order's total with a provider.
type InitiateRequest struct {
	OrderID       uuid.UUID
	OrderNumber   string
	AmountCents   int64
	Currency      enums.Currency
	CustomerPhone string
}

// InitiateResult is what the storefront needs to move the customer forward.
type InitiateResult struct {
	GatewayRef  string
	RedirectURL string
	// Confirmed means no provider round trip happens; the attempt settles
	// at placement time (cash on delivery).
	Confirmed bool
	// CollectOnDelivery flags the downstream obligation to collect cash
	// when the parcel is handed over.
	CollectOnDelivery bool
}

// CallbackNotice is the verified, normalized form of a provider callback.
type CallbackNotice struct {
	GatewayRef  string
	OrderID     uuid.UUID
	Status      CallbackStatus
	AmountCents int64
	Currency    enums.Currency
	Reason      string
	Raw         json.RawMessage
}

// RefundRequest asks a provider to reverse a settled charge.
type RefundRequest struct {
	GatewayRef  string
	AmountCents int64
	Currency    enums.Currency
	Reason      string
}

// RefundResult reports the provider-side refund reference.
type RefundResult struct {
	RefundRef string
}

// Gateway is one payment provider integration. Implementations normalize
// provider payloads so the settlement layer never sees provider shapes.
type Gateway interface {
	Name() string
	Method() enums.PaymentMethod
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	VerifyCallback(payload []byte, signature string) (*CallbackNotice, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

func parseOrderID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback order id malformed")
	}
	return id, nil
}

// retryPolicy caps gateway call retries so a slow provider cannot hold a
// checkout open indefinitely.
type retryPolicy struct {
	timeout time.Duration
	retries uint64
}

func (p retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := retry.NewExponential(500 * time.Millisecond)
	backoff = retry.WithCappedDuration(4*time.Second, backoff)
	backoff = retry.WithMaxRetries(p.retries, backoff)

	return retry.Do(ctx, backoff, fn)
}
