package gateway

import (
	"context"
	"fmt"

	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// codGateway is the cash-on-delivery pseudo-provider. Initiate confirms
// immediately with no external call; the cash obligation travels with the
// order as a collect-on-delivery flag.
type codGateway struct{}

// NewCODGateway builds the cash-on-delivery adapter.
func NewCODGateway() Gateway {
	return codGateway{}
}

func (codGateway) Name() string { return "cod" }

func (codGateway) Method() enums.PaymentMethod { return enums.PaymentMethodCOD }

func (codGateway) Initiate(_ context.Context, req InitiateRequest) (*InitiateResult, error) {
	return &InitiateResult{
		GatewayRef:        fmt.Sprintf("cod-%s", req.OrderID),
		Confirmed:         true,
		CollectOnDelivery: true,
	}, nil
}

func (codGateway) VerifyCallback(_ []byte, _ string) (*CallbackNotice, error) {
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery has no provider callbacks")
}

// Refund records a cash reversal reference; the money moves through the
// courier settlement process, not a provider API.
func (codGateway) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	if req.GatewayRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund requires the original attempt reference")
	}
	return &RefundResult{RefundRef: fmt.Sprintf("cod-refund-%s", req.GatewayRef)}, nil
}
