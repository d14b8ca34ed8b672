package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// walletGateway integrates the mobile wallet provider. Initiate opens a
// pending charge against the customer's wallet number; the provider runs its
// own one-time-code approval on the customer's phone and reports the verdict
// on the callback. There is no redirect.
type walletGateway struct {
	cfg    config.WalletGatewayConfig
	client *http.Client
	policy retryPolicy
}

// NewWalletGateway builds the wallet adapter.
func NewWalletGateway(cfg config.WalletGatewayConfig, client *http.Client, policy retryPolicy) (Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("wallet gateway base url required")
	}
	if cfg.MerchantID == "" {
		return nil, fmt.Errorf("wallet gateway merchant id required")
	}
	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("wallet gateway secret required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &walletGateway{cfg: cfg, client: client, policy: policy}, nil
}

func (g *walletGateway) Name() string { return "wallet-otp" }

func (g *walletGateway) Method() enums.PaymentMethod { return enums.PaymentMethodWallet }

type walletChargeRequest struct {
	MerchantID  string `json:"merchant_id"`
	MerchantRef string `json:"merchant_ref"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Msisdn      string `json:"msisdn"`
	CallbackURL string `json:"callback_url"`
}

type walletChargeResponse struct {
	ChargeID string `json:"charge_id"`
}

func (g *walletGateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if req.CustomerPhone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet payment requires a phone number")
	}
	body, err := json.Marshal(walletChargeRequest{
		MerchantID:  g.cfg.MerchantID,
		MerchantRef: req.OrderNumber,
		OrderID:     req.OrderID.String(),
		Amount:      formatAmount(req.AmountCents),
		Currency:    string(req.Currency),
		Msisdn:      req.CustomerPhone,
		CallbackURL: g.cfg.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal wallet charge request: %w", err)
	}

	var parsed walletChargeResponse
	err = g.policy.do(ctx, func(ctx context.Context) error {
		return postSigned(ctx, g.client, g.cfg.BaseURL+"/v1/charges", g.cfg.SharedSecret, body, &parsed)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentInit, err, "wallet charge could not be opened")
	}
	if parsed.ChargeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentInit, "wallet provider returned no charge reference")
	}
	// The customer approves on their handset; nothing to redirect to.
	return &InitiateResult{GatewayRef: parsed.ChargeID}, nil
}

type walletCallbackPayload struct {
	ChargeID string `json:"charge_id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
}

func (g *walletGateway) VerifyCallback(payload []byte, signature string) (*CallbackNotice, error) {
	if !VerifySignature(g.cfg.SharedSecret, payload, signature) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "wallet callback signature mismatch")
	}
	var parsed walletCallbackPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "wallet callback payload malformed")
	}
	notice, err := normalizeCallback(parsed.ChargeID, parsed.OrderID, parsed.Amount, parsed.Currency, parsed.Reason, payload)
	if err != nil {
		return nil, err
	}
	switch parsed.Status {
	case "completed":
		notice.Status = CallbackSucceeded
	case "failed", "expired":
		notice.Status = CallbackFailed
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown wallet callback status %q", parsed.Status))
	}
	return notice, nil
}

type walletReversalRequest struct {
	MerchantID string `json:"merchant_id"`
	ChargeID   string `json:"charge_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Reason     string `json:"reason"`
}

type walletReversalResponse struct {
	ReversalID string `json:"reversal_id"`
}

func (g *walletGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	body, err := json.Marshal(walletReversalRequest{
		MerchantID: g.cfg.MerchantID,
		ChargeID:   req.GatewayRef,
		Amount:     formatAmount(req.AmountCents),
		Currency:   string(req.Currency),
		Reason:     req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal wallet reversal request: %w", err)
	}

	var parsed walletReversalResponse
	err = g.policy.do(ctx, func(ctx context.Context) error {
		return postSigned(ctx, g.client, g.cfg.BaseURL+"/v1/reversals", g.cfg.SharedSecret, body, &parsed)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wallet reversal could not be issued")
	}
	if parsed.ReversalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet provider returned no reversal reference")
	}
	return &RefundResult{RefundRef: parsed.ReversalID}, nil
}
