package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sethvargo/go-retry"

	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request or callback body.
const SignatureHeader = "X-DC-Signature"

// cardGateway integrates the hosted-redirect card provider. Initiate opens a
// payment session; the customer completes entry on the provider's page and the
// verdict arrives on the server-to-server callback. The browser return
// redirect is never trusted.
type cardGateway struct {
	cfg    config.CardGatewayConfig
	client *http.Client
	policy retryPolicy
}

// NewCardGateway builds the card adapter.
func NewCardGateway(cfg config.CardGatewayConfig, client *http.Client, policy retryPolicy) (Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("card gateway base url required")
	}
	if cfg.StoreID == "" {
		return nil, fmt.Errorf("card gateway store id required")
	}
	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("card gateway secret required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &cardGateway{cfg: cfg, client: client, policy: policy}, nil
}

func (g *cardGateway) Name() string { return "card-hosted" }

func (g *cardGateway) Method() enums.PaymentMethod { return enums.PaymentMethodCard }

type cardSessionRequest struct {
	StoreID     string `json:"store_id"`
	MerchantRef string `json:"merchant_ref"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	ReturnURL   string `json:"return_url"`
	CallbackURL string `json:"callback_url"`
}

type cardSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

func (g *cardGateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	body, err := json.Marshal(cardSessionRequest{
		StoreID:     g.cfg.StoreID,
		MerchantRef: req.OrderNumber,
		OrderID:     req.OrderID.String(),
		Amount:      formatAmount(req.AmountCents),
		Currency:    string(req.Currency),
		ReturnURL:   g.cfg.ReturnURL,
		CallbackURL: g.cfg.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal card session request: %w", err)
	}

	var parsed cardSessionResponse
	err = g.policy.do(ctx, func(ctx context.Context) error {
		return postSigned(ctx, g.client, g.cfg.BaseURL+"/v1/sessions", g.cfg.SharedSecret, body, &parsed)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentInit, err, "card session could not be opened")
	}
	if parsed.SessionID == "" || parsed.RedirectURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentInit, "card provider returned an incomplete session")
	}
	return &InitiateResult{GatewayRef: parsed.SessionID, RedirectURL: parsed.RedirectURL}, nil
}

type cardCallbackPayload struct {
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason"`
}

func (g *cardGateway) VerifyCallback(payload []byte, signature string) (*CallbackNotice, error) {
	if !VerifySignature(g.cfg.SharedSecret, payload, signature) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "card callback signature mismatch")
	}
	var parsed cardCallbackPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "card callback payload malformed")
	}
	notice, err := normalizeCallback(parsed.SessionID, parsed.OrderID, parsed.Amount, parsed.Currency, parsed.Reason, payload)
	if err != nil {
		return nil, err
	}
	switch parsed.Status {
	case "authorized":
		notice.Status = CallbackSucceeded
	case "declined":
		notice.Status = CallbackFailed
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown card callback status %q", parsed.Status))
	}
	return notice, nil
}

type cardRefundRequest struct {
	StoreID   string `json:"store_id"`
	SessionID string `json:"session_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason"`
}

type cardRefundResponse struct {
	RefundID string `json:"refund_id"`
}

func (g *cardGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	body, err := json.Marshal(cardRefundRequest{
		StoreID:   g.cfg.StoreID,
		SessionID: req.GatewayRef,
		Amount:    formatAmount(req.AmountCents),
		Currency:  string(req.Currency),
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal card refund request: %w", err)
	}

	var parsed cardRefundResponse
	err = g.policy.do(ctx, func(ctx context.Context) error {
		return postSigned(ctx, g.client, g.cfg.BaseURL+"/v1/refunds", g.cfg.SharedSecret, body, &parsed)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "card refund could not be issued")
	}
	if parsed.RefundID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card provider returned no refund reference")
	}
	return &RefundResult{RefundRef: parsed.RefundID}, nil
}

// postSigned posts a signed JSON body and decodes the response into out.
// Network errors and provider 5xx responses are retryable; anything else
// is terminal.
func postSigned(ctx context.Context, client *http.Client, url, secret string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, SignPayload(secret, body))

	resp, err := client.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.RetryableError(err)
	}
	if resp.StatusCode >= 500 {
		return retry.RetryableError(fmt.Errorf("provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(raw))
	}
	return json.Unmarshal(raw, out)
}

// normalizeCallback builds the provider-agnostic notice shared by the card
// and wallet adapters.
func normalizeCallback(ref, orderID, amount, currency, reason string, raw []byte) (*CallbackNotice, error) {
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback missing gateway reference")
	}
	parsedOrderID, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	cents, err := parseAmountCents(amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback amount malformed")
	}
	parsedCurrency, err := enums.ParseCurrency(currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback currency unknown")
	}
	return &CallbackNotice{
		GatewayRef:  ref,
		OrderID:     parsedOrderID,
		AmountCents: cents,
		Currency:    parsedCurrency,
		Reason:      reason,
		Raw:         append(json.RawMessage{}, raw...),
	}, nil
}
