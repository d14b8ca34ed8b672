package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

const testSecret = "test-secret"

func testPolicy() retryPolicy {
	return retryPolicy{timeout: 5 * time.Second, retries: 2}
}

func newCardForTest(t *testing.T, baseURL string) Gateway {
	t.Helper()
	gw, err := NewCardGateway(config.CardGatewayConfig{
		BaseURL:      baseURL,
		StoreID:      "store-1",
		SharedSecret: testSecret,
		ReturnURL:    "https://shop.example/return",
		CallbackURL:  "https://shop.example/callbacks/card",
	}, &http.Client{Timeout: 2 * time.Second}, testPolicy())
	if err != nil {
		t.Fatalf("build card gateway: %v", err)
	}
	return gw
}

func TestCardInitiateOpensSession(t *testing.T) {
	t.Parallel()

	var gotBody cardSessionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if r.Header.Get(SignatureHeader) != SignPayload(testSecret, raw) {
			t.Errorf("request not signed with shared secret")
		}
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cardSessionResponse{
			SessionID:   "sess_123",
			RedirectURL: "https://pay.example/sess_123",
		})
	}))
	defer server.Close()

	gw := newCardForTest(t, server.URL)
	result, err := gw.Initiate(context.Background(), InitiateRequest{
		OrderID:     uuid.New(),
		OrderNumber: "DC-20260825-000042",
		AmountCents: 450050,
		Currency:    enums.CurrencyBDT,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if result.GatewayRef != "sess_123" || result.RedirectURL != "https://pay.example/sess_123" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Confirmed {
		t.Fatal("card initiation must not confirm synchronously")
	}
	if gotBody.Amount != "4500.50" {
		t.Fatalf("amount not formatted as decimal string: %q", gotBody.Amount)
	}
	if gotBody.MerchantRef != "DC-20260825-000042" {
		t.Fatalf("merchant ref missing: %q", gotBody.MerchantRef)
	}
}

func TestCardInitiateRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(cardSessionResponse{SessionID: "sess_2", RedirectURL: "https://pay.example/sess_2"})
	}))
	defer server.Close()

	gw := newCardForTest(t, server.URL)
	result, err := gw.Initiate(context.Background(), InitiateRequest{
		OrderID: uuid.New(), OrderNumber: "DC-20260825-000001", AmountCents: 100, Currency: enums.CurrencyBDT,
	})
	if err != nil {
		t.Fatalf("initiate after retry: %v", err)
	}
	if result.GatewayRef != "sess_2" || calls != 2 {
		t.Fatalf("expected retry then success, got ref=%s calls=%d", result.GatewayRef, calls)
	}
}

func TestCardInitiateClientErrorIsTerminal(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	gw := newCardForTest(t, server.URL)
	_, err := gw.Initiate(context.Background(), InitiateRequest{
		OrderID: uuid.New(), OrderNumber: "DC-20260825-000001", AmountCents: 100, Currency: enums.CurrencyBDT,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePaymentInit {
		t.Fatalf("expected payment init error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}

func TestCardVerifyCallback(t *testing.T) {
	t.Parallel()

	gw := newCardForTest(t, "https://card.example")
	orderID := uuid.New()
	payload, _ := json.Marshal(cardCallbackPayload{
		SessionID: "sess_123",
		OrderID:   orderID.String(),
		Status:    "authorized",
		Amount:    "4500.50",
		Currency:  "BDT",
	})

	notice, err := gw.VerifyCallback(payload, SignPayload(testSecret, payload))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if notice.Status != CallbackSucceeded || notice.GatewayRef != "sess_123" {
		t.Fatalf("unexpected notice %+v", notice)
	}
	if notice.OrderID != orderID || notice.AmountCents != 450050 || notice.Currency != enums.CurrencyBDT {
		t.Fatalf("callback not normalized: %+v", notice)
	}

	_, err = gw.VerifyCallback(payload, SignPayload("wrong-secret", payload))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidSignature {
		t.Fatalf("expected signature error, got %v", err)
	}

	tampered := append(append([]byte{}, payload...), ' ')
	_, err = gw.VerifyCallback(tampered, SignPayload(testSecret, payload))
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidSignature {
		t.Fatalf("expected signature error for tampered payload, got %v", err)
	}
}

func TestCardVerifyCallbackDecline(t *testing.T) {
	t.Parallel()

	gw := newCardForTest(t, "https://card.example")
	payload, _ := json.Marshal(cardCallbackPayload{
		SessionID: "sess_9",
		OrderID:   uuid.NewString(),
		Status:    "declined",
		Amount:    "100.00",
		Currency:  "BDT",
		Reason:    "insufficient funds",
	})
	notice, err := gw.VerifyCallback(payload, SignPayload(testSecret, payload))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if notice.Status != CallbackFailed || notice.Reason != "insufficient funds" {
		t.Fatalf("decline not normalized: %+v", notice)
	}
}

func TestCardRefund(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cardRefundRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.SessionID != "sess_123" || req.Amount != "100.00" {
			t.Errorf("unexpected refund request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(cardRefundResponse{RefundID: "ref_1"})
	}))
	defer server.Close()

	gw := newCardForTest(t, server.URL)
	result, err := gw.Refund(context.Background(), RefundRequest{
		GatewayRef: "sess_123", AmountCents: 10000, Currency: enums.CurrencyBDT, Reason: "return",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if result.RefundRef != "ref_1" {
		t.Fatalf("unexpected refund ref %q", result.RefundRef)
	}
}

func TestParseAmountCents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw   string
		cents int64
		ok    bool
	}{
		{"4500.50", 450050, true},
		{"0.01", 1, true},
		{"1299", 129900, true},
		{"10.005", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		cents, err := parseAmountCents(tc.raw)
		if tc.ok && (err != nil || cents != tc.cents) {
			t.Errorf("%q: got (%d, %v), want %d", tc.raw, cents, err, tc.cents)
		}
		if !tc.ok && err == nil {
			t.Errorf("%q: expected error", tc.raw)
		}
	}
	if got := formatAmount(450050); got != "4500.50" {
		t.Errorf("formatAmount: got %q", got)
	}
}
