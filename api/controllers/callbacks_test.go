package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deshcart/deshcart-backend/internal/gateway"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

func TestCardCallbackForwardsVerdict(t *testing.T) {
	var gotMethod enums.PaymentMethod
	var gotPayload []byte
	var gotSignature string
	svc := &stubSettlement{
		callbackFn: func(_ context.Context, method enums.PaymentMethod, payload []byte, signature string) error {
			gotMethod, gotPayload, gotSignature = method, payload, signature
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/card", strings.NewReader(`{"session_id":"sess_1"}`))
	req.Header.Set(gateway.SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	CardCallback(svc, nil)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	if gotMethod != enums.PaymentMethodCard {
		t.Fatalf("unexpected method %s", gotMethod)
	}
	if string(gotPayload) != `{"session_id":"sess_1"}` {
		t.Fatalf("payload altered: %s", gotPayload)
	}
	if gotSignature != "deadbeef" {
		t.Fatalf("signature not forwarded: %s", gotSignature)
	}
}

func TestWalletCallbackUsesWalletMethod(t *testing.T) {
	var gotMethod enums.PaymentMethod
	svc := &stubSettlement{
		callbackFn: func(_ context.Context, method enums.PaymentMethod, _ []byte, _ string) error {
			gotMethod = method
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/wallet", strings.NewReader(`{}`))
	req.Header.Set(gateway.SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	WalletCallback(svc, nil)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if gotMethod != enums.PaymentMethodWallet {
		t.Fatalf("unexpected method %s", gotMethod)
	}
}

func TestCallbackRequiresSignatureHeader(t *testing.T) {
	called := false
	svc := &stubSettlement{
		callbackFn: func(context.Context, enums.PaymentMethod, []byte, string) error {
			called = true
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/card", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	CardCallback(svc, nil)(w, req)

	if called {
		t.Fatal("settlement must not see unsigned callbacks")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestCallbackRejectionMapsToBadRequest(t *testing.T) {
	svc := &stubSettlement{
		callbackFn: func(context.Context, enums.PaymentMethod, []byte, string) error {
			return pkgerrors.New(pkgerrors.CodeInvalidSignature, "signature mismatch")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/card", strings.NewReader(`{}`))
	req.Header.Set(gateway.SignatureHeader, "tampered")
	w := httptest.NewRecorder()
	CardCallback(svc, nil)(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}
