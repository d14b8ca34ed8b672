package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestCustomerContextRequiresHeader(t *testing.T) {
	handlerCalled := false
	handler := CustomerContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if handlerCalled {
		t.Fatal("handler must not run without identity")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestCustomerContextRejectsMalformedID(t *testing.T) {
	handler := CustomerContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(CustomerIDHeader, "not-a-uuid")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestCustomerContextInjectsID(t *testing.T) {
	id := uuid.New()
	var got string
	handler := CustomerContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CustomerIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(CustomerIDHeader, id.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != id.String() {
		t.Fatalf("expected %s in context, got %q", id, got)
	}
}

func TestOperatorContextInjectsID(t *testing.T) {
	id := uuid.New()
	var got string
	handler := OperatorContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = OperatorIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/ops/v1/orders/x/fulfill", nil)
	req.Header.Set(OperatorIDHeader, id.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != id.String() {
		t.Fatalf("expected %s in context, got %q", id, got)
	}
}
