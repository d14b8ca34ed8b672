package erpsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	"github.com/deshcart/deshcart-backend/pkg/outbox/payloads"
)

func newTestHTTPClient(t *testing.T, endpoint string, maxRetries uint64) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(config.ERPConfig{
		Endpoint:   endpoint,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	}, nil)
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return client
}

func syncEvent() payloads.ERPOrderSyncEvent {
	return payloads.ERPOrderSyncEvent{
		OrderID:     uuid.New(),
		OrderNumber: "DC-20260825-104233",
		Status:      enums.OrderStatusPaid,
		TotalCents:  51000,
	}
}

func TestSyncOrderReturnsAckRef(t *testing.T) {
	t.Parallel()

	var gotKey string
	var gotBody erpPushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(apiKeyHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ref":"ERP-ACK-42"}`))
	}))
	defer server.Close()

	event := syncEvent()
	ref, err := newTestHTTPClient(t, server.URL, 2).SyncOrder(context.Background(), event)
	if err != nil {
		t.Fatalf("sync order: %v", err)
	}
	if ref != "ERP-ACK-42" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotBody.OrderID != event.OrderID.String() {
		t.Fatalf("unexpected order id %q", gotBody.OrderID)
	}
	if gotBody.Status != string(enums.OrderStatusPaid) {
		t.Fatalf("unexpected status %q", gotBody.Status)
	}
}

func TestSyncOrderTreatsConflictAsAcknowledged(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"ref":"ERP-ACK-PRIOR"}`))
	}))
	defer server.Close()

	ref, err := newTestHTTPClient(t, server.URL, 0).SyncOrder(context.Background(), syncEvent())
	if err != nil {
		t.Fatalf("sync order: %v", err)
	}
	if ref != "ERP-ACK-PRIOR" {
		t.Fatalf("unexpected ref %q", ref)
	}
}

func TestSyncOrderRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ref":"ERP-ACK-7"}`))
	}))
	defer server.Close()

	ref, err := newTestHTTPClient(t, server.URL, 2).SyncOrder(context.Background(), syncEvent())
	if err != nil {
		t.Fatalf("sync order: %v", err)
	}
	if ref != "ERP-ACK-7" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if calls != 2 {
		t.Fatalf("expected retry after 503, got %d calls", calls)
	}
}

func TestSyncOrderStopsOnClientError(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unknown order"}`))
	}))
	defer server.Close()

	_, err := newTestHTTPClient(t, server.URL, 3).SyncOrder(context.Background(), syncEvent())
	if err == nil {
		t.Fatal("expected error for 422")
	}
	if !strings.Contains(err.Error(), "422") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("client errors must not retry, got %d calls", calls)
	}
}

func TestSyncOrderRequiresAckRef(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := newTestHTTPClient(t, server.URL, 0).SyncOrder(context.Background(), syncEvent())
	if err == nil {
		t.Fatal("expected error for missing ref")
	}
}
