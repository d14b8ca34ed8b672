package erpsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/outbox/payloads"
)

const apiKeyHeader = "X-ERP-Api-Key"

// HTTPClient pushes settled orders to the back-office ERP endpoint. The ERP
// acknowledges idempotently keyed by order ID, so a repeated push for the
// same order returns 409 with the original acknowledgment reference.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	client     *http.Client
	maxRetries uint64
}

// NewHTTPClient builds the ERP push client.
func NewHTTPClient(cfg config.ERPConfig, client *http.Client) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("erp endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		client:     client,
		maxRetries: cfg.MaxRetries,
	}, nil
}

type erpPushRequest struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	TotalCents  int64  `json:"total_cents"`
}

type erpAckResponse struct {
	Ref string `json:"ref"`
}

// SyncOrder posts one order to the ERP and returns its acknowledgment
// reference. Network errors and ERP 5xx responses are retried with capped
// exponential backoff; a 409 means the order was already acknowledged and
// counts as success.
func (c *HTTPClient) SyncOrder(ctx context.Context, event payloads.ERPOrderSyncEvent) (string, error) {
	body, err := json.Marshal(erpPushRequest{
		OrderID:     event.OrderID.String(),
		OrderNumber: event.OrderNumber,
		Status:      string(event.Status),
		TotalCents:  event.TotalCents,
	})
	if err != nil {
		return "", fmt.Errorf("marshal erp push: %w", err)
	}

	backoff := retry.NewExponential(500 * time.Millisecond)
	backoff = retry.WithCappedDuration(5*time.Second, backoff)
	backoff = retry.WithMaxRetries(c.maxRetries, backoff)

	var ack erpAckResponse
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.push(ctx, body, &ack)
	})
	if err != nil {
		return "", fmt.Errorf("erp push for order %s: %w", event.OrderID, err)
	}
	if ack.Ref == "" {
		return "", fmt.Errorf("erp returned no acknowledgment reference for order %s", event.OrderID)
	}
	return ack.Ref, nil
}

func (c *HTTPClient) push(ctx context.Context, body []byte, out *erpAckResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.RetryableError(err)
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("erp returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusOK,
		resp.StatusCode == http.StatusCreated,
		resp.StatusCode == http.StatusConflict:
		return json.Unmarshal(raw, out)
	default:
		return fmt.Errorf("erp returned %d: %s", resp.StatusCode, string(raw))
	}
}
