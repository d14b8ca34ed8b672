package gateway

import (
	"fmt"
	"net/http"

	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

// Registry resolves the adapter for a payment method.
type Registry struct {
	byMethod map[enums.PaymentMethod]Gateway
}

// NewRegistry wires one adapter per supported payment method from config.
func NewRegistry(cfg config.GatewaysConfig) (*Registry, error) {
	client := &http.Client{Timeout: cfg.InitiateTimeout}
	policy := retryPolicy{timeout: cfg.InitiateTimeout, retries: uint64(max(cfg.InitiateRetries, 0))}

	card, err := NewCardGateway(cfg.Card, client, policy)
	if err != nil {
		return nil, fmt.Errorf("build card gateway: %w", err)
	}
	wallet, err := NewWalletGateway(cfg.Wallet, client, policy)
	if err != nil {
		return nil, fmt.Errorf("build wallet gateway: %w", err)
	}

	return NewRegistryWith(card, wallet, NewCODGateway())
}

// NewRegistryWith assembles a registry from explicit adapters.
func NewRegistryWith(gateways ...Gateway) (*Registry, error) {
	byMethod := make(map[enums.PaymentMethod]Gateway, len(gateways))
	for _, gw := range gateways {
		if gw == nil {
			return nil, fmt.Errorf("nil gateway in registry")
		}
		method := gw.Method()
		if _, dup := byMethod[method]; dup {
			return nil, fmt.Errorf("duplicate gateway for method %s", method)
		}
		byMethod[method] = gw
	}
	return &Registry{byMethod: byMethod}, nil
}

// ForMethod returns the adapter for a payment method.
func (r *Registry) ForMethod(method enums.PaymentMethod) (Gateway, error) {
	gw, ok := r.byMethod[method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %s", method))
	}
	return gw, nil
}
