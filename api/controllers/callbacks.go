package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/deshcart/deshcart-backend/api/responses"
	"github.com/deshcart/deshcart-backend/internal/gateway"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

const maxCallbackBody = 1 << 20

// CardCallback receives the card gateway's server-to-server verdict.
func CardCallback(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return gatewayCallback(svc, enums.PaymentMethodCard, logg)
}

// WalletCallback receives the mobile wallet's server-to-server verdict.
func WalletCallback(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return gatewayCallback(svc, enums.PaymentMethodWallet, logg)
}

// gatewayCallback authenticates a provider notification by its body signature
// and hands the verdict to settlement. Re-delivered verdicts settle as no-ops
// there, so the provider always sees 200 on retry.
func gatewayCallback(svc settlement.Service, method enums.PaymentMethod, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read callback body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(gateway.SignatureHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "callback signature missing"))
			return
		}

		if err := svc.HandleCallback(ctx, method, payload, signature); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
