package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/api/responses"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

// Identity headers are stamped by the edge proxy after it has authenticated
// the caller. The API trusts them and only checks shape.
const (
	CustomerIDHeader = "X-DC-Customer-Id"
	OperatorIDHeader = "X-DC-Operator-Id"
)

// CustomerContext requires a customer identity header on every request and
// makes it available to downstream handlers.
func CustomerContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(CustomerIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity required"))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity malformed"))
				return
			}

			ctx := WithCustomerID(r.Context(), id.String())
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"customer_id": id.String()})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorContext requires an operator identity header on back-office routes.
func OperatorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(OperatorIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator identity required"))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator identity malformed"))
				return
			}

			ctx := WithOperatorID(r.Context(), id.String())
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"operator_id": id.String()})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
