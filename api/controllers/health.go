package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/deshcart/deshcart-backend/api/responses"
	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

const readyCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DeshCart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency readiness. A single failing dependency
// flips the whole endpoint to 503 so the load balancer stops routing here.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DeshCart-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["db"] = checkDependency(ctx, logg, "db", dbP, &healthy)
		checks["redis"] = checkDependency(ctx, logg, "redis", redisP, &healthy)

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": readiness(healthy),
			"checks": checks,
		})
	}
}

func checkDependency(ctx context.Context, logg *logger.Logger, name string, p pinger, healthy *bool) string {
	if p == nil {
		*healthy = false
		return "missing"
	}
	if err := p.Ping(ctx); err != nil {
		*healthy = false
		if logg != nil {
			logg.Error(ctx, "readiness check failed: "+name, err)
		}
		return "down"
	}
	return "ok"
}

func readiness(healthy bool) string {
	if healthy {
		return "ready"
	}
	return "degraded"
}
