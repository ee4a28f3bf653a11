package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/meetkosiso/Multi-Agent-Assistant/api"
	"github.com/meetkosiso/Multi-Agent-Assistant/llm"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 3 * time.Second

// HealthHandler serves GET /health. Without checkers it is a pure
// liveness probe; with checkers it also reports per-dependency status
// and degrades to 503 when one is down.
type HealthHandler struct {
	checkers map[string]llm.Provider
	logger   *zap.Logger
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		checkers: make(map[string]llm.Provider),
		logger:   logger.With(zap.String("handler", "health")),
	}
}

// WithCheck registers a named dependency probe.
func (h *HealthHandler) WithCheck(name string, p llm.Provider) *HealthHandler {
	h.checkers[name] = p
	return h
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "healthy"}
	status := http.StatusOK

	if len(h.checkers) > 0 {
		resp.Checks = make(map[string]string, len(h.checkers))
		for name, p := range h.checkers {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			hs, err := p.HealthCheck(ctx)
			cancel()

			if err != nil || hs == nil || !hs.Healthy {
				h.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
	}

	WriteJSON(w, status, resp)
}
