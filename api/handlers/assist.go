package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/meetkosiso/Multi-Agent-Assistant/api"
	"github.com/meetkosiso/Multi-Agent-Assistant/workflow"
)

// Runner runs one assistance workflow. workflow.Graph satisfies this.
type Runner interface {
	Run(ctx context.Context, query string) workflow.Outcome
}

// AssistHandler serves POST /api/v1/assist.
type AssistHandler struct {
	runner Runner
	logger *zap.Logger
}

// NewAssistHandler creates the assist endpoint handler.
func NewAssistHandler(runner Runner, logger *zap.Logger) *AssistHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistHandler{
		runner: runner,
		logger: logger.With(zap.String("handler", "assist")),
	}
}

func (h *AssistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteJSON(w, http.StatusMethodNotAllowed, api.AssistResponse{Error: "method not allowed"})
		return
	}

	var req api.AssistRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		h.logger.Warn("bad assist request", zap.Error(err))
		WriteJSON(w, http.StatusBadRequest, api.AssistResponse{Error: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.Warn("invalid assist query", zap.Error(err))
		WriteJSON(w, http.StatusBadRequest, api.AssistResponse{Error: err.Error()})
		return
	}

	out := h.runner.Run(r.Context(), req.Query)
	if out.Err != "" {
		h.logger.Error("workflow run aborted",
			zap.String("query", req.Query),
			zap.String("error", out.Err))
		WriteJSON(w, http.StatusInternalServerError, api.AssistResponse{Error: out.Err})
		return
	}

	h.logger.Info("assist completed",
		zap.Int("steps", len(out.Steps)),
		zap.Int("result_len", len(out.Result)))
	WriteJSON(w, http.StatusOK, api.AssistResponse{Result: out.Result})
}
