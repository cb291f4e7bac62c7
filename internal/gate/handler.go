package gate

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExecuteHandler выполняет уже разрешенное действие через ExecutionProvider.
// Стоит в цепочке ПОСЛЕ Middleware.Authorize: если запрос дошел сюда,
// вердикт в контексте гарантированно Allowed (и подтвержден, если требовалось).
type ExecuteHandler struct {
	executor ExecutionProvider
	logger   *zap.Logger
}

func NewExecuteHandler(executor ExecutionProvider, logger *zap.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		executor: executor,
		logger:   logger.Named("execute"),
	}
}

func (h *ExecuteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action := chi.URLParam(r, "action")

	decision, ok := DecisionFromContext(ctx)
	if !ok || !decision.Allowed {
		// Сюда можно попасть только в обход middleware — закрываемся
		http.Error(w, "authorization decision missing", http.StatusForbidden)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	result, err := h.executor.Call(ctx, action, payload)
	if err != nil {
		h.logger.Error("downstream execution failed",
			zap.String("action", action),
			zap.String("trace_id", ExtractTraceID(ctx)),
			zap.Error(err),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "execution_failed",
			"error":    err.Error(),
			"trace_id": ExtractTraceID(ctx),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "executed",
		"action":   action,
		"trace_id": ExtractTraceID(ctx),
		"result":   json.RawMessage(result),
	})
}
