package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xela07ax/finagent-gateway/internal/console/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(s *service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetDecisions возвращает вердикты шлюза с поддержкой фильтрации
// GET /v1/audit?role=...&code=...&limit=...
func (h *AuditHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	// Извлекаем фильтры из Query-параметров
	role := r.URL.Query().Get("role")
	code := r.URL.Query().Get("code")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.service.FetchDecisions(r.Context(), role, code, limit)
	if err != nil {
		http.Error(w, "Failed to fetch audit decisions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}
