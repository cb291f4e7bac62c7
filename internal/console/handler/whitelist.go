package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// WhitelistService Описываем, что нам нужно от сервиса
type WhitelistService interface {
	ListDomains(ctx context.Context) ([]domain.WhitelistedDomain, error)
	AddDomain(ctx context.Context, d domain.WhitelistedDomain) error
	RemoveDomain(ctx context.Context, host string, category domain.Category) (bool, error)
	GetWhitelistStats(ctx context.Context) (*domain.WhitelistStats, error)
}

type WhitelistHandler struct {
	service WhitelistService
}

func NewWhitelistHandler(s WhitelistService) *WhitelistHandler {
	return &WhitelistHandler{service: s}
}

func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	domains, err := h.service.ListDomains(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch whitelist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(domains)
}

// Add создает или заменяет запись (domain, category)
// POST /v1/whitelist
func (h *WhitelistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var d domain.WhitelistedDomain
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if d.Domain == "" {
		http.Error(w, "domain is required", http.StatusBadRequest)
		return
	}
	if _, err := domain.ParseCategory(string(d.Category)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.AddDomain(r.Context(), d); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Remove удаляет домен. Категория опциональна:
// DELETE /v1/whitelist?domain=ft.com&category=news
func (h *WhitelistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("domain"))
	if host == "" {
		http.Error(w, "domain query parameter is required", http.StatusBadRequest)
		return
	}

	var category domain.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		parsed, err := domain.ParseCategory(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		category = parsed
	}

	removed, err := h.service.RemoveDomain(r.Context(), host, category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "domain not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WhitelistHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetWhitelistStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch whitelist stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
