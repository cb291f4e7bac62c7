package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// RolesService Описываем, что нам нужно от сервиса
type RolesService interface {
	GetProfiles(ctx context.Context) ([]domain.RoleProfile, error)
	GetProfile(ctx context.Context, role domain.Role) (*domain.RoleProfile, error)
	UpdateRiskLimits(ctx context.Context, role domain.Role, patch domain.RiskLimitsPatch) (*domain.RoleProfile, error)
}

type RolesHandler struct {
	service RolesService
}

func NewRolesHandler(s RolesService) *RolesHandler {
	return &RolesHandler{service: s}
}

func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.GetProfiles(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch role profiles", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profiles)
}

func (h *RolesHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), role)
	if err != nil {
		http.Error(w, "Failed to fetch role profile", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, "role not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// UpdateLimits принимает частичный патч лимитов.
// PUT /v1/roles/{role}/limits
func (h *RolesHandler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var patch domain.RiskLimitsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.service.UpdateRiskLimits(r.Context(), role, patch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}
