package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/finagent-gateway/internal/audit"
	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// DecisionLogProvider описывает контракт для чтения данных аудита.
// Используем DecisionEvent из пакета audit, чтобы сохранить единую модель данных.
type DecisionLogProvider interface {
	FindDecisions(ctx context.Context, role, code string, limit int) ([]audit.DecisionEvent, error)
	GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error)
}

type AuditService struct {
	repo DecisionLogProvider
}

func NewAuditService(repo DecisionLogProvider) *AuditService {
	return &AuditService{
		repo: repo,
	}
}

// FetchDecisions запрашивает вердикты с фильтрацией.
// Логика фильтрации (пустые строки или конкретные значения) инкапсулирована в репозитории.
func (s *AuditService) FetchDecisions(ctx context.Context, role, code string, limit int) ([]audit.DecisionEvent, error) {
	logs, err := s.repo.FindDecisions(ctx, role, code, limit)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch decisions: %w", err)
	}
	return logs, nil
}

func (s *AuditService) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	// Здесь можно добавить кэширование в Redis на 1 минуту,
	// чтобы не нагружать Postgres тяжелыми аналитическими запросами.
	return s.repo.GetGlobalStats(ctx)
}
