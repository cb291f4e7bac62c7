package gate

import (
	"context"

	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// ApprovalRepository — персистентность HITL-заявок (Postgres)
type ApprovalRepository interface {
	CreateApproval(ctx context.Context, app *domain.ApprovalRequest) error
	IsApprovalApproved(ctx context.Context, id string) (bool, error)
}

// ApprovalStore адаптирует репозиторий под ApprovalGate.
// Источник истины — Postgres: ретрай агента увидит решение оператора,
// на какой бы инстанс шлюза он ни попал.
type ApprovalStore struct {
	repo ApprovalRepository
}

func NewApprovalStore(repo ApprovalRepository) *ApprovalStore {
	return &ApprovalStore{repo: repo}
}

func (s *ApprovalStore) Create(ctx context.Context, req *domain.ApprovalRequest) error {
	return s.repo.CreateApproval(ctx, req)
}

func (s *ApprovalStore) IsApproved(ctx context.Context, id string) (bool, error) {
	return s.repo.IsApprovalApproved(ctx, id)
}
