package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/finagent-gateway/internal/domain"
	"github.com/xela07ax/finagent-gateway/internal/infra"
	"go.uber.org/zap"
)

// ApprovalRepository описывает требования к хранилищу HITL-заявок
type ApprovalRepository interface {
	GetApprovalByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	FindApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error)
	UpdateApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, reviewerID, comment string) (string, error)
}

type ApprovalService struct {
	repo   ApprovalRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewApprovalService(repo ApprovalRepository, rdb *redis.Client, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("approval-service"),
	}
}

func (s *ApprovalService) GetApproval(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	// Здесь можно добавить логику проверки прав текущего пользователя (RBAC),
	// прежде чем отдавать детали приостановленного действия.
	return s.repo.GetApprovalByID(ctx, id)
}

func (s *ApprovalService) GetApprovals(ctx context.Context, status string) ([]*domain.ApprovalRequest, error) {
	// Приводим к верхнему регистру, так как в константах PENDING/APPROVED
	return s.repo.FindApprovals(ctx, domain.ApprovalStatus(strings.ToUpper(status)))
}

// DecideApproval фиксирует решение оператора по приостановленному действию.
// Мы передаем reviewerID для обеспечения подотчетности (Accountability).
func (s *ApprovalService) DecideApproval(ctx context.Context, approvalID string, approved bool, reviewerID, comment string) error {
	// 1. Определяем финальный статус на основе решения
	status := domain.ApprovalRejected
	if approved {
		status = domain.ApprovalApproved
	}

	// 2. Атомарно обновляем БД
	// UpdateApprovalStatus возвращает executionID для Redis-сигнала
	// и отбивает повторное решение (WHERE status = 'PENDING')
	executionID, err := s.repo.UpdateApprovalStatus(ctx, approvalID, status, reviewerID, comment)
	if err != nil {
		s.logger.Error("failed to persist approval decision",
			zap.String("approval_id", approvalID),
			zap.String("reviewer_id", reviewerID),
			zap.Error(err))
		return fmt.Errorf("database update failed: %w", err)
	}

	// 3. Кладем статус в Redis с TTL — агент при ретрае получит ответ
	// даже если его запрос попадет на другой инстанс шлюза
	statusKey := infra.GetApprovalStatusKey(executionID)
	if err := s.rdb.Set(ctx, statusKey, string(status), 24*time.Hour).Err(); err != nil {
		s.logger.Warn("failed to cache approval status", zap.String("key", statusKey), zap.Error(err))
	}

	// 4. Публикуем сигнал "пробуждения" для ожидающих горутин шлюза
	// Канал уникален для конкретного запроса: finagent:approvals:execution:{executionID}
	chanName := fmt.Sprintf("%s:execution:%s", infra.RedisChanApprovalDecisions, executionID)
	if err := s.rdb.Publish(ctx, chanName, string(status)).Err(); err != nil {
		// Если Redis недоступен, решение уже в Postgres: ретрай агента
		// дойдет до него через ApprovalGate.IsApproved (Fail-Safe)
		s.logger.Error("decision saved but signal not delivered",
			zap.String("execution_id", executionID),
			zap.Error(err))
		return fmt.Errorf("redis signal failure: %w", err)
	}

	s.logger.Info("HITL decision processed successfully",
		zap.String("execution_id", executionID),
		zap.String("reviewer", reviewerID),
		zap.String("result", string(status)))

	return nil
}
