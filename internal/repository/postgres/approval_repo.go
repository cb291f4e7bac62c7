package postgres

/*
Файл approval_repo.go содержит реализацию методов для механизма Human-in-the-loop (HITL, «человек в контуре»).
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// GetApprovalByID получение деталей заявки для анализа.
func (r *Repo) GetApprovalByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	query := `SELECT id, execution_id, user_id, role, action, payload, status, reviewer_id, comment, created_at, updated_at
	          FROM approvals WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)

	var app domain.ApprovalRequest
	var reviewerID, comment sql.NullString // Используем для обработки NULL из БД

	err := row.Scan(
		&app.ID,
		&app.ExecutionID,
		&app.UserID,
		&app.Role,
		&app.Action,
		&app.Payload,
		&app.Status,
		&reviewerID,
		&comment,
		&app.CreatedAt,
		&app.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("approval not found: %w", err)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Маппим NULL значения в строки (если есть)
	if reviewerID.Valid {
		val := reviewerID.String
		app.ReviewerID = &val // Берем адрес
	}
	if comment.Valid {
		val := comment.String
		app.Comment = &val
	}

	return &app, nil
}

// FindApprovals фильтрация и выборка списка заявок (Decision Queue).
func (r *Repo) FindApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error) {
	// Базовый запрос
	query := `SELECT id, execution_id, user_id, role, action, payload, status, reviewer_id, comment, created_at, updated_at
              FROM approvals`

	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC LIMIT 100"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query approvals: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.ApprovalRequest, 0)

	for rows.Next() {
		var app domain.ApprovalRequest
		var reviewerID, comment sql.NullString

		err := rows.Scan(
			&app.ID, &app.ExecutionID, &app.UserID, &app.Role, &app.Action,
			&app.Payload, &app.Status, &reviewerID, &comment,
			&app.CreatedAt, &app.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan approval: %w", err)
		}

		if reviewerID.Valid {
			val := reviewerID.String
			app.ReviewerID = &val
		}
		if comment.Valid {
			val := comment.String
			app.Comment = &val
		}

		results = append(results, &app)
	}

	return results, rows.Err()
}

// CreateApproval создает запись в таблице approvals для механизма Human-in-the-loop.
// Оператор через Console API увидит действие, выполнение которого было приостановлено шлюзом.
func (r *Repo) CreateApproval(ctx context.Context, app *domain.ApprovalRequest) error {
	query := `INSERT INTO approvals (id, execution_id, user_id, role, action, payload, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		app.ID, app.ExecutionID, app.UserID, app.Role, app.Action, app.Payload, app.Status)
	if err != nil {
		return fmt.Errorf("postgres: failed to create approval request: %w", err)
	}
	return nil
}

// UpdateApprovalStatus атомарно обновляет статус заявки на подтверждение.
// Использует условие WHERE status = 'PENDING' для предотвращения Double Decision.
// Возвращает execution_id, который необходим для отправки сигнала в Redis.
func (r *Repo) UpdateApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, reviewerID, comment string) (string, error) {
	var executionID string
	// RETURNING позволяет нам получить execution_id за один проход,
	// не делая предварительный SELECT (экономия ресурсов и исключение Race Condition)
	query := `
		UPDATE approvals
		SET status = $1,
		    reviewer_id = $2,
		    comment = $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = 'PENDING'
		RETURNING execution_id`

	err := r.pool.QueryRow(ctx, query, status, reviewerID, comment, id).Scan(&executionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Если строк не найдено, значит либо ID неверный,
			// либо (что чаще) решение по этой заявке уже было принято ранее
			return "", domain.ErrAlreadyProcessed
		}
		return "", fmt.Errorf("postgres: failed to update approval status: %w", err)
	}
	return executionID, nil
}

// IsApprovalApproved — быстрая проверка для повторного запроса агента
// (X-Approval-ID): прошла ли заявка через решение оператора.
func (r *Repo) IsApprovalApproved(ctx context.Context, id string) (bool, error) {
	var status domain.ApprovalStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM approvals WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: failed to check approval status: %w", err)
	}
	return status == domain.ApprovalApproved, nil
}
