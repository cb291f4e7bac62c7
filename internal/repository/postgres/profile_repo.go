package postgres

/*
Файл profile_repo.go отвечает за хранение профилей ролей.
Postgres — источник истины; шлюз держит снапшот профилей в RAM
и перечитывает его целиком по сигналу из Redis.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// GetAllProfiles выполняет "холодную загрузку" всего набора ролей при старте.
// Лимиты и списки действий лежат в JSONB — pgx сам маппит их в структуры.
func (r *Repo) GetAllProfiles(ctx context.Context) ([]domain.RoleProfile, error) {
	query := `
		SELECT role, description, can_execute, requires_confirmation,
		       risk_limits, allowed_actions, blocked_actions
		FROM role_profiles`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query role profiles: %w", err)
	}
	defer rows.Close()

	var results []domain.RoleProfile
	for rows.Next() {
		var p domain.RoleProfile
		if err := rows.Scan(
			&p.Role, &p.Description, &p.CanExecute, &p.RequiresConfirmation,
			&p.Limits, &p.AllowedActions, &p.BlockedActions,
		); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan profile: %w", err)
		}
		results = append(results, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// GetProfile точечное чтение одной роли (Console API).
func (r *Repo) GetProfile(ctx context.Context, role domain.Role) (*domain.RoleProfile, error) {
	query := `
		SELECT role, description, can_execute, requires_confirmation,
		       risk_limits, allowed_actions, blocked_actions
		FROM role_profiles WHERE role = $1`

	p := &domain.RoleProfile{}
	err := r.pool.QueryRow(ctx, query, role).Scan(
		&p.Role, &p.Description, &p.CanExecute, &p.RequiresConfirmation,
		&p.Limits, &p.AllowedActions, &p.BlockedActions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // 404 решает хендлер
		}
		return nil, err
	}
	return p, nil
}

// SaveRiskLimits перезаписывает лимиты роли целиком.
// Вызывающий (сервис консоли) обязан прислать уже СЛИТЫЙ набор лимитов:
// здесь нет частичного мержа, полуобновленный профиль невозможен.
func (r *Repo) SaveRiskLimits(ctx context.Context, role domain.Role, limits domain.RiskLimits) error {
	query := `
		UPDATE role_profiles
		SET risk_limits = $1, updated_at = NOW()
		WHERE role = $2`

	ct, err := r.pool.Exec(ctx, query, limits, role)
	if err != nil {
		return fmt.Errorf("postgres: failed to update risk limits: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: role %s not found", role)
	}
	return nil
}

// SeedProfiles заполняет пустую таблицу дефолтными ролями (идемпотентно).
func (r *Repo) SeedProfiles(ctx context.Context, profiles []domain.RoleProfile) error {
	query := `
		INSERT INTO role_profiles (role, description, can_execute, requires_confirmation,
		                           risk_limits, allowed_actions, blocked_actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (role) DO NOTHING`

	for _, p := range profiles {
		if _, err := r.pool.Exec(ctx, query,
			p.Role, p.Description, p.CanExecute, p.RequiresConfirmation,
			p.Limits, p.AllowedActions, p.BlockedActions,
		); err != nil {
			return fmt.Errorf("postgres: failed to seed profile %s: %w", p.Role, err)
		}
	}
	return nil
}
