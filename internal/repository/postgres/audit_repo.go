package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/finagent-gateway/internal/audit"
	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// WriteBatch сохраняет пачку вердиктов одним INSERT.
// Реализует audit.StorageInterface для фонового воркера decision trail.
func (r *Repo) WriteBatch(ctx context.Context, events []audit.DecisionEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_decisions
	numFields := 12
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12)

		payload, _ := json.Marshal(e.Payload)
		violations, _ := json.Marshal(e.Violations)

		vals = append(vals,
			e.ID, e.TraceID, e.UserID, e.Role, e.Action,
			payload, e.Allowed, e.RequiresConfirmation, e.Code, violations,
			e.RoleSubstituted, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO audit_decisions (id, trace_id, user_id, role, action, payload, allowed, requires_confirmation, code, violations, role_substituted, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

// FindDecisions — выборка последних вердиктов для консоли.
// Фильтры опциональны: пустая роль/код означает "все".
func (r *Repo) FindDecisions(ctx context.Context, role, code string, limit int) ([]audit.DecisionEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, trace_id, user_id, role, action, payload,
		       allowed, requires_confirmation, code, violations, role_substituted, timestamp
		FROM audit_decisions`

	var conds []string
	var args []interface{}
	if role != "" {
		args = append(args, role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if code != "" {
		args = append(args, code)
		conds = append(conds, fmt.Sprintf("code = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query decisions: %w", err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
	results := make([]audit.DecisionEvent, 0)
	for rows.Next() {
		var e audit.DecisionEvent
		var payload, violations []byte

		if err := rows.Scan(
			&e.ID, &e.TraceID, &e.UserID, &e.Role, &e.Action, &payload,
			&e.Allowed, &e.RequiresConfirmation, &e.Code, &violations,
			&e.RoleSubstituted, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan decision: %w", err)
		}

		_ = json.Unmarshal(payload, &e.Payload)
		_ = json.Unmarshal(violations, &e.Violations)
		results = append(results, e)
	}

	return results, rows.Err()
}

// GetGlobalStats — агрегаты для дашборда консоли за последние 24 часа.
func (r *Repo) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	s := &domain.GlobalStats{
		TopActions:    make(map[string]int64),
		DenialsByCode: make(map[string]int64),
	}

	// 1. Объемы и количество приостановленных заявок
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM audit_decisions WHERE timestamp > NOW() - INTERVAL '24 hours'),
			(SELECT COUNT(*) FROM audit_decisions WHERE NOT allowed AND timestamp > NOW() - INTERVAL '24 hours'),
			(SELECT COUNT(*) FROM approvals WHERE status = 'PENDING')`).
		Scan(&s.TotalDecisions, &s.DeniedDecisions, &s.PendingApprovals)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect stats totals: %w", err)
	}
	if s.TotalDecisions > 0 {
		s.DenyRatio = float64(s.DeniedDecisions) / float64(s.TotalDecisions)
	}

	// 2. Топ действий
	rows, err := r.pool.Query(ctx, `
		SELECT action, COUNT(*) AS cnt
		FROM audit_decisions
		WHERE timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY action ORDER BY cnt DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect top actions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var action string
		var cnt int64
		if err := rows.Scan(&action, &cnt); err != nil {
			return nil, err
		}
		s.TopActions[action] = cnt
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// 3. Отказы по кодам
	rows, err = r.pool.Query(ctx, `
		SELECT code, COUNT(*) AS cnt
		FROM audit_decisions
		WHERE NOT allowed AND timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY code`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect denial codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var cnt int64
		if err := rows.Scan(&code, &cnt); err != nil {
			return nil, err
		}
		s.DenialsByCode[code] = cnt
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// 4. Почасовая активность
	rows, err = r.pool.Query(ctx, `
		SELECT date_trunc('hour', timestamp) AS h, COUNT(*)
		FROM audit_decisions
		WHERE timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY h ORDER BY h`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect hourly activity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h time.Time
		var cnt int64
		if err := rows.Scan(&h, &cnt); err != nil {
			return nil, err
		}
		s.HourlyActivity = append(s.HourlyActivity, domain.ActivityPoint{
			Hour:  h.Format("2006-01-02T15:00"),
			Count: cnt,
		})
	}

	return s, rows.Err()
}
