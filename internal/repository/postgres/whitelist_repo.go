package postgres

/*
Файл whitelist_repo.go — долговременное хранение белого списка доменов.
Ключ записи — пара (domain, category): один домен может иметь независимые
правила путей под разные категории использования.
*/

import (
	"context"
	"fmt"

	"github.com/xela07ax/finagent-gateway/internal/domain"
)

// GetAllDomains выполняет холодную загрузку всего whitelist.
func (r *Repo) GetAllDomains(ctx context.Context) ([]domain.WhitelistedDomain, error) {
	query := `
		SELECT domain, category, country, verified, allowed_paths, blocked_paths
		FROM whitelist_domains`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query whitelist: %w", err)
	}
	defer rows.Close()

	var results []domain.WhitelistedDomain
	for rows.Next() {
		var d domain.WhitelistedDomain
		if err := rows.Scan(
			&d.Domain, &d.Category, &d.Country, &d.Verified,
			&d.AllowedPaths, &d.BlockedPaths,
		); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan domain: %w", err)
		}
		results = append(results, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// UpsertDomain создает или заменяет запись (domain, category).
func (r *Repo) UpsertDomain(ctx context.Context, d domain.WhitelistedDomain) error {
	query := `
		INSERT INTO whitelist_domains (domain, category, country, verified, allowed_paths, blocked_paths)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (domain, category) DO UPDATE
		SET country = EXCLUDED.country,
		    verified = EXCLUDED.verified,
		    allowed_paths = EXCLUDED.allowed_paths,
		    blocked_paths = EXCLUDED.blocked_paths,
		    updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		d.Domain, d.Category, d.Country, d.Verified, d.AllowedPaths, d.BlockedPaths)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert whitelist domain: %w", err)
	}
	return nil
}

// DeleteDomain удаляет запись. Пустая категория удаляет домен из всех категорий.
// Возвращает false, если удалять было нечего.
func (r *Repo) DeleteDomain(ctx context.Context, host string, category domain.Category) (bool, error) {
	var query string
	var args []interface{}

	if category == "" {
		query = `DELETE FROM whitelist_domains WHERE domain = $1`
		args = []interface{}{host}
	} else {
		query = `DELETE FROM whitelist_domains WHERE domain = $1 AND category = $2`
		args = []interface{}{host, category}
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to delete whitelist domain: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// SeedDomains заполняет пустую таблицу дефолтным реестром (идемпотентно).
func (r *Repo) SeedDomains(ctx context.Context, domains []domain.WhitelistedDomain) error {
	query := `
		INSERT INTO whitelist_domains (domain, category, country, verified, allowed_paths, blocked_paths)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (domain, category) DO NOTHING`

	for _, d := range domains {
		if _, err := r.pool.Exec(ctx, query,
			d.Domain, d.Category, d.Country, d.Verified, d.AllowedPaths, d.BlockedPaths,
		); err != nil {
			return fmt.Errorf("postgres: failed to seed domain %s: %w", d.Domain, err)
		}
	}
	return nil
}
