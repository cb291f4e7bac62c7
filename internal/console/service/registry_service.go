package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/finagent-gateway/internal/domain"
	"github.com/xela07ax/finagent-gateway/internal/infra"
	"go.uber.org/zap"
)

// RegistryRepository описывает требования к хранилищу реестров (роли + whitelist)
type RegistryRepository interface {
	GetAllProfiles(ctx context.Context) ([]domain.RoleProfile, error)
	GetProfile(ctx context.Context, role domain.Role) (*domain.RoleProfile, error)
	SaveRiskLimits(ctx context.Context, role domain.Role, limits domain.RiskLimits) error
	GetAllDomains(ctx context.Context) ([]domain.WhitelistedDomain, error)
	UpsertDomain(ctx context.Context, d domain.WhitelistedDomain) error
	DeleteDomain(ctx context.Context, host string, category domain.Category) (bool, error)
}

// RegistryService — управление ролями и whitelist через консоль.
// Каждая мутация: Postgres (источник истины) -> сигнал в Redis,
// по которому все инстансы шлюза перечитывают снапшот.
type RegistryService struct {
	repo   RegistryRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRegistryService(repo RegistryRepository, rdb *redis.Client, logger *zap.Logger) *RegistryService {
	return &RegistryService{
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("registry-service"),
	}
}

// notifyUpdate транслирует сигнал обновления реестра.
// Если Redis недоступен — данные в БД уже корректны, шлюзы подтянут их
// при переподключении слушателя (onSync). Поэтому только warn, не ошибка.
func (s *RegistryService) notifyUpdate(ctx context.Context, channel, what string) {
	payload := fmt.Sprintf("%s:%d", what, time.Now().Unix())
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		s.logger.Warn("registry update signal delivery failed",
			zap.String("channel", channel),
			zap.Error(err))
		return
	}
	s.logger.Info("registry update signal published",
		zap.String("channel", channel),
		zap.String("what", what))
}

func (s *RegistryService) GetProfiles(ctx context.Context) ([]domain.RoleProfile, error) {
	profiles, err := s.repo.GetAllProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: could not fetch profiles: %w", err)
	}
	// Фронтенд получает пустой массив [], а не null
	if profiles == nil {
		return []domain.RoleProfile{}, nil
	}
	return profiles, nil
}

func (s *RegistryService) GetProfile(ctx context.Context, role domain.Role) (*domain.RoleProfile, error) {
	return s.repo.GetProfile(ctx, role)
}

// UpdateRiskLimits накладывает частичный патч на лимиты роли.
// Мерж происходит здесь: в БД уходит уже ЦЕЛЬНЫЙ набор лимитов,
// полуобновленного состояния не существует ни в одном хранилище.
func (s *RegistryService) UpdateRiskLimits(ctx context.Context, role domain.Role, patch domain.RiskLimitsPatch) (*domain.RoleProfile, error) {
	profile, err := s.repo.GetProfile(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("registry: role %s not found", role)
	}

	profile.Limits = patch.Apply(profile.Limits)
	if err := s.repo.SaveRiskLimits(ctx, role, profile.Limits); err != nil {
		return nil, fmt.Errorf("registry: failed to persist limits: %w", err)
	}

	s.notifyUpdate(ctx, infra.RedisChanRolesUpdate, string(role))
	return profile, nil
}

func (s *RegistryService) ListDomains(ctx context.Context) ([]domain.WhitelistedDomain, error) {
	domains, err := s.repo.GetAllDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: could not fetch whitelist: %w", err)
	}
	if domains == nil {
		return []domain.WhitelistedDomain{}, nil
	}
	return domains, nil
}

func (s *RegistryService) AddDomain(ctx context.Context, d domain.WhitelistedDomain) error {
	if err := s.repo.UpsertDomain(ctx, d); err != nil {
		return err
	}
	s.notifyUpdate(ctx, infra.RedisChanWhitelistUpdate, d.Domain)
	return nil
}

func (s *RegistryService) RemoveDomain(ctx context.Context, host string, category domain.Category) (bool, error) {
	removed, err := s.repo.DeleteDomain(ctx, host, category)
	if err != nil {
		return false, err
	}
	if removed {
		s.notifyUpdate(ctx, infra.RedisChanWhitelistUpdate, host)
	}
	return removed, nil
}

// GetWhitelistStats считает агрегат по текущему содержимому БД
func (s *RegistryService) GetWhitelistStats(ctx context.Context) (*domain.WhitelistStats, error) {
	domains, err := s.repo.GetAllDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: could not fetch whitelist: %w", err)
	}

	stats := &domain.WhitelistStats{
		ByCategory: make(map[domain.Category]int),
		ByCountry:  make(map[string]int),
	}
	seen := make(map[string]bool)
	for _, d := range domains {
		if !seen[d.Domain] {
			seen[d.Domain] = true
			stats.TotalDomains++
		}
		stats.ByCategory[d.Category]++
		if d.Country != "" {
			stats.ByCountry[d.Country]++
		}
	}
	return stats, nil
}
