package authority

import (
	"fmt"
	"sync"

	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

// RoleAuthority отвечает на вопрос «может ли роль X сделать Y и в каких пределах».
// Представляет In-memory реестр профилей ролей. Hot Path работает только с RAM:
// никакого I/O внутри решения, холодная загрузка из Postgres происходит при старте.
//
// Мутация (SetCustomRiskLimits / Replace) собирает новую мапу целиком и
// подменяет её под write-lock — читатель никогда не видит полузаписанный профиль.
type RoleAuthority struct {
	mu       sync.RWMutex
	profiles map[domain.Role]domain.RoleProfile

	logger *zap.Logger
}

func NewRoleAuthority(profiles []domain.RoleProfile, logger *zap.Logger) *RoleAuthority {
	m := make(map[domain.Role]domain.RoleProfile, len(profiles))
	for _, p := range profiles {
		m[p.Role] = p.Clone()
	}
	return &RoleAuthority{
		profiles: m,
		logger:   logger.Named("role-authority"),
	}
}

// Profile возвращает статичный профиль роли.
// Неизвестная роль — ошибка, а не тихий апгрейд: вызывающая сторона обязана
// подменить её на analysis_only и отразить подмену в аудите.
func (a *RoleAuthority) Profile(role domain.Role) (domain.RoleProfile, error) {
	a.mu.RLock()
	p, ok := a.profiles[role]
	a.mu.RUnlock()

	if !ok {
		return domain.RoleProfile{}, fmt.Errorf("role authority: unknown role %q", role)
	}
	return p, nil
}

// All возвращает копию всех профилей (для консоли)
func (a *RoleAuthority) All() []domain.RoleProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.RoleProfile, 0, len(a.profiles))
	for _, p := range a.profiles {
		out = append(out, p.Clone())
	}
	return out
}

// CanExecute проверяет действие на уровне роли.
// Порядок проверок фиксирован: неизвестная роль -> deny,
// blockedActions побеждает allowedActions (defense-in-depth),
// отсутствие в allowedActions -> deny по умолчанию (Zero Trust).
func (a *RoleAuthority) CanExecute(role domain.Role, action string) domain.ExecCheck {
	profile, err := a.Profile(role)
	if err != nil {
		return domain.ExecCheck{Reason: fmt.Sprintf("unknown role %q", role)}
	}

	if profile.ActionBlocked(action) {
		return domain.ExecCheck{Reason: fmt.Sprintf("action %q is blocked for role %q", action, role)}
	}

	if !profile.ActionAllowed(action) {
		return domain.ExecCheck{Reason: fmt.Sprintf("action %q is not permitted for role %q", action, role)}
	}

	return domain.ExecCheck{
		Allowed:              true,
		RequiresConfirmation: profile.RequiresConfirmation,
	}
}

// CheckRiskLimits прогоняет ВСЕ числовые проверки, без short-circuit:
// аудиту нужен полный список нарушений, а не первое попавшееся.
// Требование подтверждения (нотионал выше RequiresConfirmationAbove)
// независимо от жестких лимитов: легальная сделка тоже может ждать человека.
func (a *RoleAuthority) CheckRiskLimits(role domain.Role, trade domain.TradeAttrs) domain.RiskCheck {
	profile, err := a.Profile(role)
	if err != nil {
		return domain.RiskCheck{
			Violations: []string{fmt.Sprintf("unknown role %q", role)},
		}
	}
	limits := profile.Limits

	var violations []string

	if trade.Notional > limits.MaxNotionalPerTrade {
		violations = append(violations, fmt.Sprintf(
			"notional %.2f exceeds max notional per trade %.2f",
			trade.Notional, limits.MaxNotionalPerTrade))
	}

	if trade.Symbol != "" && !limits.InstrumentAllowed(trade.Symbol) {
		violations = append(violations, fmt.Sprintf(
			"instrument %q is not in the allowed list %v",
			trade.Symbol, limits.AllowedInstruments))
	}

	if trade.PositionPercent > limits.MaxPositionPercent {
		violations = append(violations, fmt.Sprintf(
			"resulting position %.2f%% exceeds max position %.2f%%",
			trade.PositionPercent, limits.MaxPositionPercent))
	}

	return domain.RiskCheck{
		WithinLimits:         len(violations) == 0,
		Violations:           violations,
		RequiresConfirmation: trade.Notional > limits.RequiresConfirmationAbove,
	}
}

// CanAutoExecute — чистое чтение двух флагов профиля, без параметров.
// Роль может исполнять автоматически только если исполнение разрешено
// И сама роль не требует подтверждения на каждое действие.
func (a *RoleAuthority) CanAutoExecute(role domain.Role) bool {
	profile, err := a.Profile(role)
	if err != nil {
		return false
	}
	return profile.CanExecute && !profile.RequiresConfirmation
}

// SetCustomRiskLimits — единственный путь мутации лимитов.
// Патч накладывается на копию профиля, новая мапа собирается в стороне
// и подменяется атомарно, уже летящие чтения дорабатывают со старым снапшотом.
func (a *RoleAuthority) SetCustomRiskLimits(role domain.Role, patch domain.RiskLimitsPatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.profiles[role]
	if !ok {
		return fmt.Errorf("role authority: unknown role %q", role)
	}

	updated := current.Clone()
	updated.Limits = patch.Apply(updated.Limits)

	next := make(map[domain.Role]domain.RoleProfile, len(a.profiles))
	for r, p := range a.profiles {
		next[r] = p
	}
	next[role] = updated
	a.profiles = next

	a.logger.Info("custom risk limits applied",
		zap.String("role", string(role)),
		zap.Float64("max_notional", updated.Limits.MaxNotionalPerTrade),
		zap.Float64("confirm_above", updated.Limits.RequiresConfirmationAbove),
	)
	return nil
}

// Replace выполняет «холодную загрузку» всего набора профилей (старт или refresh-сигнал)
func (a *RoleAuthority) Replace(profiles []domain.RoleProfile) {
	next := make(map[domain.Role]domain.RoleProfile, len(profiles))
	for _, p := range profiles {
		next[p.Role] = p.Clone()
	}

	a.mu.Lock()
	a.profiles = next
	a.mu.Unlock()

	a.logger.Info("role profiles refreshed", zap.Int("count", len(next)))
}
