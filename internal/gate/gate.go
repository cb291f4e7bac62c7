package gate

import (
	"github.com/xela07ax/finagent-gateway/internal/authority"
	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

// Gate — единая точка авторизации, которой пользуются все подсистемы.
// Композиция двух независимых решателей: RoleAuthority и WhitelistAuthority.
// Authorize — чистая функция от (текущие снапшоты конфигурации, запрос):
// никакого I/O, никакого состояния между вызовами, результат за микросекунды.
type Gate struct {
	roles     *authority.RoleAuthority
	whitelist *authority.WhitelistAuthority
	logger    *zap.Logger
}

func New(roles *authority.RoleAuthority, whitelist *authority.WhitelistAuthority, logger *zap.Logger) *Gate {
	return &Gate{
		roles:     roles,
		whitelist: whitelist,
		logger:    logger.Named("gate"),
	}
}

// Authorize принимает единый вердикт по запросу.
// Порядок фиксирован: сначала действие на уровне роли — отказ здесь
// возвращается сразу, сетевые проверки не выполняются (fail fast на deny-пути).
// Затем лимиты риска для торговых запросов, затем whitelist для URL.
// RequiresConfirmation — логическое ИЛИ всех под-проверок: требования
// подтверждения только накапливаются, никогда не взаимоуничтожаются.
func (g *Gate) Authorize(req domain.ActionRequest) domain.Decision {
	decision := domain.Decision{
		Role:   req.Role,
		Action: req.Action,
	}

	// 1. Уровень роли
	exec := g.roles.CanExecute(req.Role, req.Action)
	if !exec.Allowed {
		decision.Code = domain.CodeActionForbidden
		decision.Violations = []string{exec.Reason}
		g.logDenial(req, decision)
		return decision
	}
	decision.RequiresConfirmation = exec.RequiresConfirmation

	// 2. Числовые лимиты (только для торговых запросов)
	if req.Trade != nil {
		risk := g.roles.CheckRiskLimits(req.Role, *req.Trade)
		decision.RequiresConfirmation = decision.RequiresConfirmation || risk.RequiresConfirmation
		if !risk.WithinLimits {
			decision.Code = domain.CodeRiskLimitsExceeded
			decision.Violations = append(decision.Violations, risk.Violations...)
			g.logDenial(req, decision)
			return decision
		}
	}

	// 3. Whitelist целевых URL (для сетевых действий)
	if len(req.TargetURLs) > 0 {
		bulk := g.whitelist.IsAllURLsAllowed(req.TargetURLs, req.Category)
		if !bulk.AllValid {
			decision.Code = domain.CodeURLNotWhitelisted
			for _, bad := range bulk.InvalidURLs {
				decision.Violations = append(decision.Violations, bad.URL+": "+bad.Reason)
			}
			g.logDenial(req, decision)
			return decision
		}
		// Для единственного URL прикладываем совпавшую запись downstream-обработчику
		if len(req.TargetURLs) == 1 && len(bulk.Valid) == 1 {
			decision.Matched = bulk.Valid[0].Matched
		}
	}

	decision.Allowed = true
	return decision
}

// CanAutoExecute прокидывает чистое чтение флагов профиля
func (g *Gate) CanAutoExecute(role domain.Role) bool {
	return g.roles.CanAutoExecute(role)
}

func (g *Gate) logDenial(req domain.ActionRequest, d domain.Decision) {
	g.logger.Info("action denied",
		zap.String("role", string(req.Role)),
		zap.String("action", req.Action),
		zap.String("code", string(d.Code)),
		zap.Strings("violations", d.Violations),
		zap.Bool("role_substituted", req.RoleSubstituted),
	)
}
