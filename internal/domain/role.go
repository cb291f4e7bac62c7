package domain

import (
	"fmt"
	"strings"
)

// Role определяет уровень доверия вызывающей стороны (тир возможностей, не личность).
// Набор закрытый: добавление новой роли требует правки ParseRole и сид-профилей,
// компилятор и тесты заставят пересмотреть все места принятия решений.
type Role string

const (
	// RoleAnalysisOnly — только чтение и аналитика, никаких side-effect действий
	RoleAnalysisOnly Role = "analysis_only"

	// RoleConfirmToExecute — исполнение разрешено, но каждое действие ждет подтверждения (HITL)
	RoleConfirmToExecute Role = "confirm_to_execute"

	// RoleAutoExecuteWithLimits — автоматическое исполнение в пределах жестких лимитов
	RoleAutoExecuteWithLimits Role = "auto_execute_with_limits"
)

// MostRestrictiveRole — дефолт для неизвестных/отсутствующих ролей (Zero Trust)
const MostRestrictiveRole = RoleAnalysisOnly

// ParseRole валидирует строку из запроса/токена.
// Неизвестная роль — это ошибка, а не тихий даунгрейд: подмену на analysis_only
// делает вызывающая сторона и обязана отразить её в аудите.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleAnalysisOnly:
		return RoleAnalysisOnly, nil
	case RoleConfirmToExecute:
		return RoleConfirmToExecute, nil
	case RoleAutoExecuteWithLimits:
		return RoleAutoExecuteWithLimits, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// RiskLimits — числовые границы риска, привязанные к роли.
// Пустой AllowedInstruments означает «торговля инструментами запрещена вовсе»,
// снятие ограничения возможно только явным Unbounded-флагом.
type RiskLimits struct {
	MaxNotionalPerTrade       float64  `json:"max_notional_per_trade"`
	MaxPositionPercent        float64  `json:"max_position_percent"`
	MaxDailyLoss              float64  `json:"max_daily_loss"`
	MaxDrawdownPercent        float64  `json:"max_drawdown_percent"`
	AllowedInstruments        []string `json:"allowed_instruments"`
	InstrumentsUnbounded      bool     `json:"instruments_unbounded"`
	MaxTradesPerDay           int      `json:"max_trades_per_day"`
	RequiresConfirmationAbove float64  `json:"requires_confirmation_above"`
}

// InstrumentAllowed проверяет символ по allow-list роли
func (l RiskLimits) InstrumentAllowed(symbol string) bool {
	if l.InstrumentsUnbounded {
		return true
	}
	for _, s := range l.AllowedInstruments {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// RiskLimitsPatch — частичное переопределение лимитов через админский путь.
// Указатели отличают «не трогать» от «выставить в ноль».
type RiskLimitsPatch struct {
	MaxNotionalPerTrade       *float64  `json:"max_notional_per_trade,omitempty"`
	MaxPositionPercent        *float64  `json:"max_position_percent,omitempty"`
	MaxDailyLoss              *float64  `json:"max_daily_loss,omitempty"`
	MaxDrawdownPercent        *float64  `json:"max_drawdown_percent,omitempty"`
	AllowedInstruments        *[]string `json:"allowed_instruments,omitempty"`
	InstrumentsUnbounded      *bool     `json:"instruments_unbounded,omitempty"`
	MaxTradesPerDay           *int      `json:"max_trades_per_day,omitempty"`
	RequiresConfirmationAbove *float64  `json:"requires_confirmation_above,omitempty"`
}

// Apply накладывает патч на копию лимитов. Исходное значение не меняется —
// вызывающая сторона собирает новый снапшот целиком.
func (p RiskLimitsPatch) Apply(l RiskLimits) RiskLimits {
	if p.MaxNotionalPerTrade != nil {
		l.MaxNotionalPerTrade = *p.MaxNotionalPerTrade
	}
	if p.MaxPositionPercent != nil {
		l.MaxPositionPercent = *p.MaxPositionPercent
	}
	if p.MaxDailyLoss != nil {
		l.MaxDailyLoss = *p.MaxDailyLoss
	}
	if p.MaxDrawdownPercent != nil {
		l.MaxDrawdownPercent = *p.MaxDrawdownPercent
	}
	if p.AllowedInstruments != nil {
		l.AllowedInstruments = append([]string(nil), (*p.AllowedInstruments)...)
	}
	if p.InstrumentsUnbounded != nil {
		l.InstrumentsUnbounded = *p.InstrumentsUnbounded
	}
	if p.MaxTradesPerDay != nil {
		l.MaxTradesPerDay = *p.MaxTradesPerDay
	}
	if p.RequiresConfirmationAbove != nil {
		l.RequiresConfirmationAbove = *p.RequiresConfirmationAbove
	}
	return l
}

// RoleProfile — полная конфигурация роли.
// Инвариант: BlockedActions всегда побеждает AllowedActions (defense-in-depth),
// действие вне AllowedActions запрещено по умолчанию.
type RoleProfile struct {
	Role        Role   `json:"role"`
	Description string `json:"description"`

	CanExecute           bool `json:"can_execute"`           // Может ли роль в принципе делать side-effect действия
	RequiresConfirmation bool `json:"requires_confirmation"` // Каждое действие ждет подтверждения, независимо от лимитов

	Limits RiskLimits `json:"limits"`

	AllowedActions []string `json:"allowed_actions"`
	BlockedActions []string `json:"blocked_actions"`
}

// ActionBlocked — явный запрет сильнее любого разрешения
func (p RoleProfile) ActionBlocked(action string) bool {
	for _, a := range p.BlockedActions {
		if a == action {
			return true
		}
	}
	return false
}

// ActionAllowed проверяет только allow-list; вызывающая сторона обязана
// сначала проверить ActionBlocked
func (p RoleProfile) ActionAllowed(action string) bool {
	for _, a := range p.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// Clone возвращает глубокую копию профиля для сборки нового снапшота
func (p RoleProfile) Clone() RoleProfile {
	c := p
	c.Limits.AllowedInstruments = append([]string(nil), p.Limits.AllowedInstruments...)
	c.AllowedActions = append([]string(nil), p.AllowedActions...)
	c.BlockedActions = append([]string(nil), p.BlockedActions...)
	return c
}

// TradeAttrs — торговые параметры запроса (эфемерные, живут один вызов)
type TradeAttrs struct {
	Symbol          string  `json:"symbol"`
	Notional        float64 `json:"notional"`         // qty × limit_price
	PositionPercent float64 `json:"position_percent"` // Доля портфеля после сделки
}
