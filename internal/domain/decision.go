package domain

// DenyCode — машиночитаемый код отказа для HTTP-контракта шлюза.
// Коды стабильны между деплоями: по ним операторы разделяют
// «клиент прислал мусор» и «клиенту корректно отказано».
type DenyCode string

const (
	CodeActionForbidden    DenyCode = "ACTION_FORBIDDEN"
	CodeRiskLimitsExceeded DenyCode = "RISK_LIMITS_EXCEEDED"
	CodeURLNotWhitelisted  DenyCode = "URL_NOT_WHITELISTED"
	CodeInvalidNewsSources DenyCode = "INVALID_NEWS_SOURCES"
	CodeMissingURL         DenyCode = "MISSING_URL"
	CodeInvalidSources     DenyCode = "INVALID_SOURCES"
	// CodeInvalidOrderPayload — торговое действие без разборного order_payload:
	// мусор на входе, а не отказ по правилам
	CodeInvalidOrderPayload DenyCode = "INVALID_ORDER_PAYLOAD"
)

// ActionRequest — входные данные одной авторизации.
// Создается на каждый вызов и никуда не сохраняется.
type ActionRequest struct {
	Role   Role   `json:"role"`
	UserID string `json:"user_id"` // Только для аудита, в решении не участвует
	Action string `json:"action"`

	// RoleSubstituted — роль была неизвестна/отсутствовала и подменена
	// на analysis_only. Подмена обязана попасть в аудит.
	RoleSubstituted bool `json:"role_substituted,omitempty"`

	Trade      *TradeAttrs `json:"trade,omitempty"`
	TargetURLs []string    `json:"target_urls,omitempty"`
	Category   Category    `json:"category,omitempty"` // Категория для проверки URL
}

// Decision — итоговый вердикт шлюза. Собирается заново на каждый вызов
// и после возврата не мутируется.
type Decision struct {
	Allowed              bool     `json:"allowed"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	Code                 DenyCode `json:"code,omitempty"` // Пустой при Allowed
	Violations           []string `json:"violations,omitempty"`

	// Эхо для корреляции в аудите
	Role   Role   `json:"role"`
	Action string `json:"action"`

	// Matched — запись whitelist, по которой прошел URL (если проверялся)
	Matched *WhitelistedDomain `json:"matched,omitempty"`
}

// ExecCheck — результат проверки действия на уровне роли
type ExecCheck struct {
	Allowed              bool   `json:"allowed"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Reason               string `json:"reason,omitempty"`
}

// RiskCheck — результат проверки числовых лимитов.
// WithinLimits истинно тогда и только тогда, когда Violations пуст;
// требование подтверждения само по себе лимиты не нарушает.
type RiskCheck struct {
	WithinLimits         bool     `json:"within_limits"`
	Violations           []string `json:"violations"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
}
