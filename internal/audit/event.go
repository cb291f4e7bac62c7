package audit

import "time"

// DecisionEvent — одна запись аудита авторизации.
// Пишется на КАЖДЫЙ вердикт шлюза: allow, deny и pending-confirmation,
// включая подмену неизвестной роли на analysis_only.
type DecisionEvent struct {
	ID      string `json:"id"`       // UUID события
	TraceID string `json:"trace_id"` // Сквозной ID запроса
	UserID  string `json:"user_id"`  // Кто делал (только корреляция, не решение)
	Role    string `json:"role"`     // Эффективная роль
	Action  string `json:"action"`   // Что хотел сделать

	Payload map[string]interface{} `json:"payload"` // С какими данными

	// Результат
	Allowed              bool     `json:"allowed"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	Code                 string   `json:"code,omitempty"` // Машиночитаемый код отказа
	Violations           []string `json:"violations,omitempty"`
	RoleSubstituted      bool     `json:"role_substituted"` // Неизвестная роль была подменена

	Timestamp  time.Time `json:"timestamp"`
	DurationUs int64     `json:"duration_us"` // Решение занимает микросекунды, ms слишком грубо
}
