package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "finagent"
)

// Ключи (состояние)
const (
	RedisKeyApprovalStatus = RedisNamespace + ":approvals:execution:"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanApprovalDecisions — канал для трансляции решений оператора (HITL).
	RedisChanApprovalDecisions = RedisNamespace + ":approvals"
	// RedisChanRolesUpdate — сигнал "профили ролей изменились, перечитай из БД".
	RedisChanRolesUpdate = RedisNamespace + ":registry:roles-update"
	// RedisChanWhitelistUpdate — сигнал обновления белого списка доменов.
	RedisChanWhitelistUpdate = RedisNamespace + ":registry:whitelist-update"
)

// GetApprovalStatusKey Генератор ключей статусов подтверждения по execution_id
func GetApprovalStatusKey(executionID string) string {
	return fmt.Sprintf("%s:approvals:execution:%s", RedisNamespace, executionID)
}
