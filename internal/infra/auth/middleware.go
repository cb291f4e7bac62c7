package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/finagent-gateway/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс, который должны реализовать и шлюз, и консоль
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// Типизированные ключи контекста (избегаем коллизий со строковыми)
type ctxKey string

const (
	scopesKey ctxKey = "user_scopes"
	userIDKey ctxKey = "user_id"
	roleKey   ctxKey = "agent_role"
)

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), scopesKey, claims.Scopes)
			ctx = context.WithValue(ctx, userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, roleKey, claims.AgentRole)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleFromContext возвращает роль агента из токена ("" если её там нет —
// дальше сработает подмена на analysis_only)
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

// UserIDFromContext — ID авторизованного пользователя для аудита
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// ScopesFromContext — права из токена (для консоли)
func ScopesFromContext(ctx context.Context) map[string]bool {
	if scopes, ok := ctx.Value(scopesKey).(map[string]bool); ok {
		return scopes
	}
	return nil
}
