package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — полезная нагрузка RS256 токена.
// AgentRole попадает в решение шлюза; пустая/неизвестная роль
// подменяется на analysis_only с пометкой в аудите.
type CustomClaims struct {
	UserID    string          `json:"user_id"`
	AgentRole string          `json:"agent_role"` // analysis_only / confirm_to_execute / auto_execute_with_limits
	Scopes    map[string]bool `json:"scopes"`     // Напр. "admin": true для консоли
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // Никогда не отправляем на фронт
	Role         string          `json:"role"`
	Scopes       map[string]bool `json:"scopes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
