package domain

import (
	"errors"
	"time"
)

// Статусы State Machine подтверждений
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

var (
	ErrInvalidTransition = errors.New("invalid approval status transition")
	ErrAlreadyProcessed  = errors.New("approval request already processed")
)

// ApprovalRequest — приостановленное действие, ожидающее решения оператора.
// Создается шлюзом, когда вердикт Allowed + RequiresConfirmation.
type ApprovalRequest struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"` // Ссылка на зависший запрос в шлюзе
	UserID      string         `json:"user_id"`
	Role        Role           `json:"role"`
	Action      string         `json:"action"`
	Payload     string         `json:"payload"` // Что именно агент хотел выполнить (JSON)
	Status      ApprovalStatus `json:"status"`

	ReviewerID *string `json:"reviewer_id,omitempty"`
	Comment    *string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransitionTo проверяет правила конечного автомата
func (a *ApprovalRequest) CanTransitionTo(next ApprovalStatus) error {
	if a.Status != ApprovalPending {
		return ErrAlreadyProcessed
	}
	if next == ApprovalPending {
		return ErrInvalidTransition
	}
	return nil
}
