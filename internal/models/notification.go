package models

import "time"

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationExchangeCreated   NotificationType = "exchange_created"
	NotificationExchangeApproved  NotificationType = "exchange_approved"
	NotificationExchangeRejected  NotificationType = "exchange_rejected"
	NotificationExchangeCancelled NotificationType = "exchange_cancelled"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	StoreID   string           `db:"store_id" json:"store_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	RelatedID *string          `db:"related_id" json:"related_id,omitempty"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// ExchangeEvent is the payload of the notification job emitted after a transition.
type ExchangeEvent struct {
	Action  ExchangeAction  `json:"action"`
	Request ExchangeRequest `json:"request"`
	ActorID string          `json:"actor_id"`
}

// PendingCount is the badge payload.
type PendingCount struct {
	Role  UserRole `json:"role,omitempty"`
	Count int      `json:"count"`
}
