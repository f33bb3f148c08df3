package notification

import "time"

const (
	TypeOrderPlaced    = "order_placed"
	TypeOrderDelivered = "order_delivered"
	TypeOrderAccepted  = "order_accepted"
	TypeOrderRejected  = "order_rejected"
	TypeOrderPaid      = "order_paid"
)

type Notification struct {
	ID        string    `json:"id" db:"notification_id"`
	UserID    string    `json:"-" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"isRead" db:"is_read"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
