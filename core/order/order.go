package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID           string          `json:"id" db:"order_id"`
	BuyerID      string          `json:"buyerId" db:"buyer_id"`
	SellerID     string          `json:"sellerId" db:"seller_id"`
	GigID        *string         `json:"gigId" db:"gig_id"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Status       Status          `json:"status" db:"status"`
	Instructions string          `json:"instructions" db:"instructions"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

type OrderNew struct {
	GigID        string `json:"gigId" validate:"required"`
	Instructions string `json:"instructions"`
}

// Dispatcher is the notification hook fired on every state change.
// Implementations are best-effort: they swallow and log their own failures
// and must never fail the triggering operation.
type Dispatcher interface {
	OrderPlaced(ctx context.Context, ord Order)
	OrderDelivered(ctx context.Context, ord Order)
	OrderAccepted(ctx context.Context, ord Order)
	OrderRejected(ctx context.Context, ord Order)
	OrderCompleted(ctx context.Context, ord Order)
}
