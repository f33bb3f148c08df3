package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment is the single payment attempt of an order. The row is created
// lazily on the first checkout request; the UNIQUE constraint on order_id
// makes concurrent creations collapse onto one row.
type Payment struct {
	ID                  string              `json:"id" db:"payment_id"`
	OrderID             string              `json:"orderId" db:"order_id"`
	StripeSessionID     *string             `json:"stripeSessionId" db:"stripe_session_id"`
	StripePaymentIntent *string             `json:"stripePaymentIntent" db:"stripe_payment_intent"`
	Amount              decimal.NullDecimal `json:"amount" db:"amount"`
	Currency            string              `json:"currency" db:"currency"`
	Status              Status              `json:"status" db:"status"`
	CreatedAt           time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time           `json:"updatedAt" db:"updated_at"`
}

type CheckoutNew struct {
	OrderID string `json:"orderId" validate:"required"`
}

// VerifySummary is the read-only projection returned by the verify
// endpoint.
type VerifySummary struct {
	SessionID     string `json:"sessionId"`
	PaymentStatus string `json:"paymentStatus"`
	AmountTotal   int64  `json:"amountTotal"`
	Currency      string `json:"currency"`
	OrderID       string `json:"orderId"`
}

// MinorUnits converts a fixed-point price to the processor's integer
// minor-unit representation (cents for usd).
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).IntPart()
}
