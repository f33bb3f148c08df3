package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/gig-marketplace/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("payment not found")

// GetOrCreate returns the order's payment row, creating it on first use.
// The insert relies on the UNIQUE constraint on order_id: concurrent
// callers race on the insert, exactly one row wins, and everybody reads
// that row back.
func GetOrCreate(ctx context.Context, db sqlx.ExtContext, orderID string) (Payment, error) {
	const ins = `
	INSERT INTO payments (payment_id, order_id, currency, status, created_at, updated_at)
	VALUES ($1, $2, 'usd', $3, $4, $4)
	ON CONFLICT (order_id) DO NOTHING`

	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, ins, validate.GenerateID(), orderID, StatusCreated, now); err != nil {
		return Payment{}, fmt.Errorf("inserting payment for order[%s]: %w", orderID, err)
	}

	return FetchByOrder(ctx, db, orderID)
}

func FetchByOrder(ctx context.Context, db sqlx.ExtContext, orderID string) (Payment, error) {
	const q = `SELECT * FROM payments WHERE order_id = $1`

	var p Payment
	if err := sqlx.GetContext(ctx, db, &p, q, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, fmt.Errorf("selecting payment of order[%s]: %w", orderID, err)
	}

	return p, nil
}

func FetchBySession(ctx context.Context, db sqlx.ExtContext, sessionID string) (Payment, error) {
	const q = `SELECT * FROM payments WHERE stripe_session_id = $1`

	var p Payment
	if err := sqlx.GetContext(ctx, db, &p, q, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, fmt.Errorf("selecting payment of session[%s]: %w", sessionID, err)
	}

	return p, nil
}

// UpdateForCheckout records the freshly created checkout session. Session
// id, amount, currency and status are committed together so the row is
// never half-updated.
func UpdateForCheckout(ctx context.Context, db sqlx.ExtContext, orderID string, sessionID string, amount decimal.Decimal, currency string, now time.Time) error {
	const q = `
	UPDATE payments
	SET stripe_session_id = $1, amount = $2, currency = $3, status = $4, updated_at = $5
	WHERE order_id = $6`

	if _, err := db.ExecContext(ctx, q, sessionID, amount, currency, StatusCreated, now, orderID); err != nil {
		return fmt.Errorf("updating payment of order[%s] for checkout: %w", orderID, err)
	}

	return nil
}

// MarkSucceeded reconciles a confirmed processor signal into the payment
// row. Identifiers and status move together; replaying the same signal
// rewrites identical values and is harmless.
func MarkSucceeded(ctx context.Context, db sqlx.ExtContext, orderID string, sessionID string, intentID string, now time.Time) error {
	const q = `
	UPDATE payments
	SET stripe_session_id = $1, stripe_payment_intent = $2, status = $3, updated_at = $4
	WHERE order_id = $5`

	if _, err := db.ExecContext(ctx, q, sessionID, intentID, StatusSucceeded, now, orderID); err != nil {
		return fmt.Errorf("marking payment of order[%s] succeeded: %w", orderID, err)
	}

	return nil
}
