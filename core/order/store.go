package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, buyer_id, seller_id, gig_id, price, status, instructions, created_at, updated_at)
	VALUES
		(:order_id, :buyer_id, :seller_id, :gig_id, :price, :status, :instructions, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}

	return ord, nil
}

// FetchForUser returns the orders a user is party to: orders made as a
// buyer together with orders received as a seller.
func FetchForUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `
	SELECT * FROM orders
	WHERE buyer_id = $1 OR seller_id = $1
	ORDER BY created_at DESC`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}

	return orders, nil
}

// UpdateStatus moves an order from one status to another as a single
// compare-and-set. When the row is no longer in the expected source status -
// a concurrent transition won the race, or the caller read stale state -
// zero rows match and ErrInvalidState is returned; the order is never
// silently overwritten.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, id string, from Status, to Status, now time.Time) error {
	const q = `
	UPDATE orders
	SET status = $1, updated_at = $2
	WHERE order_id = $3 AND status = $4`

	res, err := db.ExecContext(ctx, q, to, now, id, from)
	if err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for order[%s]: %w", id, err)
	}
	if n == 0 {
		return ErrInvalidState
	}

	return nil
}
