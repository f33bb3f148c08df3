package gig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("gig not found")

func Create(ctx context.Context, db sqlx.ExtContext, g Gig) error {
	const q = `
	INSERT INTO gigs (gig_id, seller_id, title, description, price, created_at, updated_at)
	VALUES (:gig_id, :seller_id, :title, :description, :price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, g); err != nil {
		return fmt.Errorf("inserting gig: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, g Gig) error {
	const q = `
	UPDATE gigs
	SET title = :title, description = :description, price = :price, updated_at = :updated_at
	WHERE gig_id = :gig_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, g); err != nil {
		return fmt.Errorf("updating gig[%s]: %w", g.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Gig, error) {
	const q = `SELECT * FROM gigs WHERE gig_id = $1`

	var g Gig
	if err := sqlx.GetContext(ctx, db, &g, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Gig{}, ErrNotFound
		}
		return Gig{}, fmt.Errorf("selecting gig[%s]: %w", id, err)
	}

	return g, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Gig, error) {
	const q = `SELECT * FROM gigs ORDER BY created_at DESC`

	gigs := []Gig{}
	if err := sqlx.SelectContext(ctx, db, &gigs, q); err != nil {
		return nil, fmt.Errorf("selecting gigs: %w", err)
	}

	return gigs, nil
}
