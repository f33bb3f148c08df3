package gig

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/gig-marketplace/api/web"
	"github.com/irsalhamdi/gig-marketplace/api/weberr"
	"github.com/irsalhamdi/gig-marketplace/core/claims"
	"github.com/irsalhamdi/gig-marketplace/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if !claims.IsSeller(ctx) {
			return weberr.NotAuthorized(errors.New("only sellers can create gigs"))
		}

		var gn GigNew
		if err := web.Decode(w, r, &gn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(gn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if gn.Price.IsNegative() {
			err := errors.New("price must not be negative")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		g := Gig{
			ID:          validate.GenerateID(),
			SellerID:    clm.UserID,
			Title:       gn.Title,
			Description: gn.Description,
			Price:       gn.Price,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, g); err != nil {
			return fmt.Errorf("creating gig: %w", err)
		}

		return web.Respond(ctx, w, g, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		gigID := web.Param(r, "id")
		if err := validate.CheckID(gigID); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := claims.Get(ctx); err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var gu GigUp
		if err := web.Decode(w, r, &gu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(gu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		g, err := Fetch(ctx, db, gigID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching gig[%s]: %w", gigID, err)
		}

		if !claims.IsUser(ctx, g.SellerID) {
			return weberr.NotAuthorized(errors.New("only the owning seller can update a gig"))
		}

		if gu.Title != nil {
			g.Title = *gu.Title
		}
		if gu.Description != nil {
			g.Description = *gu.Description
		}
		if gu.Price != nil {
			if gu.Price.IsNegative() {
				err := errors.New("price must not be negative")
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			g.Price = *gu.Price
		}
		g.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, g); err != nil {
			return fmt.Errorf("updating gig[%s]: %w", gigID, err)
		}

		return web.Respond(ctx, w, g, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		gigID := web.Param(r, "id")
		if err := validate.CheckID(gigID); err != nil {
			return weberr.BadRequest(err)
		}

		g, err := Fetch(ctx, db, gigID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching gig[%s]: %w", gigID, err)
		}

		return web.Respond(ctx, w, g, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		gigs, err := FetchAll(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching gigs: %w", err)
		}

		return web.Respond(ctx, w, gigs, http.StatusOK)
	}
}
