package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/gig-marketplace/api/web"
	"github.com/irsalhamdi/gig-marketplace/api/weberr"
	"github.com/irsalhamdi/gig-marketplace/core/claims"
	"github.com/irsalhamdi/gig-marketplace/core/gig"
	"github.com/irsalhamdi/gig-marketplace/validate"
	"github.com/jmoiron/sqlx"
)

// HandleCreate places a new order: the buyer purchases a gig at its current
// price. The price is snapshotted on the order and never recomputed from
// the live gig.
func HandleCreate(db *sqlx.DB, dsp Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var on OrderNew
		if err := web.Decode(w, r, &on); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(on); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		g, err := gig.Fetch(ctx, db, on.GigID)
		if err != nil {
			if errors.Is(err, gig.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching gig[%s]: %w", on.GigID, err)
		}

		if g.SellerID == clm.UserID {
			err := errors.New("a seller cannot purchase their own gig")
			return weberr.NewCodedError(err, err.Error(), http.StatusUnprocessableEntity, weberr.CodeSelfPurchase)
		}

		now := time.Now().UTC()
		ord := Order{
			ID:           validate.GenerateID(),
			BuyerID:      clm.UserID,
			SellerID:     g.SellerID,
			GigID:        &g.ID,
			Price:        g.Price,
			Status:       StatusPending,
			Instructions: on.Instructions,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := Create(ctx, db, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		dsp.OrderPlaced(ctx, ord)

		return web.Respond(ctx, w, ord, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := FetchForUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching orders of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		if RoleOf(ord, clm.UserID) == RoleNone {
			return weberr.NotAuthorized(errors.New("only the buyer or the seller can view an order"))
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

// HandleDeliver lets the seller mark a pending order as delivered.
func HandleDeliver(db *sqlx.DB, dsp Dispatcher) web.Handler {
	return transitionHandler(db, ActionDeliver, func(ctx context.Context, ord Order) {
		dsp.OrderDelivered(ctx, ord)
	})
}

// HandleAccept lets the buyer accept a delivered order, gating payment.
func HandleAccept(db *sqlx.DB, dsp Dispatcher) web.Handler {
	return transitionHandler(db, ActionAccept, func(ctx context.Context, ord Order) {
		dsp.OrderAccepted(ctx, ord)
	})
}

// HandleReject lets the buyer return a delivered order to pending so the
// seller can deliver again.
func HandleReject(db *sqlx.DB, dsp Dispatcher) web.Handler {
	return transitionHandler(db, ActionReject, func(ctx context.Context, ord Order) {
		dsp.OrderRejected(ctx, ord)
	})
}

func transitionHandler(db *sqlx.DB, action Action, notify func(context.Context, Order)) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		to, err := Plan(ord.Status, action, RoleOf(ord, clm.UserID))
		if err != nil {
			return transitionError(orderID, action, err)
		}

		now := time.Now().UTC()
		if err := UpdateStatus(ctx, db, ord.ID, ord.Status, to, now); err != nil {
			return transitionError(orderID, action, err)
		}

		ord.Status = to
		ord.UpdatedAt = now

		// The transition is committed: a failed dispatch must not undo it.
		notify(ctx, ord)

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func transitionError(orderID string, action Action, err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return weberr.NotAuthorized(fmt.Errorf("%s order[%s]: %w", action, orderID, err))
	case errors.Is(err, ErrInvalidState):
		return weberr.InvalidState(fmt.Errorf("%s order[%s]: %w", action, orderID, err))
	}
	return fmt.Errorf("%s order[%s]: %w", action, orderID, err)
}
