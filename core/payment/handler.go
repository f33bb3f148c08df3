package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/irsalhamdi/gig-marketplace/api/web"
	"github.com/irsalhamdi/gig-marketplace/api/weberr"
	"github.com/irsalhamdi/gig-marketplace/config"
	"github.com/irsalhamdi/gig-marketplace/core/claims"
	"github.com/irsalhamdi/gig-marketplace/core/gig"
	"github.com/irsalhamdi/gig-marketplace/core/order"
	"github.com/irsalhamdi/gig-marketplace/database"
	"github.com/irsalhamdi/gig-marketplace/validate"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// HandleCreateCheckout requests a checkout session from the external
// processor for an accepted order. Payment is gated on buyer acceptance,
// not on mere order creation.
func HandleCreateCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn CheckoutNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, err := order.Fetch(ctx, db, cn.OrderID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", cn.OrderID, err)
		}

		if order.RoleOf(ord, clm.UserID) != order.RoleBuyer {
			return weberr.NotAuthorized(errors.New("only the buyer can pay for an order"))
		}

		if ord.Status != order.StatusAccepted {
			err := fmt.Errorf("order[%s] is %s, payment requires an accepted order", ord.ID, ord.Status)
			return weberr.InvalidState(err)
		}

		if _, err := GetOrCreate(ctx, db, ord.ID); err != nil {
			return fmt.Errorf("get-or-create payment of order[%s]: %w", ord.ID, err)
		}

		name := fmt.Sprintf("Order %s", ord.ID)
		description := "Gig order"
		if ord.GigID != nil {
			if g, err := gig.Fetch(ctx, db, *ord.GigID); err == nil {
				name = fmt.Sprintf("%s - Order %s", g.Title, ord.ID)
				description = g.Description
			}
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(cfg.SuccessURL),
			CancelURL:  stripe.String(cfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(MinorUnits(ord.Price)),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(name),
						Description: stripe.String(description),
					},
				},
			}},
		}
		params.AddMetadata("order_id", ord.ID)

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return weberr.PaymentProvider(fmt.Errorf("creating stripe session: %w", err))
		}

		now := time.Now().UTC()
		if err := UpdateForCheckout(ctx, db, ord.ID, s.ID, ord.Price, "usd", now); err != nil {
			return fmt.Errorf("persisting checkout session[%s]: %w", s.ID, err)
		}

		out := struct {
			SessionID string `json:"sessionId"`
		}{s.ID}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

// HandleWebhook reconciles the processor's push confirmation. Delivery is
// at-least-once: replays of the same event must leave Order state alone.
// Events whose order id cannot be resolved are acknowledged with success
// anyway, otherwise the processor would retry a permanently-unresolvable
// event forever.
func HandleWebhook(db *sqlx.DB, cfg config.Stripe, dsp order.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			err := errors.New("received stripe event is not signed")
			return weberr.NewCodedError(err, "invalid webhook signature", http.StatusBadRequest, weberr.CodeInvalidSignature)
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			err = fmt.Errorf("cannot construct stripe event: %w", err)
			return weberr.NewCodedError(err, "invalid webhook signature", http.StatusBadRequest, weberr.CodeInvalidSignature)
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusOK)
		}

		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		orderID := session.Metadata["order_id"]
		if orderID == "" {
			// Nothing to reconcile.
			return web.Respond(ctx, w, nil, http.StatusOK)
		}

		ord, err := order.Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				return web.Respond(ctx, w, nil, http.StatusOK)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		intentID := ""
		if session.PaymentIntent != nil {
			intentID = session.PaymentIntent.ID
		}

		if err := reconcile(ctx, db, dsp, ord, session.ID, intentID); err != nil {
			return fmt.Errorf("reconciling webhook for order[%s]: %w", orderID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusOK)
	}
}

// HandleVerify is the pull-based fallback: the client polls session status
// after the redirect instead of waiting on the webhook.
func HandleVerify(db *sqlx.DB, strp *stripecl.API, dsp order.Dispatcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		sessionID := web.Query(r, "session_id")
		if sessionID == "" {
			return weberr.BadRequest(errors.New("missing session_id"))
		}

		s, err := strp.CheckoutSessions.Get(sessionID, nil)
		if err != nil {
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
				return weberr.NotFound(fmt.Errorf("retrieving session[%s]: %w", sessionID, err))
			}
			return weberr.PaymentProvider(fmt.Errorf("retrieving session[%s]: %w", sessionID, err))
		}

		summary := VerifySummary{
			SessionID:     s.ID,
			PaymentStatus: string(s.PaymentStatus),
			AmountTotal:   s.AmountTotal,
			Currency:      string(s.Currency),
			OrderID:       s.Metadata["order_id"],
		}

		if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return web.Respond(ctx, w, summary, http.StatusOK)
		}

		if summary.OrderID == "" {
			// Session lacks order metadata: resolve it through the local
			// payment row that recorded the session at checkout.
			p, err := FetchBySession(ctx, db, s.ID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return web.Respond(ctx, w, summary, http.StatusOK)
				}
				return fmt.Errorf("resolving session[%s] locally: %w", s.ID, err)
			}
			summary.OrderID = p.OrderID
		}

		ord, err := order.Fetch(ctx, db, summary.OrderID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				return web.Respond(ctx, w, summary, http.StatusOK)
			}
			return fmt.Errorf("fetching order[%s]: %w", summary.OrderID, err)
		}

		intentID := ""
		if s.PaymentIntent != nil {
			intentID = s.PaymentIntent.ID
		}

		if err := reconcile(ctx, db, dsp, ord, s.ID, intentID); err != nil {
			return fmt.Errorf("reconciling verified session[%s]: %w", s.ID, err)
		}

		return web.Respond(ctx, w, summary, http.StatusOK)
	}
}

// reconcile merges a confirmed payment signal into local state. The
// payment row and the order advance in one transaction; the order moves
// to completed only through the state machine's compare-and-set, so
// whichever of the webhook and verify paths reconciles first wins and
// the loser performs no further mutation and no duplicate side effects.
func reconcile(ctx context.Context, db *sqlx.DB, dsp order.Dispatcher, ord order.Order, sessionID string, intentID string) error {
	now := time.Now().UTC()

	completed := false
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if _, err := GetOrCreate(ctx, tx, ord.ID); err != nil {
			return fmt.Errorf("get-or-create payment: %w", err)
		}

		if err := MarkSucceeded(ctx, tx, ord.ID, sessionID, intentID, now); err != nil {
			return fmt.Errorf("marking payment succeeded: %w", err)
		}

		err := order.UpdateStatus(ctx, tx, ord.ID, order.StatusAccepted, order.StatusCompleted, now)
		if err != nil {
			if errors.Is(err, order.ErrInvalidState) {
				// Already completed, or never reached accepted: the
				// payment update sticks, the order is left alone.
				return nil
			}
			return fmt.Errorf("completing order: %w", err)
		}

		completed = true
		return nil
	})
	if err != nil {
		return err
	}

	if !completed {
		return nil
	}

	ord.Status = order.StatusCompleted
	ord.UpdatedAt = now
	dsp.OrderCompleted(ctx, ord)

	return nil
}
