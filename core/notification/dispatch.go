package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/gig-marketplace/api/background"
	"github.com/irsalhamdi/gig-marketplace/core/gig"
	"github.com/irsalhamdi/gig-marketplace/core/order"
	"github.com/irsalhamdi/gig-marketplace/core/user"
	"github.com/irsalhamdi/gig-marketplace/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type Mailer interface {
	Send(to string, subject string, body string) error
}

// Dispatcher implements the order notification hook: one in-app row per
// affected party plus a best-effort email. It is a side channel off the
// critical path - every failure here is logged and swallowed so the
// triggering state transition never rolls back or errors out.
type Dispatcher struct {
	db   *sqlx.DB
	mail Mailer
	bg   *background.Background
	log  logrus.FieldLogger
}

func NewDispatcher(db *sqlx.DB, mail Mailer, bg *background.Background, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{db: db, mail: mail, bg: bg, log: log}
}

func (d *Dispatcher) OrderPlaced(ctx context.Context, ord order.Order) {
	buyer, seller, ok := d.parties(ctx, ord)
	if !ok {
		return
	}

	title := d.gigTitle(ctx, ord)
	msg := fmt.Sprintf("You have a new order from %s for %s.", buyer.Name, title)
	d.record(ctx, seller, TypeOrderPlaced, msg)
	d.email(seller, "New Order Received",
		fmt.Sprintf("Hello %s, you received a new order from %s for %s.", seller.Name, buyer.Name, title))
}

func (d *Dispatcher) OrderDelivered(ctx context.Context, ord order.Order) {
	buyer, seller, ok := d.parties(ctx, ord)
	if !ok {
		return
	}

	msg := fmt.Sprintf("Your order %s has been delivered by %s.", ord.ID, seller.Name)
	d.record(ctx, buyer, TypeOrderDelivered, msg)
	d.email(buyer, "Order Delivered",
		fmt.Sprintf("Hello %s, your order %s has been delivered.", buyer.Name, ord.ID))
}

func (d *Dispatcher) OrderAccepted(ctx context.Context, ord order.Order) {
	buyer, seller, ok := d.parties(ctx, ord)
	if !ok {
		return
	}

	msg := fmt.Sprintf("%s has accepted your delivery for order %s.", buyer.Name, ord.ID)
	d.record(ctx, seller, TypeOrderAccepted, msg)
	d.email(seller, "Delivery Accepted",
		fmt.Sprintf("Hello %s, your delivery for order %s was accepted by %s.", seller.Name, ord.ID, buyer.Name))
}

func (d *Dispatcher) OrderRejected(ctx context.Context, ord order.Order) {
	buyer, seller, ok := d.parties(ctx, ord)
	if !ok {
		return
	}

	msg := fmt.Sprintf("%s rejected the delivery for order %s.", buyer.Name, ord.ID)
	d.record(ctx, seller, TypeOrderRejected, msg)
	d.email(seller, "Delivery Rejected",
		fmt.Sprintf("Hello %s, %s rejected your delivery for order %s. Please deliver again.", seller.Name, buyer.Name, ord.ID))
}

func (d *Dispatcher) OrderCompleted(ctx context.Context, ord order.Order) {
	buyer, seller, ok := d.parties(ctx, ord)
	if !ok {
		return
	}

	d.record(ctx, buyer, TypeOrderPaid,
		fmt.Sprintf("Payment completed for order %s. Thank you!", ord.ID))
	d.record(ctx, seller, TypeOrderPaid,
		fmt.Sprintf("Payment received for order %s from %s.", ord.ID, buyer.Name))

	d.email(buyer, "Order Completed",
		fmt.Sprintf("Hello %s, your payment for order %s has been processed successfully.", buyer.Name, ord.ID))
	d.email(seller, "Order Paid",
		fmt.Sprintf("Hello %s, you have received payment for order %s from %s.", seller.Name, ord.ID, buyer.Name))
}

func (d *Dispatcher) parties(ctx context.Context, ord order.Order) (buyer user.User, seller user.User, ok bool) {
	buyer, err := user.Fetch(ctx, d.db, ord.BuyerID)
	if err != nil {
		d.log.Errorf("notification dispatch: fetching buyer of order[%s]: %v", ord.ID, err)
		return user.User{}, user.User{}, false
	}

	seller, err = user.Fetch(ctx, d.db, ord.SellerID)
	if err != nil {
		d.log.Errorf("notification dispatch: fetching seller of order[%s]: %v", ord.ID, err)
		return user.User{}, user.User{}, false
	}

	return buyer, seller, true
}

func (d *Dispatcher) gigTitle(ctx context.Context, ord order.Order) string {
	if ord.GigID == nil {
		return "a deleted gig"
	}

	g, err := gig.Fetch(ctx, d.db, *ord.GigID)
	if err != nil {
		return "a deleted gig"
	}

	return g.Title
}

func (d *Dispatcher) record(ctx context.Context, usr user.User, typ string, msg string) {
	n := Notification{
		ID:        validate.GenerateID(),
		UserID:    usr.ID,
		Type:      typ,
		Message:   msg,
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}

	if err := Create(ctx, d.db, n); err != nil {
		d.log.Errorf("notification dispatch: %v", err)
	}
}

func (d *Dispatcher) email(usr user.User, subject string, body string) {
	if usr.Email == "" {
		return
	}

	to := usr.Email
	d.bg.Add(func() error {
		if err := d.mail.Send(to, subject, body); err != nil {
			return fmt.Errorf("sending %q email to %s: %w", subject, to, err)
		}
		return nil
	})
}
