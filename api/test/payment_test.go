package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/irsalhamdi/gig-marketplace/api/weberr"
	"github.com/irsalhamdi/gig-marketplace/core/notification"
	"github.com/irsalhamdi/gig-marketplace/core/order"
	"github.com/irsalhamdi/gig-marketplace/core/payment"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

type paymentTest struct {
	*orderTest
}

func TestPayment(t *testing.T) {
	env, err := NewTestEnv(t, "payment_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	pt := &paymentTest{&orderTest{env}}

	g := pt.createGigOK(t, "SEO audit", "I will audit your website", "20.00")
	ord := pt.createOrderOK(t, g.ID, "")

	// Payment is gated on buyer acceptance: a pending order cannot be
	// checked out.
	pt.checkoutExpect(t, ord.ID, http.StatusConflict, weberr.CodeInvalidState)

	pt.transition(t, pt.SellerEmail, pt.SellerPass, ord.ID, "deliver", http.StatusOK, "")
	pt.checkoutExpect(t, ord.ID, http.StatusConflict, weberr.CodeInvalidState)
	pt.transition(t, pt.BuyerEmail, pt.BuyerPass, ord.ID, "accept", http.StatusOK, "")

	// Only the buyer can pay.
	pt.checkoutAsExpect(t, pt.SellerEmail, pt.SellerPass, ord.ID, http.StatusUnauthorized, weberr.CodeUnauthorized)

	sessionID := pt.checkoutOK(t, ord.ID)

	p := pt.fetchPayment(t, ord.ID)
	if p.Status != payment.StatusCreated {
		t.Fatalf("expected payment to be created, got %s", p.Status)
	}
	if !p.Amount.Valid || !p.Amount.Decimal.Equal(ord.Price) {
		t.Fatalf("expected payment amount %s, got %v", ord.Price, p.Amount)
	}

	// A second checkout request reuses the single payment row.
	sessionID2 := pt.checkoutOK(t, ord.ID)
	if n := pt.countPayments(t, ord.ID); n != 1 {
		t.Fatalf("expected exactly one payment row, found %d", n)
	}
	sessionID = sessionID2

	sess, ok := pt.Stripe.markPaid(sessionID)
	if !ok {
		t.Fatalf("mock stripe has no session %s", sessionID)
	}

	// Push confirmation: the webhook completes the order.
	pt.sendWebhook(t, sess, pt.WebhookSecret, http.StatusOK)

	got := pt.fetchOrderOK(t, ord.ID)
	if got.Status != order.StatusCompleted {
		t.Fatalf("expected order to be completed, got %s", got.Status)
	}
	if p := pt.fetchPayment(t, ord.ID); p.Status != payment.StatusSucceeded {
		t.Fatalf("expected payment to be succeeded, got %s", p.Status)
	}

	paid := pt.countNotifications(t, notification.TypeOrderPaid)

	// At-least-once delivery: replaying the identical event must change
	// nothing and produce no duplicate side effects.
	pt.sendWebhook(t, sess, pt.WebhookSecret, http.StatusOK)

	if got := pt.fetchOrderOK(t, ord.ID); got.Status != order.StatusCompleted {
		t.Fatalf("expected order to stay completed, got %s", got.Status)
	}
	if n := pt.countPayments(t, ord.ID); n != 1 {
		t.Fatalf("expected exactly one payment row after replay, found %d", n)
	}
	if n := pt.countNotifications(t, notification.TypeOrderPaid); n != paid {
		t.Fatalf("expected no new paid notifications after replay, had %d, got %d", paid, n)
	}

	// Pull verification after the webhook already reconciled: reports the
	// succeeded payment without re-triggering completion side effects.
	sum := pt.verifyOK(t, sessionID)
	if sum.PaymentStatus != "paid" {
		t.Fatalf("expected verify to report paid, got %s", sum.PaymentStatus)
	}
	if sum.OrderID != ord.ID {
		t.Fatalf("expected verify to report order %s, got %s", ord.ID, sum.OrderID)
	}
	if n := pt.countNotifications(t, notification.TypeOrderPaid); n != paid {
		t.Fatalf("expected verify not to dispatch new notifications, had %d, got %d", paid, n)
	}

	pt.testBadSignature(t, sess)
	pt.testUnknownOrder(t)
	pt.testUnknownSession(t)
	pt.testVerifyDrivenCompletion(t)
	pt.testMetadataLessVerify(t)
}

// testVerifyDrivenCompletion exercises the pull path winning the race: no
// webhook ever arrives and polling verify completes the order.
func (pt *paymentTest) testVerifyDrivenCompletion(t *testing.T) {
	g := pt.createGigOK(t, "Translation", "I will translate your text", "12.50")
	ord := pt.createOrderOK(t, g.ID, "")

	pt.transition(t, pt.SellerEmail, pt.SellerPass, ord.ID, "deliver", http.StatusOK, "")
	pt.transition(t, pt.BuyerEmail, pt.BuyerPass, ord.ID, "accept", http.StatusOK, "")

	sessionID := pt.checkoutOK(t, ord.ID)
	if _, ok := pt.Stripe.markPaid(sessionID); !ok {
		t.Fatalf("mock stripe has no session %s", sessionID)
	}

	sum := pt.verifyOK(t, sessionID)
	if sum.AmountTotal != 1250 {
		t.Fatalf("expected amount total 1250, got %d", sum.AmountTotal)
	}

	if got := pt.fetchOrderOK(t, ord.ID); got.Status != order.StatusCompleted {
		t.Fatalf("expected verify to complete the order, got %s", got.Status)
	}
	if p := pt.fetchPayment(t, ord.ID); p.Status != payment.StatusSucceeded {
		t.Fatalf("expected payment to be succeeded, got %s", p.Status)
	}
}

// testMetadataLessVerify drops the session metadata on the processor
// side: the verify path falls back to the local payment row to resolve
// the order and still completes it.
func (pt *paymentTest) testMetadataLessVerify(t *testing.T) {
	g := pt.createGigOK(t, "Voice over", "I will record your script", "8.00")
	ord := pt.createOrderOK(t, g.ID, "")

	pt.transition(t, pt.SellerEmail, pt.SellerPass, ord.ID, "deliver", http.StatusOK, "")
	pt.transition(t, pt.BuyerEmail, pt.BuyerPass, ord.ID, "accept", http.StatusOK, "")

	sessionID := pt.checkoutOK(t, ord.ID)
	if _, ok := pt.Stripe.markPaid(sessionID); !ok {
		t.Fatalf("mock stripe has no session %s", sessionID)
	}
	if !pt.Stripe.stripMetadata(sessionID) {
		t.Fatalf("mock stripe has no session %s", sessionID)
	}

	sum := pt.verifyOK(t, sessionID)
	if sum.OrderID != ord.ID {
		t.Fatalf("expected verify to resolve order %s from the payment row, got %q", ord.ID, sum.OrderID)
	}

	if got := pt.fetchOrderOK(t, ord.ID); got.Status != order.StatusCompleted {
		t.Fatalf("expected verify to complete the order, got %s", got.Status)
	}
}

func (pt *paymentTest) testBadSignature(t *testing.T, sess stripeSession) {
	pt.sendWebhook(t, sess, "whsec_wrong_secret", http.StatusBadRequest)
}

// testUnknownOrder checks the deliberate behavior for permanently
// unresolvable events: a valid signature with an unknown order id must be
// acknowledged with success so the processor stops retrying.
func (pt *paymentTest) testUnknownOrder(t *testing.T) {
	sess := stripeSession{
		ID:            "cs_test_orphan",
		Mode:          "payment",
		PaymentStatus: "paid",
		Metadata:      map[string]string{"order_id": "c0ffee00-0000-0000-0000-000000000000"},
	}

	pt.sendWebhook(t, sess, pt.WebhookSecret, http.StatusOK)
}

func (pt *paymentTest) testUnknownSession(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, pt.URL+"/payments/verify?session_id=cs_missing", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := pt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("expected unknown session to yield 404, got %s", w.Status)
	}
}

func (pt *paymentTest) checkoutOK(t *testing.T, orderID string) string {
	t.Helper()

	if err := pt.Login(pt.BuyerEmail, pt.BuyerPass); err != nil {
		t.Fatal(err)
	}
	defer pt.Logout()

	w, err := pt.postJSON("/payments/checkout", map[string]any{"orderId": orderID})
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create checkout session: status code %s", w.Status)
	}

	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeBody(w, &out); err != nil {
		t.Fatalf("cannot unmarshal checkout response: %v", err)
	}
	if out.SessionID == "" {
		t.Fatal("expected a session id")
	}

	return out.SessionID
}

func (pt *paymentTest) checkoutExpect(t *testing.T, orderID string, wantStatus int, wantCode string) {
	t.Helper()
	pt.checkoutAsExpect(t, pt.BuyerEmail, pt.BuyerPass, orderID, wantStatus, wantCode)
}

func (pt *paymentTest) checkoutAsExpect(t *testing.T, email string, pass string, orderID string, wantStatus int, wantCode string) {
	t.Helper()

	if err := pt.Login(email, pass); err != nil {
		t.Fatal(err)
	}
	defer pt.Logout()

	w, err := pt.postJSON("/payments/checkout", map[string]any{"orderId": orderID})
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != wantStatus {
		t.Fatalf("checkout: expected status %d, got %s", wantStatus, w.Status)
	}

	var er weberr.ErrorResponse
	if err := decodeBody(w, &er); err != nil {
		t.Fatalf("cannot unmarshal error response: %v", err)
	}
	if er.Code != wantCode {
		t.Fatalf("checkout: expected code %s, got %s", wantCode, er.Code)
	}
}

func (pt *paymentTest) verifyOK(t *testing.T, sessionID string) payment.VerifySummary {
	t.Helper()

	var sum payment.VerifySummary
	w, err := pt.getJSON("/payments/verify?session_id="+sessionID, &sum)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't verify payment: status code %s", w.Status)
	}

	return sum
}

func (pt *paymentTest) sendWebhook(t *testing.T, sess stripeSession, secret string, wantStatus int) {
	t.Helper()

	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	r, err := http.NewRequest(http.MethodPost, pt.URL+"/payments/webhook", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	w, err := pt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != wantStatus {
		t.Fatalf("webhook: expected status %d, got %s", wantStatus, w.Status)
	}
}

func (pt *paymentTest) fetchPayment(t *testing.T, orderID string) payment.Payment {
	t.Helper()

	p, err := payment.FetchByOrder(context.Background(), pt.DB, orderID)
	if err != nil {
		t.Fatalf("fetching payment of order[%s]: %v", orderID, err)
	}

	return p
}

func (pt *paymentTest) countPayments(t *testing.T, orderID string) int {
	t.Helper()

	var n int
	if err := pt.DB.Get(&n, "SELECT COUNT(*) FROM payments WHERE order_id = $1", orderID); err != nil {
		t.Fatalf("counting payments: %v", err)
	}

	return n
}

func (pt *paymentTest) countNotifications(t *testing.T, typ string) int {
	t.Helper()

	var n int
	if err := pt.DB.Get(&n, "SELECT COUNT(*) FROM notifications WHERE type = $1", typ); err != nil {
		t.Fatalf("counting notifications: %v", err)
	}

	return n
}
