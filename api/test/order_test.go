package test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/irsalhamdi/gig-marketplace/api/weberr"
	"github.com/irsalhamdi/gig-marketplace/core/gig"
	"github.com/irsalhamdi/gig-marketplace/core/order"
	"github.com/shopspring/decimal"
)

type orderTest struct {
	*TestEnv
}

func TestOrder(t *testing.T) {
	env, err := NewTestEnv(t, "order_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}

	var health struct {
		Status string `json:"status"`
	}
	w, err := ot.getJSON("/health", &health)
	if err != nil {
		t.Fatal(err)
	}
	if w.StatusCode != http.StatusOK || health.Status != "ok" {
		t.Fatalf("health check: status %s, body %q", w.Status, health.Status)
	}

	g := ot.createGigOK(t, "Logo design", "I will design your logo", "20.00")

	// The buyer places the order; the price is snapshotted.
	ord := ot.createOrderOK(t, g.ID, "please use blue")
	if ord.Status != order.StatusPending {
		t.Fatalf("expected a new order to be pending, got %s", ord.Status)
	}
	if !ord.Price.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected order price 20.00, got %s", ord.Price)
	}

	ot.testSelfPurchase(t, g.ID)
	ot.testPriceSnapshot(t, g, ord.ID)

	// Wrong actor: the buyer cannot deliver.
	ot.transition(t, ot.BuyerEmail, ot.BuyerPass, ord.ID, "deliver", http.StatusUnauthorized, weberr.CodeUnauthorized)
	// Wrong state: the seller cannot deliver an already delivered order.
	ot.transition(t, ot.SellerEmail, ot.SellerPass, ord.ID, "deliver", http.StatusOK, "")
	ot.transition(t, ot.SellerEmail, ot.SellerPass, ord.ID, "deliver", http.StatusConflict, weberr.CodeInvalidState)

	// The buyer rejects; the order returns to pending and can be
	// delivered again.
	ot.transition(t, ot.BuyerEmail, ot.BuyerPass, ord.ID, "reject", http.StatusOK, "")
	ot.transition(t, ot.BuyerEmail, ot.BuyerPass, ord.ID, "accept", http.StatusConflict, weberr.CodeInvalidState)
	ot.transition(t, ot.SellerEmail, ot.SellerPass, ord.ID, "deliver", http.StatusOK, "")

	// Wrong actor: the seller cannot accept their own delivery.
	ot.transition(t, ot.SellerEmail, ot.SellerPass, ord.ID, "accept", http.StatusUnauthorized, weberr.CodeUnauthorized)

	ot.testConcurrentAccept(t, ord.ID)

	got := ot.fetchOrderOK(t, ord.ID)
	if got.Status != order.StatusAccepted {
		t.Fatalf("expected order to be accepted, got %s", got.Status)
	}

	// A stale expected status must not overwrite the row.
	err = order.UpdateStatus(context.Background(), ot.DB, ord.ID, order.StatusPending, order.StatusDelivered, time.Now().UTC())
	if !errors.Is(err, order.ErrInvalidState) {
		t.Fatalf("expected stale transition to fail with ErrInvalidState, got %v", err)
	}
	if s := ot.fetchOrderOK(t, ord.ID).Status; s != order.StatusAccepted {
		t.Fatalf("stale transition changed the order status to %s", s)
	}

	// The buyer's order list holds exactly the one order placed above.
	ords := ot.listOrdersOK(t)
	opts := cmpopts.IgnoreFields(order.Order{}, "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff([]order.Order{got}, ords, opts); diff != "" {
		t.Fatalf("unexpected order list (-want +got):\n%s", diff)
	}
}

// testConcurrentAccept races two buyer accepts on the same delivered
// order. The status update is a compare-and-set, so exactly one request
// wins and the other reports the conflict.
func (ot *orderTest) testConcurrentAccept(t *testing.T, orderID string) {
	t.Helper()

	if err := ot.Login(ot.BuyerEmail, ot.BuyerPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	type result struct {
		status int
		code   string
		err    error
	}

	results := make(chan result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w, err := ot.postJSON("/orders/"+orderID+"/accept", nil)
			if err != nil {
				results <- result{err: err}
				return
			}

			if w.StatusCode == http.StatusOK {
				w.Body.Close()
				results <- result{status: w.StatusCode}
				return
			}

			var er weberr.ErrorResponse
			if err := decodeBody(w, &er); err != nil {
				results <- result{status: w.StatusCode, err: err}
				return
			}
			results <- result{status: w.StatusCode, code: er.Code}
		}()
	}
	wg.Wait()
	close(results)

	var accepted, conflicted int
	for res := range results {
		switch {
		case res.err != nil:
			t.Fatalf("concurrent accept: %v", res.err)
		case res.status == http.StatusOK:
			accepted++
		case res.status == http.StatusConflict:
			conflicted++
			if res.code != weberr.CodeInvalidState {
				t.Fatalf("conflicting accept: expected code %s, got %s", weberr.CodeInvalidState, res.code)
			}
		default:
			t.Fatalf("concurrent accept: unexpected status %d", res.status)
		}
	}

	if accepted != 1 || conflicted != 1 {
		t.Fatalf("concurrent accepts: expected one success and one conflict, got %d and %d", accepted, conflicted)
	}
}

func (ot *orderTest) listOrdersOK(t *testing.T) []order.Order {
	t.Helper()

	if err := ot.Login(ot.BuyerEmail, ot.BuyerPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	var ords []order.Order
	w, err := ot.getJSON("/orders", &ords)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list orders: status code %s", w.Status)
	}

	return ords
}

func (ot *orderTest) createGigOK(t *testing.T, title string, description string, price string) gig.Gig {
	t.Helper()

	if err := ot.Login(ot.SellerEmail, ot.SellerPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	body := map[string]any{
		"title":       title,
		"description": description,
		"price":       price,
	}

	w, err := ot.postJSON("/gigs", body)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create gig: status code %s", w.Status)
	}

	var g gig.Gig
	if err := decodeBody(w, &g); err != nil {
		t.Fatalf("cannot unmarshal created gig: %v", err)
	}

	return g
}

func (ot *orderTest) createOrderOK(t *testing.T, gigID string, instructions string) order.Order {
	t.Helper()

	if err := ot.Login(ot.BuyerEmail, ot.BuyerPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	body := map[string]any{
		"gigId":        gigID,
		"instructions": instructions,
	}

	w, err := ot.postJSON("/orders", body)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create order: status code %s", w.Status)
	}

	var ord order.Order
	if err := decodeBody(w, &ord); err != nil {
		t.Fatalf("cannot unmarshal created order: %v", err)
	}

	return ord
}

func (ot *orderTest) fetchOrderOK(t *testing.T, orderID string) order.Order {
	t.Helper()

	if err := ot.Login(ot.BuyerEmail, ot.BuyerPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	var ord order.Order
	w, err := ot.getJSON("/orders/"+orderID, &ord)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't fetch order: status code %s", w.Status)
	}

	return ord
}

// transition performs an order action as the given user and asserts both
// the http status and the machine code of the error body, if any.
func (ot *orderTest) transition(t *testing.T, email string, pass string, orderID string, action string, wantStatus int, wantCode string) {
	t.Helper()

	if err := ot.Login(email, pass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	w, err := ot.postJSON("/orders/"+orderID+"/"+action, nil)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != wantStatus {
		t.Fatalf("%s order: expected status %d, got %s", action, wantStatus, w.Status)
	}

	if wantCode == "" {
		w.Body.Close()
		return
	}

	var er weberr.ErrorResponse
	if err := decodeBody(w, &er); err != nil {
		t.Fatalf("cannot unmarshal error response: %v", err)
	}
	if er.Code != wantCode {
		t.Fatalf("%s order: expected code %s, got %s", action, wantCode, er.Code)
	}
}

func (ot *orderTest) testSelfPurchase(t *testing.T, gigID string) {
	t.Helper()

	if err := ot.Login(ot.SellerEmail, ot.SellerPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	w, err := ot.postJSON("/orders", map[string]any{"gigId": gigID})
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected self purchase to be rejected, got status %s", w.Status)
	}

	var er weberr.ErrorResponse
	if err := decodeBody(w, &er); err != nil {
		t.Fatalf("cannot unmarshal error response: %v", err)
	}
	if er.Code != weberr.CodeSelfPurchase {
		t.Fatalf("expected code %s, got %s", weberr.CodeSelfPurchase, er.Code)
	}
}

// testPriceSnapshot raises the gig price after the order was placed and
// checks the order still carries the price at creation time.
func (ot *orderTest) testPriceSnapshot(t *testing.T, g gig.Gig, orderID string) {
	t.Helper()

	if err := ot.Login(ot.SellerEmail, ot.SellerPass); err != nil {
		t.Fatal(err)
	}

	newPrice := "35.00"
	w, err := ot.client.Do(mustRequest(t, http.MethodPut, ot.URL+"/gigs/"+g.ID, map[string]any{"price": newPrice}))
	if err != nil {
		t.Fatal(err)
	}
	w.Body.Close()
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't update gig price: status code %s", w.Status)
	}
	if err := ot.Logout(); err != nil {
		t.Fatal(err)
	}

	ord := ot.fetchOrderOK(t, orderID)
	if !ord.Price.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected snapshotted price 20.00 after gig price change, got %s", ord.Price)
	}
}
