package test

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/gig-marketplace/api/web"
	"github.com/irsalhamdi/gig-marketplace/random"
	mock "github.com/stripe/stripe-mock/param"
)

type stripeSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Mode          string            `json:"mode"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent,omitempty"`
	Metadata      map[string]string `json:"metadata"`
}

// mockStripe is a stateful fake of the two processor endpoints the core
// talks to: checkout session creation and session retrieval. Tests flip a
// session to paid to simulate the buyer completing the redirect flow.
type mockStripe struct {
	mu       sync.Mutex
	sessions map[string]*stripeSession
}

func newMockStripe() *mockStripe {
	return &mockStripe{sessions: map[string]*stripeSession{}}
}

func (m *mockStripe) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)

		var amount int64
		lines, ok := params["line_items"].(map[string]any)
		if !ok {
			web.Respond(context.Background(), w, nil, 400)
			return
		}
		for _, li := range lines {
			it := li.(map[string]any)
			pd := it["price_data"].(map[string]any)
			s := pd["unit_amount"].(string)
			a, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				web.Respond(context.Background(), w, err, 400)
				return
			}
			amount += a
		}

		metadata := map[string]string{}
		if md, ok := params["metadata"].(map[string]any); ok {
			for k, v := range md {
				if s, ok := v.(string); ok {
					metadata[k] = s
				}
			}
		}

		m.mu.Lock()
		sess := &stripeSession{
			ID:            "cs_test_" + random.String(14),
			Mode:          "payment",
			AmountTotal:   amount,
			Currency:      "usd",
			PaymentStatus: "unpaid",
			Metadata:      metadata,
		}
		sess.URL = "http://localhost/pay/" + sess.ID
		m.sessions[sess.ID] = sess
		m.mu.Unlock()

		web.Respond(context.Background(), w, sess, 201)
	})

	retrieve := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		sess, ok := m.sessions[web.Param(r, "id")]
		m.mu.Unlock()

		if !ok {
			body := map[string]any{"error": map[string]any{
				"type": "invalid_request_error",
				"code": "resource_missing",
			}}
			web.Respond(context.Background(), w, body, 404)
			return
		}

		web.Respond(context.Background(), w, sess, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", create).Methods("POST")
	r.Handle("/v1/checkout/sessions/{id}", retrieve).Methods("GET")
	return r
}

// markPaid simulates the buyer completing the checkout on the processor
// side, returning the session as the webhook/verify paths would see it.
func (m *mockStripe) markPaid(sessionID string) (stripeSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return stripeSession{}, false
	}

	sess.PaymentStatus = "paid"
	if sess.PaymentIntent == "" {
		sess.PaymentIntent = "pi_" + sessionID
	}
	return *sess, true
}

// stripMetadata drops the session's metadata, simulating a processor
// response that carries no order reference.
func (m *mockStripe) stripMetadata(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return false
	}

	sess.Metadata = nil
	return true
}
