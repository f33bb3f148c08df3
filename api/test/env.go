package test

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/gig-marketplace/api"
	"github.com/irsalhamdi/gig-marketplace/api/background"
	"github.com/irsalhamdi/gig-marketplace/config"
	"github.com/irsalhamdi/gig-marketplace/core/notification"
	"github.com/irsalhamdi/gig-marketplace/database"
	"github.com/irsalhamdi/gig-marketplace/rate"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

const webhookSecret = "whsec_test_secret"

type TestEnv struct {
	DB            *sqlx.DB
	Server        *httptest.Server
	URL           string
	Stripe        *mockStripe
	Mail          *mailRecorder
	WebhookSecret string

	BuyerEmail  string
	BuyerPass   string
	SellerEmail string
	SellerPass  string

	client *http.Client
}

// NewTestEnv spins up a throwaway postgres container, migrates the schema,
// wires the API against a mock Stripe backend, and seeds a buyer and a
// seller account.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	db, err := startPostgres(t, name)
	if err != nil {
		return nil, fmt.Errorf("starting postgres: %w", err)
	}

	if err := database.Migrate(db, "file://../../migrations"); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(testWriter{t})

	ms := newMockStripe()
	msrv := httptest.NewServer(ms.handle())
	t.Cleanup(msrv.Close)

	strp := &stripecl.API{}
	strp.Init("sk_test_123", &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(msrv.URL),
		}),
	})

	session := scs.New()
	session.Lifetime = time.Hour

	bg := background.New(logger)
	mail := &mailRecorder{}
	dispatcher := notification.NewDispatcher(db, mail, bg, logger)

	stripeCfg := config.Stripe{
		WebhookSecret: webhookSecret,
		SuccessURL:    "http://localhost/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "http://localhost/payment-cancel",
	}

	mux := api.APIMux(api.APIConfig{
		Log:          logger,
		DB:           db,
		Session:      session,
		Stripe:       strp,
		StripeCfg:    stripeCfg,
		Dispatcher:   dispatcher,
		LoginLimiter: rate.NewLimiter(100, 100, rate.Every(time.Millisecond)),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	env := &TestEnv{
		DB:            db,
		Server:        srv,
		URL:           srv.URL,
		Stripe:        ms,
		Mail:          mail,
		WebhookSecret: webhookSecret,
		BuyerEmail:    "buyer@test.com",
		BuyerPass:     "buyer-password",
		SellerEmail:   "seller@test.com",
		SellerPass:    "seller-password",
		client:        &http.Client{Jar: jar},
	}

	if err := env.signup("Test Buyer", env.BuyerEmail, env.BuyerPass, "buyer"); err != nil {
		return nil, fmt.Errorf("seeding buyer: %w", err)
	}
	if err := env.signup("Test Seller", env.SellerEmail, env.SellerPass, "seller"); err != nil {
		return nil, fmt.Errorf("seeding seller: %w", err)
	}

	return env, nil
}

func (e *TestEnv) Client() *http.Client {
	return e.client
}

func startPostgres(t *testing.T, name string) (*sqlx.DB, error) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("running postgres container: %w", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(res); err != nil {
			t.Logf("purging postgres container: %v", err)
		}
	})

	cfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       "localhost:" + res.GetPort("5432/tcp"),
		Name:       name,
		DisableTLS: true,
	}

	var db *sqlx.DB
	if err := pool.Retry(func() error {
		var err error
		db, err = database.Open(cfg)
		return err
	}); err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, nil
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
