package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/gig-marketplace/api/middleware"
	"github.com/irsalhamdi/gig-marketplace/api/web"
	"github.com/irsalhamdi/gig-marketplace/api/weberr"
	"github.com/irsalhamdi/gig-marketplace/config"
	"github.com/irsalhamdi/gig-marketplace/core/auth"
	"github.com/irsalhamdi/gig-marketplace/core/gig"
	"github.com/irsalhamdi/gig-marketplace/core/notification"
	"github.com/irsalhamdi/gig-marketplace/core/order"
	"github.com/irsalhamdi/gig-marketplace/core/payment"
	"github.com/irsalhamdi/gig-marketplace/database"
	"github.com/irsalhamdi/gig-marketplace/rate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin   string
	Log          logrus.FieldLogger
	DB           *sqlx.DB
	Session      *scs.SessionManager
	Stripe       *stripecl.API
	StripeCfg    config.Stripe
	Dispatcher   order.Dispatcher
	LoginLimiter *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)

	a.Handle(http.MethodGet, "/health", handleHealth(cfg.DB))

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session, cfg.LoginLimiter))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))

	a.Handle(http.MethodGet, "/gigs/{id}", gig.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/gigs", gig.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/gigs", gig.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodPut, "/gigs/{id}", gig.HandleUpdate(cfg.DB), authen)

	a.Handle(http.MethodPost, "/orders", order.HandleCreate(cfg.DB, cfg.Dispatcher), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/orders/{id}/deliver", order.HandleDeliver(cfg.DB, cfg.Dispatcher), authen)
	a.Handle(http.MethodPost, "/orders/{id}/accept", order.HandleAccept(cfg.DB, cfg.Dispatcher), authen)
	a.Handle(http.MethodPost, "/orders/{id}/reject", order.HandleReject(cfg.DB, cfg.Dispatcher), authen)

	a.Handle(http.MethodPost, "/payments/checkout", payment.HandleCreateCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg), authen)
	a.Handle(http.MethodPost, "/payments/webhook", payment.HandleWebhook(cfg.DB, cfg.StripeCfg, cfg.Dispatcher))
	a.Handle(http.MethodGet, "/payments/verify", payment.HandleVerify(cfg.DB, cfg.Stripe, cfg.Dispatcher))

	a.Handle(http.MethodGet, "/notifications", notification.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPut, "/notifications/{id}/read", notification.HandleMarkRead(cfg.DB), authen)

	return a.Router
}

func handleHealth(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := database.StatusCheck(ctx, db); err != nil {
			return weberr.InternalError(fmt.Errorf("database not ready: %w", err))
		}

		out := struct {
			Status string `json:"status"`
		}{"ok"}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
