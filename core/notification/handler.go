package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/gig-marketplace/api/web"
	"github.com/irsalhamdi/gig-marketplace/api/weberr"
	"github.com/irsalhamdi/gig-marketplace/core/claims"
	"github.com/irsalhamdi/gig-marketplace/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ns, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching notifications of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, ns, http.StatusOK)
	}
}

func HandleMarkRead(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		notifID := web.Param(r, "id")
		if err := validate.CheckID(notifID); err != nil {
			return weberr.BadRequest(err)
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := MarkRead(ctx, db, notifID, clm.UserID); err != nil {
			return fmt.Errorf("marking notification[%s] read: %w", notifID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
