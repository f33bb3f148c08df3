package notification

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, n Notification) error {
	const q = `
	INSERT INTO notifications (notification_id, user_id, type, message, is_read, created_at)
	VALUES (:notification_id, :user_id, :type, :message, :is_read, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, n); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	return nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Notification, error) {
	const q = `
	SELECT * FROM notifications
	WHERE user_id = $1
	ORDER BY created_at DESC`

	ns := []Notification{}
	if err := sqlx.SelectContext(ctx, db, &ns, q, userID); err != nil {
		return nil, fmt.Errorf("selecting notifications of user[%s]: %w", userID, err)
	}

	return ns, nil
}

// MarkRead flips is_read for a notification owned by the user. The owner
// check lives in the query so a user cannot mark somebody else's rows.
func MarkRead(ctx context.Context, db sqlx.ExtContext, id string, userID string) error {
	const q = `
	UPDATE notifications
	SET is_read = TRUE
	WHERE notification_id = $1 AND user_id = $2`

	if _, err := db.ExecContext(ctx, q, id, userID); err != nil {
		return fmt.Errorf("marking notification[%s] read: %w", id, err)
	}

	return nil
}
