package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// NotificationChannel is the LISTEN channel fed by the notifications trigger
const NotificationChannel = "voisin_notifications"

// ListNotifications returns the user's notifications, newest first
func (d *DB) ListNotifications(ctx context.Context, userID string) ([]db.Notification, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id::text, user_id::text, title, message, type, related_entity_type,
			related_entity_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, backendError("query notifications", err)
	}
	defer rows.Close()

	var notifications []db.Notification
	for rows.Next() {
		var n db.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.RelatedEntityType,
			&n.RelatedEntityID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// MarkNotificationRead flags one notification as read
func (d *DB) MarkNotificationRead(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return backendError("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("mark notification read")
	}
	return nil
}

// MarkAllNotificationsRead flags every unread notification of the user as read
func (d *DB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := d.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return backendError("mark notifications read", err)
	}
	return nil
}

// SubscribeNotifications listens on NotificationChannel with a dedicated
// connection and calls handle for every change addressed to userID.
// It blocks until ctx is done.
func (d *DB) SubscribeNotifications(ctx context.Context, userID string, handle func(db.Notification)) error {
	pooled, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	// the session keeps its LISTEN state, so it must not go back to the pool
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+NotificationChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", NotificationChannel, err)
	}

	for {
		msg, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}

		n, err := decodeNotification(msg.Payload)
		if err != nil {
			d.logger.Warn("Skipping malformed notification payload", zap.Error(err))
			continue
		}
		if n.UserID != userID {
			continue
		}
		handle(n)
	}
}

func decodeNotification(payload string) (db.Notification, error) {
	var n db.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return n, fmt.Errorf("failed to decode notification payload: %w", err)
	}
	return n, nil
}
