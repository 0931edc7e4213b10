package supabaseclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

const notificationsTable = "notifications"

// ListNotifications returns the user's notifications, newest first
func (c *Client) ListNotifications(ctx context.Context, userID string) ([]db.Notification, error) {
	query := c.from(notificationsTable).Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false})

	return c.fetchNotifications(ctx, query)
}

func (c *Client) fetchNotifications(ctx context.Context, query *postgrest.FilterBuilder) ([]db.Notification, error) {
	data, err := c.execute(ctx, notificationsTable, query)
	if err != nil {
		return nil, err
	}

	var notifications []db.Notification
	if err := json.Unmarshal(data, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags one notification as read
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	query := c.from(notificationsTable).
		Update(map[string]bool{"is_read": true}, "representation", "").
		Eq("id", id)

	data, err := c.execute(ctx, notificationsTable, query)
	if err != nil {
		return err
	}

	var n db.Notification
	return decodeOne(data, &n)
}

// MarkAllNotificationsRead flags every unread notification of the user as read
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	query := c.from(notificationsTable).
		Update(map[string]bool{"is_read": true}, "minimal", "").
		Eq("user_id", userID).
		Eq("is_read", "false")

	_, err := c.execute(ctx, notificationsTable, query)
	return err
}

// notificationCursor tracks the newest created_at delivered and the rows seen
// at that instant, so rows sharing a timestamp are neither lost nor repeated
type notificationCursor struct {
	since time.Time
	ids   map[string]bool
}

func (nc *notificationCursor) seen(n db.Notification) bool {
	return !n.CreatedAt.After(nc.since) && (n.CreatedAt.Before(nc.since) || nc.ids[n.ID])
}

func (nc *notificationCursor) advance(n db.Notification) {
	switch {
	case n.CreatedAt.After(nc.since):
		nc.since = n.CreatedAt
		nc.ids = map[string]bool{n.ID: true}
	case n.CreatedAt.Equal(nc.since):
		nc.ids[n.ID] = true
	}
}

// seed positions the cursor on the newest notification the backend holds.
// The database clock decides what is new, never the local one.
func (c *Client) seed(ctx context.Context, userID string, cursor *notificationCursor) error {
	query := c.from(notificationsTable).Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "")

	newest, err := c.fetchNotifications(ctx, query)
	if err != nil {
		return err
	}
	cursor.ids = map[string]bool{}
	for _, n := range newest {
		cursor.advance(n)
	}
	return nil
}

// SubscribeNotifications polls for notifications inserted for userID after the
// subscription started and calls handle for each, oldest first. Updates to
// existing rows are not reported. Poll errors are logged and retried on the
// next tick. It blocks until ctx is done.
func (c *Client) SubscribeNotifications(ctx context.Context, userID string, handle func(db.Notification)) error {
	cursor := &notificationCursor{}
	seeded := false

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if !seeded {
			if err := c.seed(ctx, userID, cursor); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Warn("Failed to read latest notification", zap.String("user_id", userID), zap.Error(err))
			} else {
				seeded = true
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !seeded {
			continue
		}

		query := c.from(notificationsTable).Select("*", "", false).Eq("user_id", userID)
		if !cursor.since.IsZero() {
			query = query.Gte("created_at", cursor.since.UTC().Format(time.RFC3339Nano))
		}
		query = query.Order("created_at", &postgrest.OrderOpts{Ascending: true})

		fresh, err := c.fetchNotifications(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Failed to poll notifications", zap.String("user_id", userID), zap.Error(err))
			continue
		}

		for _, n := range fresh {
			if cursor.seen(n) {
				continue
			}
			handle(n)
			cursor.advance(n)
		}
	}
}
