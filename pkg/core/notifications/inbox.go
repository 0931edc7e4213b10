package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// Inbox holds a user's notifications in memory, newest first.
// It is safe for concurrent use so a real-time listener can feed it.
type Inbox struct {
	mu     sync.RWMutex
	store  db.NotificationStore
	logger *zap.Logger
	userID string
	items  []db.Notification
}

// NewInbox creates an empty inbox for userID
func NewInbox(store db.NotificationStore, logger *zap.Logger, userID string) *Inbox {
	return &Inbox{store: store, logger: logger, userID: userID}
}

// Load replaces the held notifications with the backend's current list
func (in *Inbox) Load(ctx context.Context) error {
	items, err := in.store.ListNotifications(ctx, in.userID)
	if err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}

	sortNewestFirst(items)

	in.mu.Lock()
	in.items = items
	in.mu.Unlock()

	in.logger.Debug("Notifications loaded", zap.String("user_id", in.userID), zap.Int("count", len(items)))
	return nil
}

// Items returns a copy of the held notifications
func (in *Inbox) Items() []db.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]db.Notification, len(in.items))
	copy(out, in.items)
	return out
}

// UnreadCount returns the number of unread notifications
func (in *Inbox) UnreadCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()

	count := 0
	for _, n := range in.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// MarkRead marks one notification as read on the backend, then locally.
// Other notifications are left untouched; on error nothing changes.
func (in *Inbox) MarkRead(ctx context.Context, id string) error {
	in.mu.RLock()
	idx := in.indexOf(id)
	alreadyRead := idx >= 0 && in.items[idx].IsRead
	in.mu.RUnlock()

	if idx < 0 {
		return fmt.Errorf("failed to mark notification %s as read: %w", id, db.ErrNotFound)
	}
	if alreadyRead {
		return nil
	}

	if err := in.store.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("failed to mark notification %s as read: %w", id, err)
	}

	in.mu.Lock()
	if i := in.indexOf(id); i >= 0 {
		in.items[i].IsRead = true
	}
	in.mu.Unlock()
	return nil
}

// MarkAllRead marks every notification of the user as read
func (in *Inbox) MarkAllRead(ctx context.Context) error {
	if err := in.store.MarkAllNotificationsRead(ctx, in.userID); err != nil {
		return fmt.Errorf("failed to mark notifications as read: %w", err)
	}

	in.mu.Lock()
	for i := range in.items {
		in.items[i].IsRead = true
	}
	in.mu.Unlock()
	return nil
}

// Apply merges a notification received from the real-time channel.
// Rows for other users are ignored; a known id is replaced in place.
func (in *Inbox) Apply(n db.Notification) {
	if n.UserID != in.userID {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if i := in.indexOf(n.ID); i >= 0 {
		in.items[i] = n
		return
	}
	in.items = append(in.items, n)
	sortNewestFirst(in.items)
	in.logger.Debug("Notification received", zap.String("id", n.ID), zap.String("type", n.Type))
}

// Watch feeds the inbox from a subscriber until ctx is cancelled
func (in *Inbox) Watch(ctx context.Context, sub db.NotificationSubscriber, onChange func(db.Notification)) error {
	return sub.SubscribeNotifications(ctx, in.userID, func(n db.Notification) {
		in.Apply(n)
		if onChange != nil {
			onChange(n)
		}
	})
}

// indexOf must be called with the lock held
func (in *Inbox) indexOf(id string) int {
	for i := range in.items {
		if in.items[i].ID == id {
			return i
		}
	}
	return -1
}

func sortNewestFirst(items []db.Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
