package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

type mockNotificationStore struct {
	mu         sync.Mutex
	items      []db.Notification
	listErr    error
	markErr    error
	markedRead []string
	markedAll  int
}

func (m *mockNotificationStore) ListNotifications(ctx context.Context, userID string) ([]db.Notification, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]db.Notification, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *mockNotificationStore) MarkNotificationRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.markedRead = append(m.markedRead, id)
	return nil
}

func (m *mockNotificationStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.markedAll++
	return nil
}

type mockSubscriber struct {
	events []db.Notification
}

func (m *mockSubscriber) SubscribeNotifications(ctx context.Context, userID string, handle func(db.Notification)) error {
	for _, n := range m.events {
		handle(n)
	}
	return nil
}

var base = time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)

func notification(id string, minutes int, read bool) db.Notification {
	return db.Notification{
		ID:        id,
		UserID:    "alice",
		Title:     "Titre " + id,
		Message:   "Message " + id,
		Type:      db.NotificationConfirmation,
		IsRead:    read,
		CreatedAt: base.Add(time.Duration(minutes) * time.Minute),
	}
}

func loadedInbox(t *testing.T, store *mockNotificationStore) *Inbox {
	t.Helper()
	inbox := NewInbox(store, zap.NewNop(), "alice")
	require.NoError(t, inbox.Load(context.Background()))
	return inbox
}

func TestLoad_SortsNewestFirst(t *testing.T) {
	store := &mockNotificationStore{items: []db.Notification{
		notification("old", 0, false),
		notification("new", 30, false),
		notification("mid", 10, true),
	}}

	inbox := loadedInbox(t, store)

	items := inbox.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)
	assert.Equal(t, "old", items[2].ID)
	assert.Equal(t, 2, inbox.UnreadCount())
}

func TestLoad_Error(t *testing.T) {
	store := &mockNotificationStore{listErr: errors.New("connection refused")}
	inbox := NewInbox(store, zap.NewNop(), "alice")

	err := inbox.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load notifications")
	assert.Empty(t, inbox.Items())
}

func TestMarkRead_DecrementsUnreadByOne(t *testing.T) {
	store := &mockNotificationStore{items: []db.Notification{
		notification("n1", 0, false),
		notification("n2", 1, false),
		notification("n3", 2, false),
		notification("n4", 3, true),
	}}
	inbox := loadedInbox(t, store)
	before := inbox.Items()
	require.Equal(t, 3, inbox.UnreadCount())

	require.NoError(t, inbox.MarkRead(context.Background(), "n2"))

	assert.Equal(t, 2, inbox.UnreadCount())
	assert.Equal(t, []string{"n2"}, store.markedRead)

	after := inbox.Items()
	for i := range after {
		if after[i].ID == "n2" {
			assert.True(t, after[i].IsRead)
			continue
		}
		assert.Equal(t, before[i], after[i])
	}
}

func TestMarkRead_AlreadyReadSkipsBackend(t *testing.T) {
	store := &mockNotificationStore{items: []db.Notification{notification("n1", 0, true)}}
	inbox := loadedInbox(t, store)

	require.NoError(t, inbox.MarkRead(context.Background(), "n1"))

	assert.Empty(t, store.markedRead)
}

func TestMarkRead_UnknownID(t *testing.T) {
	inbox := loadedInbox(t, &mockNotificationStore{})

	err := inbox.MarkRead(context.Background(), "missing")

	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestMarkRead_FailureLeavesStateUnchanged(t *testing.T) {
	store := &mockNotificationStore{items: []db.Notification{notification("n1", 0, false)}}
	inbox := loadedInbox(t, store)
	store.markErr = &db.BackendError{Status: 401, Code: db.CodeJWTExpired, Kind: db.ErrUnauthorized}

	err := inbox.MarkRead(context.Background(), "n1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrUnauthorized))
	assert.Equal(t, 1, inbox.UnreadCount())
}

func TestMarkAllRead(t *testing.T) {
	store := &mockNotificationStore{items: []db.Notification{
		notification("n1", 0, false),
		notification("n2", 1, false),
	}}
	inbox := loadedInbox(t, store)

	require.NoError(t, inbox.MarkAllRead(context.Background()))

	assert.Equal(t, 0, inbox.UnreadCount())
	assert.Equal(t, 1, store.markedAll)
}

func TestApply_InsertUpdateAndIgnoreOtherUsers(t *testing.T) {
	store := &mockNotificationStore{items: []db.Notification{notification("n1", 0, false)}}
	inbox := loadedInbox(t, store)

	inbox.Apply(notification("n2", 5, false))
	updated := notification("n1", 0, true)
	inbox.Apply(updated)
	other := notification("n3", 10, false)
	other.UserID = "bob"
	inbox.Apply(other)

	items := inbox.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "n2", items[0].ID)
	assert.Equal(t, "n1", items[1].ID)
	assert.True(t, items[1].IsRead)
	assert.Equal(t, 1, inbox.UnreadCount())
}

func TestWatch_FeedsInbox(t *testing.T) {
	inbox := loadedInbox(t, &mockNotificationStore{})
	sub := &mockSubscriber{events: []db.Notification{notification("n1", 0, false), notification("n2", 1, false)}}

	var seen []string
	err := inbox.Watch(context.Background(), sub, func(n db.Notification) { seen = append(seen, n.ID) })

	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, seen)
	assert.Equal(t, 2, inbox.UnreadCount())
}

func TestInbox_ConcurrentApplyAndMarkRead(t *testing.T) {
	store := &mockNotificationStore{}
	for i := 0; i < 50; i++ {
		store.items = append(store.items, notification(fmt.Sprintf("n%d", i), i, false))
	}
	inbox := loadedInbox(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, inbox.MarkRead(context.Background(), fmt.Sprintf("n%d", i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			inbox.Apply(notification(fmt.Sprintf("live%d", i), 100+i, false))
		}(i)
	}
	wg.Wait()

	assert.Len(t, inbox.Items(), 100)
	assert.Equal(t, 50, inbox.UnreadCount())
}
