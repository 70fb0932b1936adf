package notifications

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
)

type memoryNotificationRepo struct {
	rows   map[int64]Notification
	nextID int64
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{rows: make(map[int64]Notification)}
}

func (r *memoryNotificationRepo) add(recipientID int64, message string, unread bool) Notification {
	r.nextID++
	n := Notification{
		ID:          r.nextID,
		RecipientID: recipientID,
		RequestID:   1,
		CommentID:   r.nextID,
		Message:     message,
		Unread:      unread,
		CreatedAt:   time.Now().Add(time.Duration(r.nextID) * time.Second),
	}
	r.rows[n.ID] = n
	return n
}

func (r *memoryNotificationRepo) Get(ctx context.Context, id int64) (Notification, error) {
	n, ok := r.rows[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (r *memoryNotificationRepo) ListForRecipient(ctx context.Context, recipientID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error) {
	var result []Notification
	for _, n := range r.rows {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && !n.Unread {
			continue
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, len(result), nil
}

func (r *memoryNotificationRepo) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	count := 0
	for _, n := range r.rows {
		if n.RecipientID == recipientID && n.Unread {
			count++
		}
	}
	return count, nil
}

func (r *memoryNotificationRepo) MarkRead(ctx context.Context, id int64) error {
	n, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	n.Unread = false
	r.rows[id] = n
	return nil
}

func (r *memoryNotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) (int, error) {
	updated := 0
	for id, n := range r.rows {
		if n.RecipientID == recipientID && n.Unread {
			n.Unread = false
			r.rows[id] = n
			updated++
		}
	}
	return updated, nil
}

func (r *memoryNotificationRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

var (
	alice = authz.Identity{ID: 1, Roles: []authz.Role{authz.RoleUser}}
	carol = authz.Identity{ID: 2, Roles: []authz.Role{authz.RoleUser}}
	boss  = authz.Identity{ID: 9, Roles: []authz.Role{authz.RoleAdmin}}
)

func TestListOwnInboxOnly(t *testing.T) {
	repo := newMemoryNotificationRepo()
	repo.add(alice.ID, "Admin Dana commented on your request: \"A\"", true)
	repo.add(alice.ID, "Admin Dana commented on your request: \"B\"", false)
	repo.add(carol.ID, "Admin Dana commented on your request: \"C\"", true)
	svc := NewService(repo)

	result, err := svc.List(context.Background(), alice, false, 1, 20)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 2)
	require.Equal(t, 2, result.Total)
	require.Equal(t, 1, result.Unread)
	for _, n := range result.Notifications {
		require.Equal(t, alice.ID, n.RecipientID)
	}
}

func TestListUnreadFilter(t *testing.T) {
	repo := newMemoryNotificationRepo()
	repo.add(alice.ID, "first", true)
	repo.add(alice.ID, "second", false)
	svc := NewService(repo)

	result, err := svc.List(context.Background(), alice, true, 1, 20)
	require.NoError(t, err)
	require.Len(t, result.Notifications, 1)
	require.True(t, result.Notifications[0].Unread)
}

func TestListEmptyInbox(t *testing.T) {
	svc := NewService(newMemoryNotificationRepo())

	result, err := svc.List(context.Background(), alice, false, 1, 20)
	require.NoError(t, err)
	require.NotNil(t, result.Notifications)
	require.Empty(t, result.Notifications)
	require.Zero(t, result.Unread)
}

func TestMarkReadRecipientOnly(t *testing.T) {
	repo := newMemoryNotificationRepo()
	n := repo.add(alice.ID, "note", true)
	svc := NewService(repo)

	// Another user, and even an admin, gets a not-found rather than a
	// forbidden for someone else's inbox row.
	require.ErrorIs(t, svc.MarkRead(context.Background(), carol, n.ID), httpx.ErrNotFound)
	require.ErrorIs(t, svc.MarkRead(context.Background(), boss, n.ID), httpx.ErrNotFound)

	require.NoError(t, svc.MarkRead(context.Background(), alice, n.ID))
	got, err := repo.Get(context.Background(), n.ID)
	require.NoError(t, err)
	require.False(t, got.Unread)
}

func TestMarkAllRead(t *testing.T) {
	repo := newMemoryNotificationRepo()
	repo.add(alice.ID, "one", true)
	repo.add(alice.ID, "two", true)
	repo.add(carol.ID, "theirs", true)
	svc := NewService(repo)

	updated, err := svc.MarkAllRead(context.Background(), alice)
	require.NoError(t, err)
	require.Equal(t, 2, updated)

	count, err := svc.UnreadCount(context.Background(), alice)
	require.NoError(t, err)
	require.Zero(t, count)

	count, err = svc.UnreadCount(context.Background(), carol)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDismiss(t *testing.T) {
	repo := newMemoryNotificationRepo()
	n := repo.add(alice.ID, "note", true)
	svc := NewService(repo)

	require.ErrorIs(t, svc.Dismiss(context.Background(), carol, n.ID), httpx.ErrNotFound)
	require.NoError(t, svc.Dismiss(context.Background(), alice, n.ID))
	require.ErrorIs(t, svc.Dismiss(context.Background(), alice, n.ID), httpx.ErrNotFound)
}
