package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/models"
)

func TestNotificationRepositoryUnreadAndMarkRead(t *testing.T) {
	db := setupTestDB(t, &models.Notification{}, &models.MailDelivery{})
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID:      "alice",
			Type:        models.NotificationTypeStatusChanged,
			Message:     "Complaint updated",
			ComplaintID: "c-1",
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: "bob", Type: models.NotificationTypeStatusChanged, Message: "other"}))

	unread, err := repo.CountUnread(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(3), unread)

	items, err := repo.ListByUser(ctx, "alice", 2, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	marked, err := repo.MarkRead(ctx, items[0].ID, "alice")
	require.NoError(t, err)
	require.True(t, marked.Read)

	unread, err = repo.CountUnread(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(2), unread)

	_, err = repo.MarkRead(ctx, items[0].ID, "bob")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	updated, err := repo.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(2), updated)

	unread, err = repo.CountUnread(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, unread)

	unread, err = repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), unread)
}

func TestMailDeliveryRepositoryListsByComplaint(t *testing.T) {
	db := setupTestDB(t, &models.MailDelivery{})
	repo := NewMailDeliveryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.MailDelivery{ComplaintID: "c-1", Recipient: "a***@example.com", Provider: "log", Status: models.MailDeliverySent}))
	require.NoError(t, repo.Create(ctx, &models.MailDelivery{ComplaintID: "c-1", Recipient: "a***@example.com", Provider: "log", Status: models.MailDeliveryFailed, Error: "timeout"}))
	require.NoError(t, repo.Create(ctx, &models.MailDelivery{ComplaintID: "c-2", Recipient: "b***@example.com", Provider: "log", Status: models.MailDeliverySent}))

	deliveries, err := repo.ListByComplaint(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
}
