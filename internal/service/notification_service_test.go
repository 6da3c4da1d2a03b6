package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

func newNotificationFixture(t *testing.T, redisClient *redis.Client) NotificationService {
	t.Helper()
	db := newTestDB(t, &models.Notification{})
	return NewNotificationService(repository.NewNotificationRepository(db), redisClient, "brovoice-test", nil, testValidator(), testLogger())
}

func TestNotificationServicePublishStreamsAndLists(t *testing.T) {
	svc := newNotificationFixture(t, nil)
	ctx := context.Background()
	student := session.New("student-1", models.RoleStudent, "")

	stream, cleanup := svc.Subscribe(student.UserID)
	defer cleanup()

	published, err := svc.Publish(ctx, dto.NotificationCreateRequest{
		UserID:      student.UserID,
		Type:        models.NotificationTypeStatusChanged,
		Message:     "  Your complaint BRO-A2F9 (x<y bug) is now In Progress ",
		ComplaintID: "c-1",
	})
	require.NoError(t, err)
	require.Equal(t, "Your complaint BRO-A2F9 (x<y bug) is now In Progress", published.Message)

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("expected streamed notification")
	}

	list, err := svc.List(ctx, student, 10, 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, int64(1), list.Unread)
	require.Equal(t, "c-1", list.Items[0].ComplaintID)

	read, err := svc.MarkRead(ctx, student, published.ID)
	require.NoError(t, err)
	require.True(t, read.Read)

	list, err = svc.List(ctx, student, 10, 0)
	require.NoError(t, err)
	require.Zero(t, list.Unread)

	_, err = svc.MarkRead(ctx, session.New("student-2", models.RoleStudent, ""), published.ID)
	require.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestNotificationServiceRejectsEmptyMessage(t *testing.T) {
	svc := newNotificationFixture(t, nil)
	_, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID: "student-1", Type: models.NotificationTypeStatusChanged, Message: "   ",
	})
	_, ok := AsValidationError(err)
	require.True(t, ok)
}

func TestNotificationServiceRelaysFromOtherNodes(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	svc := newNotificationFixture(t, redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	stream, cleanup := svc.Subscribe("student-9")
	defer cleanup()

	payload, err := json.Marshal(notificationEnvelope{
		Source:       "another-node",
		Notification: dto.NotificationResponse{ID: 42, UserID: "student-9", Type: models.NotificationTypeResolutionAdded, Message: "Resolved"},
		SentAt:       time.Now().UTC(),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mini.Publish("brovoice-test:notifications", string(payload)) > 0
	}, time.Second, 10*time.Millisecond)

	select {
	case received := <-stream:
		require.Equal(t, uint(42), received.ID)
	case <-time.After(time.Second):
		t.Fatal("expected relayed notification")
	}
}

func TestNotificationHubDropsForSlowClients(t *testing.T) {
	hub := newNotificationHub()
	slow := make(chan dto.NotificationResponse, 1)
	other := make(chan dto.NotificationResponse, 4)
	hub.attach("student-1", slow)
	hub.attach("student-1", other)

	require.Equal(t, 2, hub.deliver(dto.NotificationResponse{ID: 1, UserID: "student-1"}))
	require.Equal(t, 1, hub.deliver(dto.NotificationResponse{ID: 2, UserID: "student-1"}))
	require.Zero(t, hub.deliver(dto.NotificationResponse{ID: 3, UserID: "student-2"}))

	hub.detach("student-1", slow)
	hub.detach("student-1", slow)
	_, open := <-slow
	require.True(t, open)
	_, open = <-slow
	require.False(t, open)

	require.Equal(t, 1, hub.deliver(dto.NotificationResponse{ID: 4, UserID: "student-1"}))
	require.Len(t, other, 3)
}
