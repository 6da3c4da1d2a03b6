package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
	"github.com/noah-isme/brovoice-api/pkg/mailer"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Provider() string { return "test" }

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type analyticsStub struct {
	invalidations int
}

func (a *analyticsStub) Summary(ctx context.Context, sess session.Session) (dto.AnalyticsResponse, error) {
	return dto.AnalyticsResponse{}, nil
}

func (a *analyticsStub) Invalidate(ctx context.Context) { a.invalidations++ }

type dispatcherFixture struct {
	dispatcher    *notificationDispatcher
	mailer        *recordingMailer
	deliveries    repository.MailDeliveryRepository
	notifications NotificationService
	analytics     *analyticsStub
	queue         *ChannelEventQueue
	owner         models.Profile
}

func newDispatcherFixture(t *testing.T) dispatcherFixture {
	t.Helper()
	db := newTestDB(t, &models.Profile{}, &models.UserRole{}, &models.Notification{}, &models.MailDelivery{})
	users := repository.NewUserRepository(db)
	owner := models.Profile{Email: "rahul@example.com", FullName: "Rahul Sharma", PasswordHash: "x"}
	require.NoError(t, users.Create(context.Background(), &owner, models.RoleStudent))

	mail := &recordingMailer{}
	deliveries := repository.NewMailDeliveryRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, testValidator(), testLogger())
	analytics := &analyticsStub{}
	queue := NewChannelEventQueue(4)

	d := NewNotificationDispatcher(queue, users, deliveries, mail, notifications, analytics, testValidator(), testLogger()).(*notificationDispatcher)
	d.now = func() time.Time { return time.Date(2025, 11, 11, 9, 0, 0, 0, time.UTC) }

	return dispatcherFixture{
		dispatcher:    d,
		mailer:        mail,
		deliveries:    deliveries,
		notifications: notifications,
		analytics:     analytics,
		queue:         queue,
		owner:         owner,
	}
}

func (f dispatcherFixture) event(eventType, status string) ComplaintEvent {
	note := "Server issue fixed."
	return NewComplaintEvent(eventType, models.Complaint{
		ID:             "c-1",
		TicketID:       "BRO-K3L7",
		UserID:         f.owner.ID,
		Title:          "Project submission portal showing error",
		Status:         status,
		ResolutionNote: &note,
	}, "staff-1", time.Now())
}

func TestDispatcherStatusChangeSendsMailAndNotification(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()

	f.dispatcher.Dispatch(ctx, f.event(EventStatusChanged, models.ComplaintStatusInProgress))

	require.Equal(t, 1, f.mailer.count())
	sent := f.mailer.sent[0]
	require.Equal(t, "rahul@example.com", sent.To)
	require.Equal(t, "Complaint Update: Project submission portal showing error", sent.Subject)
	require.Contains(t, sent.HTML, "BRO-K3L7")
	require.Contains(t, sent.HTML, "In Progress")
	require.Contains(t, sent.HTML, "Brototype Voice")

	deliveries, err := f.deliveries.ListByComplaint(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.Equal(t, models.MailDeliverySent, deliveries[0].Status)
	require.Equal(t, "ra***@example.com", deliveries[0].Recipient)
	require.Equal(t, "msg-rahul@example.com", deliveries[0].ProviderRef)

	feed, err := f.notifications.List(ctx, session.New(f.owner.ID, models.RoleStudent, ""), 10, 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	require.Equal(t, models.NotificationTypeStatusChanged, feed.Items[0].Type)
	require.Contains(t, feed.Items[0].Message, "In Progress")
	require.Equal(t, 1, f.analytics.invalidations)
}

func TestDispatcherCreatedEventSkipsMail(t *testing.T) {
	f := newDispatcherFixture(t)
	f.dispatcher.Dispatch(context.Background(), f.event(EventComplaintCreated, models.ComplaintStatusNew))

	require.Zero(t, f.mailer.count())
	feed, err := f.notifications.List(context.Background(), session.New(f.owner.ID, models.RoleStudent, ""), 10, 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
}

func TestDispatcherRecordsFailedDelivery(t *testing.T) {
	f := newDispatcherFixture(t)
	f.mailer.err = errors.New("provider rejected")

	f.dispatcher.Dispatch(context.Background(), f.event(EventResolutionAdded, models.ComplaintStatusResolved))

	deliveries, err := f.deliveries.ListByComplaint(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.Equal(t, models.MailDeliveryFailed, deliveries[0].Status)
	require.Equal(t, "provider rejected", deliveries[0].Error)
}

func TestDispatcherConsumesQueue(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.dispatcher.Start(ctx)
	require.NoError(t, f.queue.Publish(ctx, f.event(EventStatusChanged, models.ComplaintStatusResolved)))

	require.Eventually(t, func() bool { return f.mailer.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSendComplaintMail(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()
	staff := session.New("staff-1", models.RoleStaff, "")
	req := dto.ComplaintMailRequest{
		To:             "priya@example.com",
		Subject:        "Complaint Update",
		ComplaintTitle: "Closure doubt",
		ComplaintID:    "BRO-X8Y2",
		Status:         "in_progress",
		Message:        "<b>Mentor</b> will call you today<script>alert(1)</script>",
	}

	resp, err := f.dispatcher.SendComplaintMail(ctx, staff, req)
	require.NoError(t, err)
	require.Equal(t, "msg-priya@example.com", resp.ID)
	require.True(t, strings.Contains(f.mailer.sent[0].HTML, "<b>Mentor</b> will call you today"))
	require.False(t, strings.Contains(f.mailer.sent[0].HTML, "<script>"))

	_, err = f.dispatcher.SendComplaintMail(ctx, session.New("s-1", models.RoleStudent, ""), req)
	require.ErrorIs(t, err, session.ErrForbidden)

	req.To = "not-an-email"
	_, err = f.dispatcher.SendComplaintMail(ctx, staff, req)
	_, ok := AsValidationError(err)
	require.True(t, ok)

	f.mailer.err = errors.New("quota exceeded")
	req.To = "priya@example.com"
	_, err = f.dispatcher.SendComplaintMail(ctx, staff, req)
	require.ErrorContains(t, err, "quota exceeded")

	history, err := f.dispatcher.Deliveries(ctx, staff, "BRO-X8Y2")
	require.NoError(t, err)
	require.Len(t, history, 2)
	statuses := []string{history[0].Status, history[1].Status}
	require.ElementsMatch(t, []string{models.MailDeliverySent, models.MailDeliveryFailed}, statuses)

	_, err = f.dispatcher.Deliveries(ctx, session.New("s-1", models.RoleStudent, ""), "BRO-X8Y2")
	require.ErrorIs(t, err, session.ErrForbidden)
}

func TestRenderComplaintMailOmitsEmptyStatus(t *testing.T) {
	body, err := RenderComplaintMail(ComplaintMail{Subject: "Hi", Title: "T", TicketID: "BRO-0001", Message: "m"}, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotContains(t, body, "Status:")
	require.Contains(t, body, "2025 Brototype Voice")
}

func TestRenderComplaintMailEscapesTitle(t *testing.T) {
	body, err := RenderComplaintMail(ComplaintMail{Subject: "Update", Title: "Grader x<y bug", TicketID: "BRO-0002", Message: "Fixed when a<b holds"}, time.Now())
	require.NoError(t, err)
	require.Contains(t, body, "Grader x&lt;y bug")
	require.NotContains(t, body, "<y bug")
}

func TestMaskEmailAndStatusLabel(t *testing.T) {
	require.Equal(t, "ra***@example.com", MaskEmail("rahul@example.com"))
	require.Equal(t, "a***@example.com", MaskEmail("a@example.com"))
	require.Equal(t, "***", MaskEmail("invalid"))
	require.Equal(t, "In Progress", StatusLabel("in_progress"))
	require.Equal(t, "", StatusLabel(""))
}
