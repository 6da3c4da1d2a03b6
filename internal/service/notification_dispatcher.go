package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/observability"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
	"github.com/noah-isme/brovoice-api/pkg/mailer"
)

const complaintMailLayout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 28px;">Brototype Voice</h1>
    <p style="color: rgba(255,255,255,0.9); margin: 10px 0 0 0;">Your voice matters</p>
  </div>
  <div style="background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px;">
    <h2 style="color: #1f2937; margin-top: 0;">{{.Subject}}</h2>
    <p style="color: #4b5563; line-height: 1.6;">{{.Message}}</p>
    <div style="background: white; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #667eea;">
      <h3 style="margin: 0 0 10px 0; color: #1f2937;">Complaint Details</h3>
      <p style="margin: 5px 0; color: #4b5563;"><strong>Title:</strong> {{.Title}}</p>
      <p style="margin: 5px 0; color: #4b5563;"><strong>Ticket ID:</strong> {{.TicketID}}</p>
      {{- if .Status}}
      <p style="margin: 5px 0; color: #4b5563;"><strong>Status:</strong> {{.Status}}</p>
      {{- end}}
    </div>
    <div style="text-align: center; margin-top: 30px;">
      <p style="color: #6b7280; font-size: 14px;">Log in to your dashboard to view more details and take action.</p>
    </div>
  </div>
  <div style="text-align: center; padding: 20px; color: #9ca3af; font-size: 12px;">
    <p>&copy; {{.Year}} Brototype Voice. All rights reserved.</p>
  </div>
</div>`

var complaintMailTemplate = template.Must(template.New("complaint_mail").Parse(complaintMailLayout))

// mailMessagePolicy keeps basic formatting in staff-written mail messages and drops scripts, styles and handlers.
var mailMessagePolicy = bluemonday.UGCPolicy()

// ComplaintMail is the content of a complaint update email.
type ComplaintMail struct {
	To          string
	Subject     string
	Title       string
	TicketID    string
	Status      string
	Message     string
	ComplaintID string
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// NotificationDispatcher consumes complaint events and turns them into emails and in-app notifications.
type NotificationDispatcher interface {
	Start(ctx context.Context)
	Dispatch(ctx context.Context, event ComplaintEvent)
	SendComplaintMail(ctx context.Context, sess session.Session, req dto.ComplaintMailRequest) (dto.ComplaintMailResponse, error)
	Deliveries(ctx context.Context, sess session.Session, complaintID string) ([]dto.MailDeliveryResponse, error)
}

type notificationDispatcher struct {
	queue         EventQueue
	users         repository.UserRepository
	deliveries    repository.MailDeliveryRepository
	mailer        mailer.Mailer
	notifications NotificationService
	analytics     cacheInvalidator
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewNotificationDispatcher wires the dispatcher worker. notifications and analytics may be nil.
func NewNotificationDispatcher(
	queue EventQueue,
	users repository.UserRepository,
	deliveries repository.MailDeliveryRepository,
	mail mailer.Mailer,
	notifications NotificationService,
	analytics AnalyticsService,
	validate *validator.Validate,
	logger zerolog.Logger,
) NotificationDispatcher {
	d := &notificationDispatcher{
		queue:         queue,
		users:         users,
		deliveries:    deliveries,
		mailer:        mail,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "notification_dispatcher").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/brovoice-api/internal/service/dispatcher"),
		now:           time.Now,
	}
	if analytics != nil {
		d.analytics = analytics
	}
	return d
}

// Start consumes the queue on a background goroutine until ctx is cancelled.
func (d *notificationDispatcher) Start(ctx context.Context) {
	go func() {
		if err := d.queue.Consume(ctx, d.Dispatch); err != nil {
			d.logger.Error().Err(err).Msg("complaint event consumer stopped")
		}
	}()
}

func (d *notificationDispatcher) Dispatch(ctx context.Context, event ComplaintEvent) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.dispatch", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.String("complaint.id", event.ComplaintID),
	))
	defer span.End()

	log := d.logger.With().Str("event", event.Type).Str("ticket_id", event.TicketID).Logger()

	if d.analytics != nil {
		d.analytics.Invalidate(ctx)
	}

	d.notifyInApp(ctx, event, log)

	if event.Type == EventComplaintCreated {
		observability.ComplaintEvents().WithLabelValues(event.Type, "dispatched").Inc()
		return
	}

	owner, err := d.users.GetByID(ctx, event.OwnerID)
	if err != nil {
		span.RecordError(err)
		observability.ComplaintEvents().WithLabelValues(event.Type, "failed").Inc()
		log.Warn().Err(err).Str("owner_id", event.OwnerID).Msg("cannot resolve complaint owner for email")
		return
	}

	mail := ComplaintMail{
		To:          owner.Email,
		Subject:     "Complaint Update: " + event.Title,
		Title:       event.Title,
		TicketID:    event.TicketID,
		Status:      event.Status,
		Message:     eventMessage(event),
		ComplaintID: event.ComplaintID,
	}
	if _, err := d.deliver(ctx, mail); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mail failed")
		observability.ComplaintEvents().WithLabelValues(event.Type, "failed").Inc()
		log.Warn().Err(err).Msg("complaint email delivery failed")
		return
	}
	observability.ComplaintEvents().WithLabelValues(event.Type, "dispatched").Inc()
}

func (d *notificationDispatcher) notifyInApp(ctx context.Context, event ComplaintEvent, log zerolog.Logger) {
	if d.notifications == nil || event.OwnerID == "" {
		return
	}
	_, err := d.notifications.Publish(ctx, dto.NotificationCreateRequest{
		UserID:      event.OwnerID,
		Type:        event.Type,
		Message:     eventMessage(event),
		ComplaintID: event.ComplaintID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to publish in-app notification")
	}
}

// SendComplaintMail sends an ad hoc complaint email on behalf of staff and returns the provider id.
func (d *notificationDispatcher) SendComplaintMail(ctx context.Context, sess session.Session, req dto.ComplaintMailRequest) (dto.ComplaintMailResponse, error) {
	if err := sess.RequireStaff(); err != nil {
		return dto.ComplaintMailResponse{}, err
	}
	if err := d.validator.Struct(req); err != nil {
		return dto.ComplaintMailResponse{}, err
	}

	id, err := d.deliver(ctx, ComplaintMail{
		To:          req.To,
		Subject:     req.Subject,
		Title:       req.ComplaintTitle,
		TicketID:    req.ComplaintID,
		Status:      req.Status,
		Message:     req.Message,
		ComplaintID: req.ComplaintID,
	})
	if err != nil {
		return dto.ComplaintMailResponse{}, err
	}
	return dto.ComplaintMailResponse{ID: id}, nil
}

// Deliveries lists the recorded email attempts for a complaint, newest first. Staff only.
func (d *notificationDispatcher) Deliveries(ctx context.Context, sess session.Session, complaintID string) ([]dto.MailDeliveryResponse, error) {
	if err := sess.RequireStaff(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(complaintID) == "" {
		return nil, newValidationError("complaint_id", "is required")
	}

	rows, err := d.deliveries.ListByComplaint(ctx, complaintID)
	if err != nil {
		return nil, fmt.Errorf("list mail deliveries: %w", err)
	}
	return dto.NewMailDeliveryResponses(rows), nil
}

// deliver renders, sends and records one email. The delivery row is written for failures too.
func (d *notificationDispatcher) deliver(ctx context.Context, mail ComplaintMail) (string, error) {
	body, err := RenderComplaintMail(mail, d.now())
	if err != nil {
		return "", err
	}

	id, sendErr := d.mailer.Send(ctx, mailer.Message{To: mail.To, Subject: mail.Subject, HTML: body})

	delivery := models.MailDelivery{
		ComplaintID: mail.ComplaintID,
		Recipient:   MaskEmail(mail.To),
		Subject:     mail.Subject,
		Provider:    d.mailer.Provider(),
		ProviderRef: id,
		Status:      models.MailDeliverySent,
	}
	if sendErr != nil {
		delivery.Status = models.MailDeliveryFailed
		delivery.Error = sendErr.Error()
	}
	observability.MailDeliveries().WithLabelValues(delivery.Provider, delivery.Status).Inc()

	if err := d.deliveries.Create(ctx, &delivery); err != nil {
		d.logger.Warn().Err(err).Msg("failed to record mail delivery")
	}

	if sendErr != nil {
		return "", fmt.Errorf("send complaint mail: %w", sendErr)
	}
	return id, nil
}

// RenderComplaintMail renders the HTML body. The message may carry basic HTML formatting;
// every other value is escaped by html/template.
func RenderComplaintMail(mail ComplaintMail, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := complaintMailTemplate.Execute(&buf, struct {
		Subject, Title, TicketID, Status string
		Message                          template.HTML
		Year                             int
	}{
		Subject:  mail.Subject,
		Message:  template.HTML(mailMessagePolicy.Sanitize(mail.Message)),
		Title:    mail.Title,
		TicketID: mail.TicketID,
		Status:   StatusLabel(mail.Status),
		Year:     now.Year(),
	})
	if err != nil {
		return "", fmt.Errorf("render complaint mail: %w", err)
	}
	return buf.String(), nil
}

// StatusLabel turns in_progress into "In Progress".
func StatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(status, "_", " "))
}

func eventMessage(event ComplaintEvent) string {
	switch event.Type {
	case EventComplaintCreated:
		return fmt.Sprintf("Your complaint %s has been received. We will get back to you soon.", event.TicketID)
	case EventStatusChanged:
		return fmt.Sprintf("Your complaint %s is now %s.", event.TicketID, StatusLabel(event.Status))
	case EventResolutionAdded:
		return fmt.Sprintf("A resolution was added to your complaint %s: %s", event.TicketID, event.ResolutionNote)
	default:
		return fmt.Sprintf("Your complaint %s was updated.", event.TicketID)
	}
}

// MaskEmail keeps the first two characters of the local part.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***" + email[at:]
}
