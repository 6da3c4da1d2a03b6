package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/observability"
	"github.com/noah-isme/brovoice-api/internal/repository"
	"github.com/noah-isme/brovoice-api/internal/session"
)

const notificationBufferSize = 16

// ErrNotificationNotFound indicates the notification does not exist or belongs to someone else.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService stores in-app notifications and streams them to connected clients.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, sess session.Session, limit, offset int) (dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, sess session.Session, id uint) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, sess session.Session) (int64, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo       repository.NotificationRepository
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	hub        *notificationHub
	transports []fanoutTransport
	nodeID     string
}

// NewNotificationService constructs a notification service. Redis and NATS are optional fan-out transports
// that relay notifications to clients connected to other nodes; channelBase names the channel and subject.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	svc := &notificationService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/brovoice-api/internal/service/notification"),
		hub:       newNotificationHub(),
		nodeID:    uuid.NewString(),
	}

	if channelBase == "" {
		return svc
	}
	if redisClient != nil {
		svc.transports = append(svc.transports, redisFanout{client: redisClient, channel: channelBase + ":notifications"})
	}
	if natsConn != nil {
		svc.transports = append(svc.transports, natsFanout{conn: natsConn, subject: strings.ReplaceAll(channelBase, ":", ".") + ".notifications"})
	}
	return svc
}

// Start consumes every fan-out transport until ctx is cancelled.
func (s *notificationService) Start(ctx context.Context) {
	for _, transport := range s.transports {
		go func(t fanoutTransport) {
			if err := t.consume(ctx, s.receive); err != nil {
				s.logger.Error().Err(err).Str("transport", t.name()).Msg("notification fan-out stopped")
			}
		}(transport)
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		return dto.NotificationResponse{}, newValidationError("message", "is required")
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", payload.UserID),
		attribute.String("notification.type", payload.Type),
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.Notification{
		UserID:      payload.UserID,
		Type:        payload.Type,
		Message:     message,
		ComplaintID: payload.ComplaintID,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	s.hub.deliver(response)
	if err := s.relay(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to relay notification")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, sess session.Session, limit, offset int) (dto.NotificationListResponse, error) {
	if err := sess.Require(); err != nil {
		return dto.NotificationListResponse{}, err
	}

	notifications, err := s.repo.ListByUser(ctx, sess.UserID, limit, offset)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, sess.UserID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:  dto.NewNotificationResponseSlice(notifications),
		Unread: unread,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, sess session.Session, id uint) (dto.NotificationResponse, error) {
	if err := sess.Require(); err != nil {
		return dto.NotificationResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(attribute.String("notification.user_id", sess.UserID)))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, sess.UserID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, sess session.Session) (int64, error) {
	if err := sess.Require(); err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, sess.UserID)
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	stream := make(chan dto.NotificationResponse, notificationBufferSize)
	s.hub.attach(userID, stream)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	return stream, func() {
		once.Do(func() {
			s.hub.detach(userID, stream)
			observability.SSEClientsActive().Dec()
		})
	}
}

func (s *notificationService) relay(ctx context.Context, notification dto.NotificationResponse) error {
	if len(s.transports) == 0 {
		return nil
	}

	payload, err := encodeEnvelope(s.nodeID, notification)
	if err != nil {
		return err
	}

	var errs []error
	for _, transport := range s.transports {
		if err := transport.publish(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", transport.name(), err))
		}
	}
	return errors.Join(errs...)
}

// receive handles an envelope from another node.
func (s *notificationService) receive(payload []byte) {
	var envelope notificationEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification payload")
		return
	}
	if envelope.Source == s.nodeID || envelope.Notification.UserID == "" {
		return
	}
	s.hub.deliver(envelope.Notification)
}
