package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/models"
)

// Complaint event types share their names with the in-app notification types they produce.
const (
	EventComplaintCreated = models.NotificationTypeComplaintCreated
	EventStatusChanged    = models.NotificationTypeStatusChanged
	EventResolutionAdded  = models.NotificationTypeResolutionAdded
)

// ErrEventQueueFull is returned when the in-process queue cannot accept another event.
var ErrEventQueueFull = errors.New("complaint event queue is full")

// ComplaintEvent is a snapshot of a committed complaint write.
type ComplaintEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	ComplaintID    string    `json:"complaint_id"`
	TicketID       string    `json:"ticket_id"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	ResolutionNote string    `json:"resolution_note,omitempty"`
	OwnerID        string    `json:"owner_id"`
	ActorID        string    `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewComplaintEvent builds an event for complaint c.
func NewComplaintEvent(eventType string, c models.Complaint, actorID string, at time.Time) ComplaintEvent {
	event := ComplaintEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		ComplaintID: c.ID,
		TicketID:    c.TicketID,
		Title:       c.Title,
		Status:      c.Status,
		OwnerID:     c.UserID,
		ActorID:     actorID,
		OccurredAt:  at.UTC(),
	}
	if c.ResolutionNote != nil {
		event.ResolutionNote = *c.ResolutionNote
	}
	return event
}

// EventQueue carries complaint events from the write path to the notification dispatcher.
type EventQueue interface {
	Publish(ctx context.Context, event ComplaintEvent) error
	// Consume blocks, invoking handle for each event, until ctx is cancelled.
	Consume(ctx context.Context, handle func(context.Context, ComplaintEvent)) error
}

// ChannelEventQueue is a buffered in-process queue.
type ChannelEventQueue struct {
	events chan ComplaintEvent
}

// NewChannelEventQueue constructs an in-process queue holding up to buffer events.
func NewChannelEventQueue(buffer int) *ChannelEventQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelEventQueue{events: make(chan ComplaintEvent, buffer)}
}

// Publish never blocks the caller.
func (q *ChannelEventQueue) Publish(ctx context.Context, event ComplaintEvent) error {
	select {
	case q.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrEventQueueFull
	}
}

// Len reports how many events wait for the dispatcher.
func (q *ChannelEventQueue) Len() int {
	return len(q.events)
}

func (q *ChannelEventQueue) Consume(ctx context.Context, handle func(context.Context, ComplaintEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-q.events:
			handle(ctx, event)
		}
	}
}

// NATSEventQueue distributes events through a NATS subject; each event is handled by one dispatcher in the queue group.
type NATSEventQueue struct {
	conn    *nats.Conn
	subject string
	group   string
	logger  zerolog.Logger
}

// NewNATSEventQueue constructs a queue publishing to <channelBase>.complaints.events.
func NewNATSEventQueue(conn *nats.Conn, channelBase string, logger zerolog.Logger) *NATSEventQueue {
	if channelBase == "" {
		channelBase = "brovoice"
	}
	return &NATSEventQueue{
		conn:    conn,
		subject: channelBase + ".complaints.events",
		group:   channelBase + "-dispatchers",
		logger:  logger.With().Str("component", "nats_event_queue").Logger(),
	}
}

func (q *NATSEventQueue) Publish(_ context.Context, event ComplaintEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode complaint event: %w", err)
	}
	return q.conn.Publish(q.subject, payload)
}

func (q *NATSEventQueue) Consume(ctx context.Context, handle func(context.Context, ComplaintEvent)) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		event, err := decodeComplaintEvent(msg.Data)
		if err != nil {
			q.logger.Warn().Err(err).Msg("dropping malformed complaint event")
			return
		}
		handle(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", q.subject, err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		q.logger.Warn().Err(err).Msg("failed to drain complaint event subscription")
	}
	return nil
}

func decodeComplaintEvent(data []byte) (ComplaintEvent, error) {
	var event ComplaintEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return ComplaintEvent{}, err
	}
	if event.ComplaintID == "" || event.Type == "" {
		return ComplaintEvent{}, errors.New("complaint event missing id or type")
	}
	return event, nil
}
