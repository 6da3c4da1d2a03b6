package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/observability"
)

// notificationEnvelope is the cross-node wire format. Source lets a node skip its own echoes.
type notificationEnvelope struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// notificationHub holds the stream clients connected to this node, keyed by user id.
type notificationHub struct {
	mu      sync.RWMutex
	streams map[string][]chan dto.NotificationResponse
}

func newNotificationHub() *notificationHub {
	return &notificationHub{streams: make(map[string][]chan dto.NotificationResponse)}
}

func (h *notificationHub) attach(userID string, ch chan dto.NotificationResponse) {
	h.mu.Lock()
	h.streams[userID] = append(h.streams[userID], ch)
	h.mu.Unlock()
}

// detach removes and closes ch. Calling it twice for the same channel is a no-op.
func (h *notificationHub) detach(userID string, ch chan dto.NotificationResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	streams := h.streams[userID]
	for i, candidate := range streams {
		if candidate != ch {
			continue
		}
		streams = append(streams[:i], streams[i+1:]...)
		close(ch)
		break
	}
	if len(streams) == 0 {
		delete(h.streams, userID)
		return
	}
	h.streams[userID] = streams
}

// deliver never blocks: a client whose buffer is full misses the notification.
func (h *notificationHub) deliver(notification dto.NotificationResponse) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, ch := range h.streams[notification.UserID] {
		select {
		case ch <- notification:
			delivered++
		default:
			observability.NotificationsDropped().Inc()
		}
	}
	return delivered
}

// fanoutTransport relays notifications between nodes.
type fanoutTransport interface {
	name() string
	publish(ctx context.Context, payload []byte) error
	consume(ctx context.Context, handle func([]byte)) error
}

type redisFanout struct {
	client  *redis.Client
	channel string
}

func (r redisFanout) name() string { return "redis" }

func (r redisFanout) publish(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// consume blocks until ctx ends or the subscription breaks.
func (r redisFanout) consume(ctx context.Context, handle func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("redis notification subscription: %w", err)
		}
		handle([]byte(msg.Payload))
	}
}

// natsFanout subscribes without a queue group so every node reaches its own clients.
type natsFanout struct {
	conn    *nats.Conn
	subject string
}

func (n natsFanout) name() string { return "nats" }

func (n natsFanout) publish(_ context.Context, payload []byte) error {
	return n.conn.Publish(n.subject, payload)
}

func (n natsFanout) consume(ctx context.Context, handle func([]byte)) error {
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) { handle(msg.Data) })
	if err != nil {
		return fmt.Errorf("nats notification subscription: %w", err)
	}
	<-ctx.Done()
	return sub.Drain()
}

func encodeEnvelope(source string, notification dto.NotificationResponse) ([]byte, error) {
	return json.Marshal(notificationEnvelope{
		Source:       source,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
}
