package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/observability"
	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/session"
	"github.com/noah-isme/brovoice-api/internal/utils"
)

// NotificationHandler manages the in-app feed, its SSE and websocket streams, and the complaint mail endpoint.
type NotificationHandler struct {
	service    service.NotificationService
	dispatcher service.NotificationDispatcher
	logger     zerolog.Logger
	keepAlive  time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, dispatcher service.NotificationDispatcher, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		service:    service,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "notification_handler").Logger(),
		keepAlive:  keepAlive,
	}
}

// RegisterFeed binds the per-user feed routes.
func (h *NotificationHandler) RegisterFeed(router fiber.Router) {
	router.Get("/notifications", h.list)
	router.Get("/notifications/stream", h.stream)
	router.Patch("/notifications/read-all", h.markAllRead)
	router.Patch("/notifications/:id/read", h.markRead)
}

// RegisterMail binds the complaint email endpoint.
func (h *NotificationHandler) RegisterMail(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/email", append(guards, h.sendMail)...)
}

// RegisterDeliveries exposes the email history of a complaint to staff.
func (h *NotificationHandler) RegisterDeliveries(router fiber.Router) {
	router.Get("/complaints/:id/deliveries", h.deliveries)
}

// RegisterWebsocket binds the websocket stream.
func (h *NotificationHandler) RegisterWebsocket(router fiber.Router, guards ...fiber.Handler) {
	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("session", currentSession(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	handlers := append(guards, upgrade, websocket.New(h.handleConnection))
	router.Get("/ws", handlers...)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	notifications, err := h.service.List(c.UserContext(), currentSession(c), limit, offset)
	if err != nil {
		return writeError(c, h.logger, err, "list notifications")
	}
	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	parsed, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	notification, err := h.service.MarkRead(c.UserContext(), currentSession(c), uint(parsed))
	if err != nil {
		return writeError(c, h.logger, err, "mark notification read")
	}
	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	updated, err := h.service.MarkAllRead(c.UserContext(), currentSession(c))
	if err != nil {
		return writeError(c, h.logger, err, "mark notifications read")
	}
	return utils.SendSuccess(c, "notifications updated", fiber.Map{"updated": updated})
}

func (h *NotificationHandler) deliveries(c *fiber.Ctx) error {
	items, err := h.dispatcher.Deliveries(c.UserContext(), currentSession(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err, "list mail deliveries")
	}
	return utils.SendSuccess(c, "mail deliveries", items)
}

func (h *NotificationHandler) sendMail(c *fiber.Ctx) error {
	var req dto.ComplaintMailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.dispatcher.SendComplaintMail(c.UserContext(), currentSession(c), req)
	if err != nil {
		_, invalid := service.AsValidationError(err)
		if invalid || errors.Is(err, session.ErrUnauthenticated) || errors.Is(err, session.ErrForbidden) {
			return writeError(c, h.logger, err, "send complaint mail")
		}
		// Provider failures are surfaced to the caller as-is.
		requestLogger(h.logger, c).Error().Err(err).Msg("complaint mail failed")
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}
	return utils.SendSuccess(c, "email sent", resp)
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	sess := currentSession(c)
	if !sess.Authenticated() {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(context.Background())
	stream, cleanup := h.service.Subscribe(sess.UserID)
	observability.SSEClientsActive().Inc()
	log := h.logger.With().Str("user_id", sess.UserID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
			observability.SSEClientsActive().Dec()
		}()

		ticker := time.NewTicker(h.keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					log.Debug().Err(err).Msg("notification stream closed")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					log.Debug().Err(err).Msg("notification stream closed on keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) handleConnection(conn *websocket.Conn) {
	sess, _ := conn.Locals("session").(session.Session)
	if !sess.Authenticated() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	stream, cleanup := h.service.Subscribe(sess.UserID)
	defer cleanup()

	log := h.logger.With().Str("user_id", sess.UserID).Logger()
	log.Info().Msg("notification websocket connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive / 2)
	defer ticker.Stop()

	for {
		select {
		case notification, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(notification); err != nil {
				log.Debug().Err(err).Msg("notification websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			log.Info().Msg("notification websocket disconnected")
			return
		}
	}
}

func writeNotificationEvent(w *bufio.Writer, notification interface{}) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
