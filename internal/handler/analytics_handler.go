package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/utils"
)

// AnalyticsHandler serves the staff analytics page.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register binds analytics routes.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/analytics", h.summary)
}

func (h *AnalyticsHandler) summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext(), currentSession(c))
	if err != nil {
		return writeError(c, h.logger, err, "load analytics")
	}
	return utils.SendSuccess(c, "complaint analytics", summary)
}
