package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/middleware"
	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/utils"
)

// SeedHandler loads the demo complaint set on request. Only mounted when seeding is enabled.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/demo", h.seedDemo)
}

func (h *SeedHandler) seedDemo(c *fiber.Ctx) error {
	summary, err := h.service.SeedDemo(c.UserContext(), c.Get(middleware.SeedTokenHeader))
	if err != nil {
		return writeError(c, h.logger, err, "seed demo data")
	}

	requestLogger(h.logger, c).Info().
		Int("users", summary.Users).
		Int64("complaints", summary.Complaints).
		Msg("demo data seeded")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "demo data seeded", summary)
}
