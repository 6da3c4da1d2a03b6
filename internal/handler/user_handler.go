package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/utils"
)

// UserHandler manages accounts and the profile page.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs the user handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// RegisterProfile binds the profile route shared by every role.
func (h *UserHandler) RegisterProfile(router fiber.Router) {
	router.Get("/profile", h.profile)
}

// RegisterAdmin binds user management routes under an admin-only group.
func (h *UserHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Patch("/:id/role", h.updateRole)
}

func (h *UserHandler) profile(c *fiber.Ctx) error {
	profile, err := h.service.Profile(c.UserContext(), currentSession(c))
	if err != nil {
		return writeError(c, h.logger, err, "load profile")
	}
	return utils.SendSuccess(c, "profile", profile)
}

func (h *UserHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.List(c.UserContext(), currentSession(c), dto.UserListRequest{
		Search:   strings.TrimSpace(c.Query("search")),
		Role:     strings.TrimSpace(c.Query("role")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return writeError(c, h.logger, err, "list users")
	}
	return utils.OK(c, result.Items, "users", result.Pagination)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	var req dto.UserCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Create(c.UserContext(), currentSession(c), req)
	if err != nil {
		return writeError(c, h.logger, err, "create user")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *UserHandler) updateRole(c *fiber.Ctx) error {
	var req dto.UserRoleUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.UpdateRole(c.UserContext(), currentSession(c), c.Params("id"), req)
	if err != nil {
		return writeError(c, h.logger, err, "update role")
	}

	requestLogger(h.logger, c).Info().Str("target_user", user.ID).Str("role", user.Role).Msg("role changed")
	return utils.SendSuccess(c, "role updated", user)
}
