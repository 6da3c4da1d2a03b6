package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/middleware"
	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/utils"
)

// AuthHandler exposes sign up, sign in and session endpoints.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register binds the auth routes. protect guards the routes that need a valid token.
func (h *AuthHandler) Register(router fiber.Router, protect fiber.Handler) {
	router.Post("/signup", h.signUp)
	router.Post("/signin", h.signIn)
	signedIn := middleware.AuthOptions{RequireUser: true}
	router.Post("/signout", protect, middleware.WithAuth(h.signOut, signedIn))
	router.Get("/me", protect, middleware.WithAuth(h.me, signedIn))
}

func (h *AuthHandler) signUp(c *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.SignUp(c.UserContext(), req)
	if err != nil {
		return writeError(c, h.logger, err, "sign up")
	}

	requestLogger(h.logger, c).Info().Str("user_id", resp.User.ID).Str("role", resp.User.Role).Msg("account created")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "account created", resp)
}

func (h *AuthHandler) signIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.SignIn(c.UserContext(), req)
	if err != nil {
		return writeError(c, h.logger, err, "sign in")
	}
	return utils.SendSuccess(c, "signed in", resp)
}

func (h *AuthHandler) signOut(c *fiber.Ctx) error {
	if err := h.service.SignOut(c.UserContext(), currentSession(c)); err != nil {
		return writeError(c, h.logger, err, "sign out")
	}
	return utils.SendSuccess(c, "signed out", nil)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	user, err := h.service.Me(c.UserContext(), currentSession(c))
	if err != nil {
		return writeError(c, h.logger, err, "load current user")
	}
	return utils.SendSuccess(c, "current user", user)
}
