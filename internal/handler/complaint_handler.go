package handler

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brovoice-api/internal/dto"
	"github.com/noah-isme/brovoice-api/internal/models"
	"github.com/noah-isme/brovoice-api/internal/service"
	"github.com/noah-isme/brovoice-api/internal/utils"
)

// ComplaintHandler serves the student desk and the staff inbox.
type ComplaintHandler struct {
	service     service.ComplaintService
	logger      zerolog.Logger
	submitGuard fiber.Handler
}

// NewComplaintHandler constructs a complaint handler. submitGuard, when set, runs before submissions.
func NewComplaintHandler(service service.ComplaintService, logger zerolog.Logger, submitGuard fiber.Handler) *ComplaintHandler {
	return &ComplaintHandler{
		service:     service,
		logger:      logger.With().Str("component", "complaint_handler").Logger(),
		submitGuard: submitGuard,
	}
}

// RegisterStudent binds the student routes.
func (h *ComplaintHandler) RegisterStudent(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	if h.submitGuard != nil {
		router.Post("/complaints", h.submitGuard, h.submit)
	} else {
		router.Post("/complaints", h.submit)
	}
	router.Get("/complaints", h.list(nil))
	router.Get("/complaints/:id", h.get)
}

// RegisterAdmin binds the staff inbox routes.
func (h *ComplaintHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	router.Get("/complaints/assigned", h.list([]string{models.ComplaintStatusNew, models.ComplaintStatusInProgress}))
	router.Get("/complaints/resolved", h.list([]string{models.ComplaintStatusResolved}))
	router.Get("/complaints", h.list(nil))
	router.Get("/complaints/:id", h.get)
	router.Patch("/complaints/:id", h.update)
}

func (h *ComplaintHandler) submit(c *fiber.Ctx) error {
	var req dto.ComplaintCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	var screenshot *multipart.FileHeader
	if file, err := c.FormFile("screenshot"); err == nil {
		screenshot = file
	}

	complaint, err := h.service.Submit(c.UserContext(), currentSession(c), req, screenshot)
	if err != nil {
		return writeError(c, h.logger, err, "submit complaint")
	}

	requestLogger(h.logger, c).Info().Str("ticket_id", complaint.TicketID).Msg("complaint submitted")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "complaint submitted", complaint)
}

// list serves a listing; fixed statuses pin the admin inbox views and ignore the status query.
func (h *ComplaintHandler) list(fixed []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, pageSize, err := parsePagination(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		req := dto.ComplaintListRequest{
			Search:   strings.TrimSpace(c.Query("search")),
			Category: strings.TrimSpace(c.Query("category")),
			Page:     page,
			PageSize: pageSize,
		}
		if len(fixed) > 0 {
			req.Statuses = fixed
		} else {
			req.Status = strings.TrimSpace(c.Query("status"))
		}

		result, err := h.service.List(c.UserContext(), currentSession(c), req)
		if err != nil {
			return writeError(c, h.logger, err, "list complaints")
		}
		return utils.OK(c, result.Items, "complaints", result.Pagination)
	}
}

func (h *ComplaintHandler) get(c *fiber.Ctx) error {
	complaint, err := h.service.Get(c.UserContext(), currentSession(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err, "get complaint")
	}
	return utils.SendSuccess(c, "complaint", complaint)
}

func (h *ComplaintHandler) update(c *fiber.Ctx) error {
	var req dto.ComplaintUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	complaint, err := h.service.Update(c.UserContext(), currentSession(c), c.Params("id"), req)
	if err != nil {
		return writeError(c, h.logger, err, "update complaint")
	}

	requestLogger(h.logger, c).Info().Str("ticket_id", complaint.TicketID).Str("status", complaint.Status).Msg("complaint updated")
	return utils.SendSuccess(c, "complaint updated", complaint)
}

func (h *ComplaintHandler) dashboard(c *fiber.Ctx) error {
	dashboard, err := h.service.Dashboard(c.UserContext(), currentSession(c))
	if err != nil {
		return writeError(c, h.logger, err, "load dashboard")
	}
	return utils.SendSuccess(c, "dashboard", dashboard)
}
