package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/middleware"
	"github.com/noah-isme/geoattend-api/internal/repository"
	"github.com/noah-isme/geoattend-api/internal/service"
	"github.com/noah-isme/geoattend-api/internal/utils"
)

// ClassHandler exposes class and roster management.
type ClassHandler struct {
	service service.ClassService
	logger  zerolog.Logger
}

// NewClassHandler constructs a class handler.
func NewClassHandler(service service.ClassService, logger zerolog.Logger) *ClassHandler {
	return &ClassHandler{
		service: service,
		logger:  logger.With().Str("component", "class_handler").Logger(),
	}
}

// Register wires class routes. Reads are open to any signed-in user, writes need the cr role.
func (h *ClassHandler) Register(router fiber.Router) {
	anyUser := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}
	cr := middleware.AuthOptions{Role: middleware.AuthRoleCR}

	router.Get("", middleware.WithAuth(h.list, anyUser))
	router.Post("", middleware.WithAuth(h.create, cr))
	router.Get("/:id", middleware.WithAuth(h.get, anyUser))
	router.Put("/:id", middleware.WithAuth(h.update, cr))
	router.Delete("/:id", middleware.WithAuth(h.delete, cr))
	router.Patch("/:id/status", middleware.WithAuth(h.updateStatus, cr))
	router.Get("/:id/roster", middleware.WithAuth(h.roster, anyUser))
	router.Post("/:id/roster/:userId", middleware.WithAuth(h.enroll, cr))
	router.Delete("/:id/roster/:userId", middleware.WithAuth(h.unenroll, cr))
}

func (h *ClassHandler) list(c *fiber.Ctx) error {
	filter := repository.ClassFilter{
		Search:    c.Query("search"),
		DayOfWeek: c.Query("day"),
	}

	classes, err := h.service.List(requestContext(c), filter)
	if err != nil {
		return h.fail(c, err, "failed to list classes")
	}
	return utils.OK(c, classes, "classes", map[string]int{"total": len(classes)})
}

func (h *ClassHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid class id")
	}

	class, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return h.fail(c, err, "failed to load class")
	}
	return utils.SendSuccess(c, "class", class)
}

func (h *ClassHandler) create(c *fiber.Ctx) error {
	var payload dto.ClassRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid payload")
	}

	class, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return h.fail(c, err, "failed to create class")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "class created", class)
}

func (h *ClassHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid class id")
	}

	var payload dto.ClassRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid payload")
	}

	class, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return h.fail(c, err, "failed to update class")
	}
	return utils.SendSuccess(c, "class updated", class)
}

func (h *ClassHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid class id")
	}

	var payload dto.ClassStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid payload")
	}

	class, err := h.service.UpdateStatus(requestContext(c), id, payload)
	if err != nil {
		return h.fail(c, err, "failed to update class status")
	}
	return utils.SendSuccess(c, "class status updated", class)
}

func (h *ClassHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid class id")
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return h.fail(c, err, "failed to delete class")
	}
	return utils.SendSuccess(c, "class deleted", nil)
}

func (h *ClassHandler) roster(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid class id")
	}

	entries, err := h.service.Roster(requestContext(c), id)
	if err != nil {
		return h.fail(c, err, "failed to load roster")
	}
	return utils.OK(c, entries, "roster", map[string]int{"total": len(entries)})
}

func (h *ClassHandler) enroll(c *fiber.Ctx) error {
	classID, userID, err := rosterParams(c)
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	if err := h.service.Enroll(requestContext(c), classID, userID); err != nil {
		return h.fail(c, err, "failed to enrol student")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student enrolled", nil)
}

func (h *ClassHandler) unenroll(c *fiber.Ctx) error {
	classID, userID, err := rosterParams(c)
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	if err := h.service.Unenroll(requestContext(c), classID, userID); err != nil {
		return h.fail(c, err, "failed to unenrol student")
	}
	return utils.SendSuccess(c, "student unenrolled", nil)
}

func rosterParams(c *fiber.Ctx) (uint, uint, error) {
	classID, err := parseIDParam(c, "id")
	if err != nil {
		return 0, 0, errors.New("invalid class id")
	}
	userID, err := parseIDParam(c, "userId")
	if err != nil {
		return 0, 0, errors.New("invalid user id")
	}
	return classID, userID, nil
}

func (h *ClassHandler) fail(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return c.Status(fiber.StatusBadRequest).JSON(utils.APIResponse{
			Message:   "invalid payload",
			ErrorKind: "invalid_payload",
			Details:   validationDetails(err),
		})
	case errors.Is(err, service.ErrInvalidClass):
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_class", err.Error())
	case errors.Is(err, service.ErrClassNotFound):
		return utils.SendErrorKind(c, fiber.StatusNotFound, "class_not_found", "class not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendErrorKind(c, fiber.StatusNotFound, "student_not_found", "student not found")
	case errors.Is(err, service.ErrNotEnrolled):
		return utils.SendErrorKind(c, fiber.StatusNotFound, "not_enrolled", "student not enrolled in class")
	case errors.Is(err, service.ErrClassCodeTaken):
		return utils.SendErrorKind(c, fiber.StatusConflict, "class_code_taken", "class code already in use")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendErrorKind(c, fiber.StatusInternalServerError, "internal", fallback)
	}
}
