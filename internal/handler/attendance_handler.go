package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/middleware"
	"github.com/noah-isme/geoattend-api/internal/service"
	"github.com/noah-isme/geoattend-api/internal/utils"
)

// AttendanceHandler exposes check-in endpoints to students.
type AttendanceHandler struct {
	service service.AttendanceService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(service service.AttendanceService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register wires attendance routes. markGuards run in front of the mark endpoint only.
func (h *AttendanceHandler) Register(router fiber.Router, markGuards ...fiber.Handler) {
	auth := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	mark := append([]fiber.Handler{}, markGuards...)
	mark = append(mark, middleware.WithAuth(h.mark, auth))

	router.Post("/mark", mark...)
	router.Get("/status", middleware.WithAuth(h.status, auth))
}

type failure struct {
	status  int
	kind    string
	message string
}

// attendanceFailures is checked in order; ErrClassCancelled must precede ErrOutsideWindow.
var attendanceFailures = []struct {
	err error
	failure
}{
	{service.ErrClassNotFound, failure{fiber.StatusNotFound, "class_not_found", "class not found"}},
	{service.ErrClassCancelled, failure{fiber.StatusUnprocessableEntity, "class_cancelled", "this class has been cancelled"}},
	{service.ErrOutsideWindow, failure{fiber.StatusUnprocessableEntity, "outside_window", "attendance can only be marked during the class time"}},
	{service.ErrOutsideGeofence, failure{fiber.StatusUnprocessableEntity, "outside_geofence", "you are too far from the classroom"}},
	{service.ErrAlreadyMarked, failure{fiber.StatusConflict, "already_marked", "attendance already marked for today"}},
	{service.ErrGeolocationUnavailable, failure{fiber.StatusBadRequest, "geolocation_unavailable", "unable to read your location, check location permissions"}},
	{service.ErrPersistenceFailure, failure{fiber.StatusServiceUnavailable, "persistence_failure", "could not record attendance, please try again"}},
	{service.ErrUnauthorized, failure{fiber.StatusUnauthorized, "unauthorized", "authentication required"}},
}

func classifyAttendanceError(err error) (failure, bool) {
	for _, candidate := range attendanceFailures {
		if errors.Is(err, candidate.err) {
			return candidate.failure, true
		}
	}
	return failure{}, false
}

func (h *AttendanceHandler) mark(c *fiber.Ctx) error {
	var payload dto.MarkAttendanceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid payload")
	}

	response, err := h.service.MarkPresent(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attendance marked", response)
}

func (h *AttendanceHandler) status(c *fiber.Ctx) error {
	classID, err := parseQueryUint(c, "class_id")
	if err != nil || classID == 0 {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "class_id required")
	}

	response, err := h.service.GetStatus(requestContext(c), userIDFromContext(c), classID)
	if err != nil {
		return h.fail(c, err)
	}

	return utils.SendSuccess(c, "attendance status", response)
}

func (h *AttendanceHandler) fail(c *fiber.Ctx, err error) error {
	if isValidationError(err) {
		return c.Status(fiber.StatusBadRequest).JSON(utils.APIResponse{
			Message:   "invalid payload",
			ErrorKind: "invalid_payload",
			Details:   validationDetails(err),
		})
	}

	if known, ok := classifyAttendanceError(err); ok {
		if known.status >= fiber.StatusInternalServerError {
			requestLogger(h.logger, c).Error().Err(err).Msg("attendance request failed")
		}
		return utils.SendErrorKind(c, known.status, known.kind, known.message)
	}

	requestLogger(h.logger, c).Error().Err(err).Msg("unexpected attendance error")
	return utils.SendErrorKind(c, fiber.StatusInternalServerError, "internal", "something went wrong")
}
