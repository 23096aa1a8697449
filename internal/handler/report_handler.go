package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/middleware"
	"github.com/noah-isme/geoattend-api/internal/service"
	"github.com/noah-isme/geoattend-api/internal/utils"
)

// ReportHandler serves attendance reports to class representatives.
type ReportHandler struct {
	service service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(service service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register wires report routes under the classes group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/:id/report", middleware.RequireRole(middleware.AuthRoleCR), h.report)
}

func (h *ReportHandler) report(c *fiber.Ctx) error {
	classID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid class id")
	}

	req := dto.AttendanceReportRequest{
		ClassID: classID,
		From:    strings.TrimSpace(c.Query("from")),
		To:      strings.TrimSpace(c.Query("to")),
	}
	if req.From == "" || req.To == "" {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_date_range", "from and to are required")
	}

	report, err := h.service.BuildReport(requestContext(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDateRange):
			return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_date_range", err.Error())
		case errors.Is(err, service.ErrClassNotFound):
			return utils.SendErrorKind(c, fiber.StatusNotFound, "class_not_found", "class not found")
		case errors.Is(err, service.ErrPersistenceFailure):
			requestLogger(h.logger, c).Error().Err(err).Uint("class_id", classID).Msg("attendance report store unavailable")
			return utils.SendErrorKind(c, fiber.StatusServiceUnavailable, "persistence_failure", "could not load the attendance report, please try again")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("class_id", classID).Msg("failed to build attendance report")
			return utils.SendErrorKind(c, fiber.StatusInternalServerError, "internal", "failed to build attendance report")
		}
	}

	return utils.SendSuccess(c, "attendance report", report)
}
