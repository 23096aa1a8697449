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

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	service service.ProfileService
	logger  zerolog.Logger
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(service service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register wires profile routes under the users group.
func (h *ProfileHandler) Register(router fiber.Router) {
	signedIn := middleware.AuthOptions{RequireUser: true}
	router.Get("/me", middleware.WithAuth(h.me, signedIn))
	router.Put("/me", middleware.WithAuth(h.update, signedIn))
}

func (h *ProfileHandler) me(c *fiber.Ctx) error {
	profile, err := h.service.Me(requestContext(c), userIDFromContext(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch profile")
	}
	return utils.SendSuccess(c, "profile", profile)
}

func (h *ProfileHandler) update(c *fiber.Ctx) error {
	var payload dto.UpdateProfileRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid payload")
	}

	profile, err := h.service.UpdateMe(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return h.fail(c, err, "profile update failed")
	}
	return utils.SendSuccess(c, "profile updated", profile)
}

func (h *ProfileHandler) fail(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return c.Status(fiber.StatusBadRequest).JSON(utils.APIResponse{
			Message:   "invalid payload",
			ErrorKind: "invalid_payload",
			Details:   validationDetails(err),
		})
	case errors.Is(err, service.ErrUnauthorized):
		return utils.SendErrorKind(c, fiber.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendErrorKind(c, fiber.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, service.ErrPersistenceFailure):
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendErrorKind(c, fiber.StatusServiceUnavailable, "persistence_failure", "profile unavailable, please try again")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendErrorKind(c, fiber.StatusInternalServerError, "internal", fallback)
	}
}
