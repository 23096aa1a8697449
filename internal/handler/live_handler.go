package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/middleware"
	"github.com/noah-isme/geoattend-api/internal/service"
	"github.com/noah-isme/geoattend-api/internal/utils"
)

const (
	livePingInterval = 30 * time.Second
	liveWriteTimeout = 5 * time.Second
)

// LiveHandler streams attendance events of a class over a websocket.
type LiveHandler struct {
	hub     service.AttendanceEventHub
	classes service.ClassService
	logger  zerolog.Logger
}

// NewLiveHandler constructs the live feed handler.
func NewLiveHandler(hub service.AttendanceEventHub, classes service.ClassService, logger zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		hub:     hub,
		classes: classes,
		logger:  logger.With().Str("component", "live_handler").Logger(),
	}
}

// Register wires the live feed under the classes group.
func (h *LiveHandler) Register(router fiber.Router) {
	router.Get("/:id/live",
		middleware.WithAuth(h.upgrade, middleware.AuthOptions{Role: middleware.AuthRoleCR}),
		websocket.New(h.stream),
	)
}

func (h *LiveHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	classID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid class id")
	}
	if _, err := h.classes.Get(requestContext(c), classID); err != nil {
		if errors.Is(err, service.ErrClassNotFound) {
			return utils.SendErrorKind(c, fiber.StatusNotFound, "class_not_found", "class not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("class_id", classID).Msg("failed to load class for live feed")
		return utils.SendErrorKind(c, fiber.StatusServiceUnavailable, "persistence_failure", "live feed unavailable, please try again")
	}

	c.Locals("live_class_id", classID)
	return c.Next()
}

func (h *LiveHandler) stream(conn *websocket.Conn) {
	classID, _ := conn.Locals("live_class_id").(uint)
	correlation, _ := conn.Locals("correlation_id").(string)
	logger := h.logger.With().Uint("class_id", classID).Str("correlation_id", correlation).Logger()

	events, cleanup := h.hub.Subscribe(classID)
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, dto.AttendanceEvent{Type: "live.subscribed", ClassID: classID}); err != nil {
		return
	}
	logger.Info().Msg("live feed connected")

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Info().Msg("live feed disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, event); err != nil {
				logger.Debug().Err(err).Msg("live feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) write(conn *websocket.Conn, event dto.AttendanceEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
