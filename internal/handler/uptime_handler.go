package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/dispatcher"
	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/probe"
	"github.com/noah-isme/cohort-assistant/internal/service"
	"github.com/noah-isme/cohort-assistant/internal/utils"
)

// nextRunTimeout bounds how long a view-next-run call waits for the probe
// loop to complete a fresh tick.
const nextRunTimeout = 2 * time.Minute

// UptimeHandler wires the uptime command surface: stats, the next-run waiter,
// monitor management and the live observation feed.
type UptimeHandler struct {
	service  service.UptimeService
	loopDone *dispatcher.Event
	logger   zerolog.Logger
}

// NewUptimeHandler constructs the handler. loopDone is the probe loop's
// completion event.
func NewUptimeHandler(service service.UptimeService, loopDone *dispatcher.Event, logger zerolog.Logger) *UptimeHandler {
	return &UptimeHandler{
		service:  service,
		loopDone: loopDone,
		logger:   logger.With().Str("component", "uptime_handler").Logger(),
	}
}

// Register attaches uptime endpoints to the router group.
func (h *UptimeHandler) Register(router fiber.Router) {
	router.Get("/stats/:target", h.stats)
	router.Get("/next-run", h.nextRun)
	router.Get("/monitors", h.listMonitors)
	router.Post("/monitors", h.addMonitor)
	router.Delete("/monitors/:id", h.removeMonitor)
}

// RegisterFeed attaches the websocket observation feed.
func (h *UptimeHandler) RegisterFeed(router fiber.Router) {
	router.Use("/uptime", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/uptime", websocket.New(h.handleFeed))
}

func (h *UptimeHandler) stats(c *fiber.Ctx) error {
	lookBack := c.QueryInt("look_back", 7)
	if lookBack < 1 || lookBack > 365 {
		return utils.SendError(c, fiber.StatusBadRequest, "look_back must be between 1 and 365 days")
	}

	stats, err := h.service.Stats(c.Context(), c.Params("target"), lookBack)
	if err != nil {
		if errors.Is(err, service.ErrUnknownTarget) {
			return utils.SendError(c, fiber.StatusNotFound, "unknown target")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "stats retrieved", stats)
}

// nextRun blocks until the probe loop finishes its next full tick, then
// returns that tick's observations.
func (h *UptimeHandler) nextRun(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), nextRunTimeout)
	defer cancel()

	if err := h.loopDone.WaitNext(ctx); err != nil {
		return utils.SendError(c, fiber.StatusRequestTimeout, "timed out waiting for the next probe run")
	}

	results := h.service.LastResults()
	return utils.SendSuccess(c, "next run completed", dto.NewObservationResponseSlice(results))
}

func (h *UptimeHandler) listMonitors(c *fiber.Ctx) error {
	targets, err := h.service.Targets()
	if err != nil {
		return h.internalError(c, err)
	}
	return utils.SendSuccess(c, "monitors retrieved", targets)
}

func (h *UptimeHandler) addMonitor(c *fiber.Ctx) error {
	var payload dto.TargetCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	target := probe.Target{
		Name:           payload.Name,
		ID:             payload.ID,
		URI:            payload.URI,
		HTTPTimeout:    payload.HTTPTimeout,
		HTTPMaxRetries: payload.HTTPMaxRetries,
	}
	if err := h.service.AddTarget(target); err != nil {
		if errors.Is(err, probe.ErrInvalidTarget) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "monitor added", target)
}

func (h *UptimeHandler) removeMonitor(c *fiber.Ctx) error {
	if err := h.service.RemoveTarget(c.Params("id")); err != nil {
		return utils.SendError(c, fiber.StatusNotFound, "unknown target")
	}
	return utils.SendSuccess(c, "monitor removed", nil)
}

// handleFeed streams every persisted observation to the websocket client
// until it disconnects.
func (h *UptimeHandler) handleFeed(conn *websocket.Conn) {
	feed, cancel := h.service.Subscribe()
	defer cancel()

	h.logger.Info().Msg("uptime feed connected")
	defer h.logger.Info().Msg("uptime feed disconnected")

	// Reads are discarded; the read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entry := <-feed:
			if err := conn.WriteJSON(dto.NewObservationResponse(entry)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *UptimeHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg("uptime request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
