package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/clock"
	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/service"
	"github.com/noah-isme/cohort-assistant/internal/timetable"
	"github.com/noah-isme/cohort-assistant/internal/utils"
)

// TimetableHandler serves the read-only schedule projections.
type TimetableHandler struct {
	service service.TimetableService
	clk     clock.Clock
	logger  zerolog.Logger
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(service service.TimetableService, clk clock.Clock, logger zerolog.Logger) *TimetableHandler {
	return &TimetableHandler{
		service: service,
		clk:     clk,
		logger:  logger.With().Str("component", "timetable_handler").Logger(),
	}
}

// Register attaches timetable endpoints to the router group.
func (h *TimetableHandler) Register(router fiber.Router) {
	router.Get("/timetable", h.daySchedule)
	router.Get("/lesson", h.lesson)
	router.Get("/exams", h.exams)
}

// queryDate reads an optional dd/mm/yyyy date, defaulting to today.
func (h *TimetableHandler) queryDate(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return h.clk.Now(), nil
	}
	date, err := time.ParseInLocation(timetable.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("date must be dd/mm/yyyy")
	}
	return date, nil
}

func (h *TimetableHandler) daySchedule(c *fiber.Ctx) error {
	date, err := h.queryDate(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	lessons := h.service.DaySchedule(date)
	plain := make([]timetable.Lesson, 0, len(lessons))
	for _, lesson := range lessons {
		plain = append(plain, lesson.Lesson)
	}
	return utils.SendSuccess(c, "timetable retrieved", dto.NewDayScheduleResponse(date, plain))
}

func (h *TimetableHandler) lesson(c *fiber.Ctx) error {
	now, err := h.queryDate(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if c.Query("date") == "" {
		now = h.clk.Now()
	}

	text, err := h.service.Projection(now)
	if err != nil {
		if errors.Is(err, timetable.ErrBreakBoundsExceeded) {
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "no upcoming lesson within the schedule horizon")
		}
		h.logger.Error().Err(err).Msg("projection failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "lesson retrieved", dto.ProjectionResponse{Text: text})
}

func (h *TimetableHandler) exams(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "exams retrieved", dto.NewExamResponseSlice(h.service.Exams()))
}
