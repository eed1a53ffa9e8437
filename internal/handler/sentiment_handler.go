package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/utils"
	"github.com/noah-isme/cohort-assistant/internal/worker"
	"github.com/noah-isme/cohort-assistant/pkg/sentiment"
)

// SentimentHandler scores message text on demand. The model round trip runs
// on the shared worker pool.
type SentimentHandler struct {
	analyzer sentiment.Analyzer
	pool     *worker.Pool
	logger   zerolog.Logger
}

// NewSentimentHandler constructs the handler.
func NewSentimentHandler(analyzer sentiment.Analyzer, pool *worker.Pool, logger zerolog.Logger) *SentimentHandler {
	return &SentimentHandler{
		analyzer: analyzer,
		pool:     pool,
		logger:   logger.With().Str("component", "sentiment_handler").Logger(),
	}
}

// Register attaches the sentiment endpoint to the router group.
func (h *SentimentHandler) Register(router fiber.Router) {
	router.Post("", h.analyze)
}

func (h *SentimentHandler) analyze(c *fiber.Ctx) error {
	var payload struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&payload); err != nil || payload.Text == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "text is required")
	}

	var score sentiment.Score
	err := h.pool.Run(c.Context(), func(ctx context.Context) error {
		var analyzeErr error
		score, analyzeErr = h.analyzer.Analyze(ctx, payload.Text)
		return analyzeErr
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("sentiment analysis failed")
		return utils.SendError(c, fiber.StatusBadGateway, "sentiment analysis failed")
	}

	return utils.SendSuccess(c, "sentiment analyzed", score)
}
