package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cohort",
		Subsystem: "sentiment",
		Name:      "analysis_duration_seconds",
		Help:      "Duration of sentiment analysis requests",
	}, []string{"model"})

	analysisFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohort",
		Subsystem: "sentiment",
		Name:      "analysis_failures_total",
		Help:      "Number of sentiment analysis failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI analyzer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAnalyzer implements Analyzer against the OpenAI chat completion API.
type OpenAIAnalyzer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAnalyzer builds an analyzer using the provided configuration.
func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 64
	}

	return &OpenAIAnalyzer{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/cohort-assistant/pkg/sentiment"),
		logger: cfg.Logger,
	}, nil
}

// Analyze sends the message to OpenAI and parses the score.
func (a *OpenAIAnalyzer) Analyze(parent context.Context, text string) (Score, error) {
	ctx, span := a.tracer.Start(parent, "sentiment.analyze", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: `Score the sentiment of the user's message. Respond with a JSON object {"polarity": <-1..1>, "label": "negative"|"neutral"|"positive"}.`,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	analysisDuration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		analysisFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Score{}, fmt.Errorf("sentiment analyze: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		analysisFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		return Score{}, err
	}

	var score Score
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &score); err != nil {
		analysisFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		return Score{}, fmt.Errorf("sentiment analyze: malformed response: %w", err)
	}
	if score.Polarity < -1 || score.Polarity > 1 {
		return Score{}, fmt.Errorf("sentiment analyze: polarity %v out of range", score.Polarity)
	}
	return score, nil
}
