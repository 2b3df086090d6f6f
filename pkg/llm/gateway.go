// Package llm exposes the conversational model behind six strictly typed
// calls. Every call runs at temperature zero, validates the returned JSON
// and retries malformed output a bounded number of times.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the model is unreachable or the breaker
// is open. Callers fall back to deterministic behavior.
var ErrUnavailable = errors.New("llm unavailable")

const (
	// jsonRetries bounds re-asks after malformed JSON.
	jsonRetries = 2

	breakerFailures = 5
	breakerCooldown = 30 * time.Second

	defaultModel = "gpt-4o-mini"
)

// Config holds model access settings. Classification and generation run
// on the intent model; clinical and finalization extraction on the
// extractor model.
type Config struct {
	APIKey         string
	IntentModel    string
	ExtractorModel string
	BaseURL        string
}

// LoadConfigFromEnv loads LLM configuration from environment variables.
// OPENAI_MODEL is accepted as an alias that covers both roles.
func LoadConfigFromEnv() (Config, error) {
	shared := os.Getenv("OPENAI_MODEL")
	cfg := Config{
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		IntentModel:    os.Getenv("INTENT_MODEL"),
		ExtractorModel: os.Getenv("EXTRACTOR_MODEL"),
		BaseURL:        os.Getenv("OPENAI_BASE_URL"),
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.IntentModel == "" {
		cfg.IntentModel = shared
	}
	if cfg.ExtractorModel == "" {
		cfg.ExtractorModel = shared
	}
	return cfg, nil
}

// Gateway is the typed LLM client.
type Gateway struct {
	client         *openai.Client
	intentModel    string
	extractorModel string
	breaker        *gobreaker.CircuitBreaker
	logger         *slog.Logger
}

// NewGateway creates a gateway from config.
func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.IntentModel == "" {
		cfg.IntentModel = defaultModel
	}
	if cfg.ExtractorModel == "" {
		cfg.ExtractorModel = defaultModel
	}
	return &Gateway{
		client:         openai.NewClientWithConfig(clientConfig),
		intentModel:    cfg.IntentModel,
		extractorModel: cfg.ExtractorModel,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "llm",
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
		}),
		logger: logger.With("component", "llm"),
	}
}

// complete runs one chat completion at temperature zero.
func (g *Gateway) complete(ctx context.Context, model, system, user string, maxTokens int, jsonMode bool) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0,
		MaxTokens:   maxTokens,
	}
	if jsonMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if system != "" {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: system,
		})
	}
	request.Messages = append(request.Messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: user,
	})

	result, err := g.breaker.Execute(func() (interface{}, error) {
		response, err := g.client.CreateChatCompletion(ctx, request)
		if err != nil {
			return nil, err
		}
		if len(response.Choices) == 0 {
			return nil, fmt.Errorf("empty completion response")
		}
		return response.Choices[0].Message.Content, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.logger.Warn("llm circuit breaker open")
			return "", ErrUnavailable
		}
		g.logger.Error("llm completion failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result.(string), nil
}

// completeJSON runs a completion, decodes the JSON answer into out and
// re-asks up to jsonRetries times when the model returns malformed or
// invalid output. validate may be nil.
func (g *Gateway) completeJSON(ctx context.Context, model, system, user string, maxTokens int, out any, validate func() error) error {
	var lastErr error
	for attempt := 0; attempt <= jsonRetries; attempt++ {
		content, err := g.complete(ctx, model, system, user, maxTokens, true)
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(content), out); err != nil {
			lastErr = fmt.Errorf("malformed JSON from model: %w", err)
			g.logger.Warn("discarding malformed llm output", "attempt", attempt+1)
			continue
		}
		if validate != nil {
			if err := validate(); err != nil {
				lastErr = fmt.Errorf("invalid model output: %w", err)
				g.logger.Warn("discarding invalid llm output", "attempt", attempt+1, "error", err)
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
