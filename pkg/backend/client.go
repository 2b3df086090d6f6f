// Package backend adapts the scheduling platform's Lambda endpoints and the
// workflow webhook behind typed calls with retries and circuit breakers.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Endpoint names, used for breaker identity and error reporting.
const (
	EndpointGetSchedule     = "getScheduleStarted"
	EndpointUpdateSchedule  = "updateWorkScheduleResponse"
	EndpointUpdateClinical  = "updateClinicalData"
	EndpointUpdateSummary   = "updatereportsummaryad"
	EndpointGetNoteReport   = "getNoteReport"
	EndpointWorkflowWebhook = "workflowWebhook"
)

const (
	defaultMaxRetries  = 3
	breakerFailures    = 5
	breakerCooldown    = 60 * time.Second
	defaultCallTimeout = 30 * time.Second
)

// Config holds per-endpoint URLs, the call timeout and the retry budget.
type Config struct {
	GetScheduleURL    string
	UpdateScheduleURL string
	UpdateClinicalURL string
	UpdateSummaryURL  string
	GetNoteReportURL  string
	WebhookURL        string
	Timeout           time.Duration
	MaxRetries        int
}

// LoadConfigFromEnv loads backend configuration from environment
// variables. The LAMBDA_* keys name the endpoints; the BACKEND_*_URL
// spellings are kept as aliases.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		GetScheduleURL:    envAlias("LAMBDA_GET_SCHEDULE", "BACKEND_GET_SCHEDULE_URL"),
		UpdateScheduleURL: envAlias("LAMBDA_UPDATE_SCHEDULE", "BACKEND_UPDATE_SCHEDULE_URL"),
		UpdateClinicalURL: envAlias("LAMBDA_UPDATE_CLINICAL", "BACKEND_UPDATE_CLINICAL_URL"),
		UpdateSummaryURL:  envAlias("LAMBDA_UPDATE_SUMMARY", "BACKEND_UPDATE_SUMMARY_URL"),
		GetNoteReportURL:  envAlias("LAMBDA_GET_NOTE_REPORT", "BACKEND_GET_NOTE_REPORT_URL"),
		WebhookURL:        envAlias("N8N_WEBHOOK_URL", "WORKFLOW_WEBHOOK_URL"),
		Timeout:           defaultCallTimeout,
		MaxRetries:        defaultMaxRetries,
	}
	if raw := envAlias("TIMEOUT_LAMBDAS", "BACKEND_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TIMEOUT_LAMBDAS: %w", err)
		}
		cfg.Timeout = time.Duration(seconds) * time.Second
	}
	if raw := os.Getenv("MAX_RETRIES"); raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil || retries < 0 {
			return Config{}, fmt.Errorf("invalid MAX_RETRIES: %q", raw)
		}
		cfg.MaxRetries = retries
	}
	if cfg.GetScheduleURL == "" {
		return Config{}, fmt.Errorf("LAMBDA_GET_SCHEDULE is required")
	}
	return cfg, nil
}

func envAlias(primary, alias string) string {
	if v := os.Getenv(primary); v != "" {
		return v
	}
	return os.Getenv(alias)
}

// Client is the backend adapter. Each endpoint gets its own circuit
// breaker so one degraded Lambda does not take the others down.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breakers   map[string]*gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		logger:     logger.With("component", "backend"),
	}
	for _, endpoint := range []string{
		EndpointGetSchedule, EndpointUpdateSchedule, EndpointUpdateClinical,
		EndpointUpdateSummary, EndpointGetNoteReport, EndpointWorkflowWebhook,
	} {
		c.breakers[endpoint] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    endpoint,
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
		})
	}
	return c
}

// call posts the payload and decodes the response into out (when non-nil),
// retrying transient failures behind the endpoint's breaker.
func (c *Client) call(ctx context.Context, endpoint, url string, payload any, out any) error {
	if url == "" {
		return &Error{Endpoint: endpoint, Kind: KindPermanent4xx, Message: "endpoint URL not configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
	}

	result, err := c.breakers[endpoint].Execute(func() (interface{}, error) {
		return c.callWithRetry(ctx, endpoint, url, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("circuit breaker open", "endpoint", endpoint)
			return &Error{Endpoint: endpoint, Kind: KindCircuitOpen, Message: err.Error()}
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result.([]byte), out); err != nil {
		return &Error{Endpoint: endpoint, Kind: KindPermanent5xx,
			Message: fmt.Sprintf("invalid response body: %v", err)}
	}
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, endpoint, url string, body []byte) ([]byte, error) {
	var responseBody []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(&Error{Endpoint: endpoint, Kind: KindPermanent4xx, Message: err.Error()})
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "plantao-orchestrator/1.0")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(&Error{Endpoint: endpoint, Kind: KindTimeout, Message: ctx.Err().Error()})
			}
			c.logger.Warn("backend request failed", "endpoint", endpoint, "error", err)
			return &Error{Endpoint: endpoint, Kind: KindTransient, Message: err.Error()}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Endpoint: endpoint, Kind: KindTransient, Message: err.Error()}
		}

		c.logger.Info("backend request",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			responseBody = data
			return nil
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
			return &Error{Endpoint: endpoint, Kind: KindTransient,
				StatusCode: resp.StatusCode, Message: truncate(data)}
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(&Error{Endpoint: endpoint, Kind: KindPermanent4xx,
				StatusCode: resp.StatusCode, Message: truncate(data)})
		default:
			return &Error{Endpoint: endpoint, Kind: KindTransient,
				StatusCode: resp.StatusCode, Message: truncate(data)}
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var backendErr *Error
		if errors.As(err, &backendErr) && backendErr.Kind == KindTransient && backendErr.StatusCode >= 500 {
			backendErr.Kind = KindPermanent5xx
		}
		return nil, err
	}
	return responseBody, nil
}

func truncate(data []byte) string {
	const limit = 200
	if len(data) > limit {
		return string(data[:limit])
	}
	return string(data)
}
