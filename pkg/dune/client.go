// Package dune provides the Dune Analytics fetch client used to populate
// the query-result cache. It supports the synchronous precomputed-results
// endpoint and the asynchronous execute-then-poll flow.
//
// All external failures (network, non-success status, malformed body) are
// logged, counted, and returned as plain errors. The client performs no
// retries; retry happens only through the refresh scheduler's next eligible
// pass.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/basenuts/nut-state/pkg/snapshot"
)

// DefaultBaseURL is the production Dune API endpoint.
const DefaultBaseURL = "https://api.dune.com"

// apiKeyHeader authenticates every request.
const apiKeyHeader = "X-Dune-API-Key"

// ErrStillRunning is returned by ExecutionRows while the external execution
// is still pending or executing.
var ErrStillRunning = errors.New("execution still running")

// Execution states reported by the Dune API.
const (
	stateCompleted = "QUERY_STATE_COMPLETED"
	statePending   = "QUERY_STATE_PENDING"
	stateExecuting = "QUERY_STATE_EXECUTING"
)

// ErrorClass represents a classification of fetch errors, for metrics only.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses (Dune credit exhaustion).
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents malformed response bodies.
	ErrorClassDecode ErrorClass = "decode"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Dune API (default: DefaultBaseURL).
	BaseURL string

	// APIKey sent in the X-Dune-API-Key header (required).
	APIKey string

	// Timeout per request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
	}
}

// Client is the Dune Analytics API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Dune client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("dune api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// resultEnvelope is the shape shared by the results and execution endpoints.
type resultEnvelope struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Result      struct {
		Rows []snapshot.Row `json:"rows"`
	} `json:"result"`
}

// Rows fetches the precomputed result set for a query.
func (c *Client) Rows(ctx context.Context, queryID string) ([]snapshot.Row, error) {
	endpoint := fmt.Sprintf("/api/v1/query/%s/results", queryID)

	env, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("query_id", queryID).
		Int("rows", len(env.Result.Rows)).
		Msg("Fetched query results")

	return env.Result.Rows, nil
}

// Execute starts an external execution of a query and returns its handle.
func (c *Client) Execute(ctx context.Context, queryID string) (string, error) {
	endpoint := fmt.Sprintf("/api/v1/query/%s/execute", queryID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req, endpoint)
	if err != nil {
		return "", err
	}
	if env.ExecutionID == "" {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return "", fmt.Errorf("execute query %s: no execution id in response", queryID)
	}

	c.logger.Info().
		Str("query_id", queryID).
		Str("execution_id", env.ExecutionID).
		Msg("Started query execution")

	return env.ExecutionID, nil
}

// ExecutionRows fetches the result of a previously started execution.
// Returns ErrStillRunning while the execution is pending or executing.
func (c *Client) ExecutionRows(ctx context.Context, executionID string) ([]snapshot.Row, error) {
	endpoint := fmt.Sprintf("/api/v1/execution/%s/results", executionID)

	env, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	switch env.State {
	case statePending, stateExecuting:
		c.logger.Debug().
			Str("execution_id", executionID).
			Str("state", env.State).
			Msg("Execution not finished")
		return nil, ErrStillRunning
	case stateCompleted, "":
		return env.Result.Rows, nil
	default:
		errorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return nil, fmt.Errorf("execution %s finished in state %s", executionID, env.State)
	}
}

// get performs an authenticated GET and decodes the result envelope.
func (c *Client) get(ctx context.Context, endpoint string) (*resultEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, endpoint)
}

// do executes a request with auth, metrics, and uniform error handling.
func (c *Client) do(req *http.Request, endpoint string) (*resultEnvelope, error) {
	req.Header.Set(apiKeyHeader, c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Dune request failed")
		return nil, fmt.Errorf("dune request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Dune request error")
		return nil, fmt.Errorf("dune request %s: status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read dune response %s: %w", endpoint, err)
	}

	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Malformed Dune response body")
		return nil, fmt.Errorf("decode dune response %s: %w", endpoint, err)
	}

	return &env, nil
}

// classifyStatus categorizes a non-success HTTP status for observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
