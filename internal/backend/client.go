// Package backend wraps the remote intent backend behind typed errors.
//
// The backend is treated as unreliable by contract: every failure is
// normalized into a Kind so the orchestrator can decide between fallback
// and apology without inspecting transport details.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bryancris/tasqi-sub000/internal/domain"
)

const (
	processChatPath = "/process-chat"
	processTaskPath = "/process-task"
)

// Client is an HTTP JSON client to the intent backend.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestTimeout: 30 * time.Second,
	}
}

// NewClient creates a new intent backend client. No network I/O happens
// here; use Probe to fail fast on bad endpoints.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultClientConfig().RequestTimeout
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Probe checks whether the backend answers at all. Callers use it during
// startup to log degraded mode; a failing probe does not prevent serving,
// because the timer fallback keeps the pipeline useful offline.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return normalize("probe", err)
	}
	drainAndClose(resp.Body, c.logger)
	if resp.StatusCode >= 500 {
		return &Error{Kind: KindBackend, Op: "probe", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// ProcessMessage invokes the intent backend's process-message endpoint.
// It fails with KindAuthRequired when userID is empty, KindNetwork on
// transport failure and KindBackend when the call completes but reports
// an application error.
func (c *Client) ProcessMessage(ctx context.Context, content, userID string) (*domain.ProcessResult, error) {
	if userID == "" {
		return nil, &Error{Kind: KindAuthRequired, Op: "process-chat"}
	}

	start := time.Now()
	var result domain.ProcessResult
	if err := c.post(ctx, processChatPath, chatRequest{Message: content, UserID: userID}, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("process-chat completed",
		"user_id", userID,
		"elapsed", time.Since(start),
		"task_created", result.TaskCreated,
		"has_timer", result.Timer != nil,
	)

	// Boundary invariant: taskCreated without a task payload is a backend
	// contract violation; treat it as no task created.
	result.Normalize()
	return &result, nil
}

// ProcessTask invokes the dedicated task-extraction endpoint.
func (c *Client) ProcessTask(ctx context.Context, message, userID string) (*domain.TaskResult, error) {
	if userID == "" {
		return nil, &Error{Kind: KindAuthRequired, Op: "process-task"}
	}

	var result domain.TaskResult
	if err := c.post(ctx, processTaskPath, chatRequest{Message: message, UserID: userID}, &result); err != nil {
		return nil, err
	}
	if result.Success && result.Task == nil {
		result.Success = false
	}
	return &result, nil
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	op := strings.TrimPrefix(path, "/")

	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Kind: KindUnclassified, Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: KindUnclassified, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return normalize(op, err)
	}
	defer drainAndClose(resp.Body, c.logger)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return &Error{Kind: KindBackend, Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)}
		}
		return &Error{Kind: KindBackend, Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindBackend, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func drainAndClose(body io.ReadCloser, logger *slog.Logger) {
	if _, err := io.Copy(io.Discard, io.LimitReader(body, 64<<10)); err != nil {
		logger.Debug("failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		logger.Debug("failed to close response body", "error", err)
	}
}
