// Package client provides a REST client for the Ask Rumi API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/askrumi/internal/metrics"
	"github.com/raphaelgruber/askrumi/internal/models"
)

// DefaultBaseURL is used when neither an explicit URL nor RUMI_API_URL is set.
const DefaultBaseURL = "http://127.0.0.1:8001"

// Client is a REST client for the Ask Rumi API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMetrics records request timings into collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) { c.metrics = collector }
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a new API client.
// If baseURL is empty, uses RUMI_API_URL env var or defaults to the loopback server.
// Timeout can be configured via RUMI_CLIENT_TIMEOUT env var (default 5m, inference is slow).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("RUMI_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("RUMI_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = LoggingTransport(c.logger, http.DefaultTransport)
	return c
}

// BaseURL returns the API base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrApplication matches errors the server reported inside an otherwise successful response.
var ErrApplication = errors.New("application error")

// ApplicationError carries the server's {"error": "..."} text verbatim.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrApplication.
func (e *ApplicationError) Is(target error) bool {
	return target == ErrApplication
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %s", e.Status)
	}
	return fmt.Sprintf("server error: %s - %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// errorBody covers both FastAPI's {"detail"} and the app's {"error"} shapes.
type errorBody struct {
	Detail any    `json:"detail"`
	Error  string `json:"error"`
}

func parseErrorBody(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return strings.TrimSpace(string(body))
	}
	if eb.Error != "" {
		return eb.Error
	}
	switch d := eb.Detail.(type) {
	case string:
		return d
	case nil:
		return strings.TrimSpace(string(body))
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do sends a JSON request and decodes a JSON response into result (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, body, result any) (err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordTiming(op, time.Since(start), err != nil)
		}
	}()

	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    parseErrorBody(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// ChatRequest is the payload for the ask-rumi endpoint.
// ConversationID is sent as null to start a new conversation.
type ChatRequest struct {
	Message        string  `json:"message"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	ConversationID *string `json:"conversation_id"`
}

// ChatReply is the ask-rumi response.
type ChatReply struct {
	Response       string  `json:"response"`
	ConversationID string  `json:"conversation_id"`
	InferenceTime  float64 `json:"inference_time"`
	Model          string  `json:"model,omitempty"`
	Timestamp      string  `json:"timestamp,omitempty"`
	TokensUsed     *int    `json:"tokens_used,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// InferenceDuration converts the server's seconds into a duration.
func (r ChatReply) InferenceDuration() time.Duration {
	return time.Duration(r.InferenceTime * float64(time.Second))
}

// AskRumi sends one chat turn. A reply carrying an error field, or no text at all,
// is returned as an *ApplicationError.
func (c *Client) AskRumi(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	var reply ChatReply
	if err := c.do(ctx, metrics.OpChat, http.MethodPost, "/api/chat/ask-rumi", req, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, &ApplicationError{Message: reply.Error}
	}
	if reply.Response == "" {
		return nil, &ApplicationError{Message: "Unknown error"}
	}
	if c.metrics != nil && reply.InferenceTime > 0 {
		c.metrics.RecordInference(metrics.OpChat, reply.InferenceDuration())
	}
	return &reply, nil
}

// ListConversations returns every conversation the server holds.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var result struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, metrics.OpListConversations, http.MethodGet, "/api/chat/conversations", nil, &result); err != nil {
		return nil, err
	}
	return result.Conversations, nil
}

// DeleteConversation deletes a conversation by ID.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	path := "/api/chat/conversations/" + url.PathEscape(id)
	return c.do(ctx, metrics.OpDeleteConversation, http.MethodDelete, path, nil, nil)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels returns all models known to the server.
func (c *Client) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	var result struct {
		Models []models.ModelInfo `json:"models"`
	}
	if err := c.do(ctx, metrics.OpListModels, http.MethodGet, "/api/models/", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// DownloadModel queues a model download at the given priority ("low", "normal", "high", "urgent").
func (c *Client) DownloadModel(ctx context.Context, name, priority string) (*models.DownloadTicket, error) {
	if priority == "" {
		priority = "normal"
	}
	body := map[string]string{"model": name, "priority": priority}

	var ticket models.DownloadTicket
	if err := c.do(ctx, metrics.OpDownloadModel, http.MethodPost, "/api/models/download", body, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// DownloadStatus reports the progress of a model download.
func (c *Client) DownloadStatus(ctx context.Context, name string) (*models.DownloadStatus, error) {
	path := "/api/models/download/" + url.PathEscape(name) + "/status"

	var status models.DownloadStatus
	if err := c.do(ctx, metrics.OpDownloadStatus, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TestModel asks the server to run a smoke test against a model.
func (c *Client) TestModel(ctx context.Context, name string) (*models.TestResult, error) {
	path := "/api/models/" + url.PathEscape(name) + "/test"

	var result models.TestResult
	if err := c.do(ctx, metrics.OpTestModel, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// SYSTEM OPERATIONS
// =============================================================================

// SystemInfo returns host information for the API server.
func (c *Client) SystemInfo(ctx context.Context) (*models.SystemInfo, error) {
	var info models.SystemInfo
	if err := c.do(ctx, metrics.OpSystemInfo, http.MethodGet, "/api/system/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health returns the server's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.do(ctx, metrics.OpHealth, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// REMOTE CONFIGURATION
// =============================================================================

// ConfigObject is an opaque structured configuration document.
// The client does not validate its shape.
type ConfigObject map[string]any

// GetBehaviorSettings fetches the server-side behavior configuration.
func (c *Client) GetBehaviorSettings(ctx context.Context) (ConfigObject, error) {
	return c.getConfig(ctx, metrics.OpBehaviorSettings, "/api/chat/behavior-settings")
}

// SaveBehaviorSettings replaces or merges the server-side behavior configuration.
func (c *Client) SaveBehaviorSettings(ctx context.Context, cfg ConfigObject) error {
	return c.do(ctx, metrics.OpBehaviorSettings, http.MethodPost, "/api/chat/behavior-settings", cfg, nil)
}

// GetEmotionKeywords fetches the emotion, theme and empathy keyword configuration.
func (c *Client) GetEmotionKeywords(ctx context.Context) (ConfigObject, error) {
	return c.getConfig(ctx, metrics.OpEmotionKeywords, "/api/chat/emotion-keywords")
}

// SaveEmotionKeywords stores the keyword configuration.
func (c *Client) SaveEmotionKeywords(ctx context.Context, cfg ConfigObject) error {
	return c.do(ctx, metrics.OpEmotionKeywords, http.MethodPost, "/api/chat/emotion-keywords", cfg, nil)
}

func (c *Client) getConfig(ctx context.Context, op, path string) (ConfigObject, error) {
	var result struct {
		Config ConfigObject `json:"config"`
	}
	if err := c.do(ctx, op, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if result.Config == nil {
		result.Config = ConfigObject{}
	}
	return result.Config, nil
}
