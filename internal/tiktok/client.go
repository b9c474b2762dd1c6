package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tiktok-relay/config"
	"tiktok-relay/internal/models"
	"tiktok-relay/pkg/metrics"

	"go.uber.org/zap"
)

const (
	trackPath     = "/open_api/v1.3/event/track/"
	pixelListPath = "/open_api/v1.3/pixel/list/"

	// CodeOK is the provider's canonical "no error" value; a 2xx transport
	// status alone does not mean the event was accepted.
	CodeOK = 0

	maxBodySize = 64 * 1024
)

// Response is the provider's own reply. Raw keeps the verbatim body for the
// caller's debugging.
type Response struct {
	Code      int64           `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Raw       json.RawMessage `json:"-"`
}

// UpstreamError reports an outbound call that failed at the transport level
// or was refused with a non-2xx HTTP status. HTTPStatus is zero when no
// response was received at all.
type UpstreamError struct {
	HTTPStatus int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tiktok request failed: %v", e.Err)
	}
	return fmt.Sprintf("tiktok request rejected with status %d", e.HTTPStatus)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Sender issues the single event-track call per inbound request.
type Sender interface {
	SendEvent(ctx context.Context, accessToken string, payload models.TrackPayload) (*Response, error)
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(cfg config.TikTokConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
}

// TrackURL is the event-ingestion endpoint, also used by the reachability
// probe with an empty body.
func (c *Client) TrackURL() string { return c.baseURL + trackPath }

// PixelListURL is the business-API list endpoint used for reachability
// checks only.
func (c *Client) PixelListURL() string { return c.baseURL + pixelListPath }

func (c *Client) SendEvent(ctx context.Context, accessToken string, payload models.TrackPayload) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TrackURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Access-Token", accessToken)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamDuration.WithLabelValues("event_track").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if readErr != nil {
		c.logger.Warn("Failed to read tiktok response body", zap.Error(readErr))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{HTTPStatus: resp.StatusCode, Body: string(raw)}
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// A 2xx with an unparseable body is still an upstream problem.
		return nil, &UpstreamError{HTTPStatus: resp.StatusCode, Body: string(raw), Err: err}
	}
	parsed.Raw = raw

	c.logger.Debug("TikTok event track response",
		zap.Int("http_status", resp.StatusCode),
		zap.Int64("code", parsed.Code),
		zap.String("message", parsed.Message))

	return &parsed, nil
}
