package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"tiktok-relay/pkg/metrics"

	"go.uber.org/zap"
)

// maxBodySize caps how much of a provider response is kept for the caller.
const maxBodySize = 64 * 1024

// Endpoint is one candidate target, tried in list order.
type Endpoint struct {
	Name   string
	Method string
	URL    string
}

// Result is the first transport-level success: a response was received,
// whatever its HTTP status.
type Result struct {
	Provider string
	Status   int
	Body     []byte
}

// AttemptError records one failed attempt for the aggregate failure report.
type AttemptError struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

type Prober struct {
	client *http.Client
	logger *zap.Logger
}

func New(timeout time.Duration, logger *zap.Logger) *Prober {
	return &Prober{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Probe tries each endpoint in order and returns the first response
// received. Attempts are sequential, never concurrent, so provider
// precedence stays deterministic. A nil Result means every endpoint failed
// at the transport level; the attempt errors then cover the full list.
func (p *Prober) Probe(ctx context.Context, endpoints []Endpoint) (*Result, []AttemptError) {
	var failures []AttemptError

	for _, ep := range endpoints {
		result, err := p.attempt(ctx, ep)
		if err != nil {
			p.logger.Warn("Probe attempt failed",
				zap.String("provider", ep.Name),
				zap.String("url", ep.URL),
				zap.Error(err))
			metrics.ProbeAttempts.WithLabelValues(ep.Name, "failed").Inc()
			failures = append(failures, AttemptError{Provider: ep.Name, Error: err.Error()})
			continue
		}

		metrics.ProbeAttempts.WithLabelValues(ep.Name, "success").Inc()
		p.logger.Info("Probe attempt succeeded",
			zap.String("provider", ep.Name),
			zap.Int("status", result.Status))
		return result, failures
	}

	return nil, failures
}

func (p *Prober) attempt(ctx context.Context, ep Endpoint) (*Result, error) {
	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, ep.URL, nil)
	if err != nil {
		return nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	metrics.UpstreamDuration.WithLabelValues(ep.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		p.logger.Warn("Failed to read probe response body",
			zap.String("provider", ep.Name),
			zap.Error(err))
	}

	return &Result{Provider: ep.Name, Status: resp.StatusCode, Body: body}, nil
}
