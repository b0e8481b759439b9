// Package client provides the HTTP client the gateway uses to reach the emulator.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"localstack-relay/internal/config"
	"localstack-relay/internal/metrics"
	"localstack-relay/internal/model"
)

// EmulatorClient sends relayed requests to the local emulator.
type EmulatorClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewEmulatorClient creates an EmulatorClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewEmulatorClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *EmulatorClient {
	transport := &http.Transport{
		// No Proxy: the relay is usually the process's own HTTP_PROXY.
		Proxy:               nil,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &EmulatorClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			// Redirects belong to the calling SDK, not the relay.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "emulator_client"),
		metrics: m,
	}
}

// Do executes an HTTP request against the emulator and returns the raw response.
// The caller is responsible for closing the response body.
func (c *EmulatorClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	c.logger.Debug("emulator request",
		"method", req.Method,
		"url", req.URL.String(),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("emulator request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// DoStream executes a request and returns the response body as a stream.
// The caller is responsible for closing the returned ReadCloser.
// The provided context controls the lifetime of the emulator request:
// when the context is canceled (e.g. client disconnects), the emulator
// request is also canceled.
func (c *EmulatorClient) DoStream(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build emulator request: %w", err)
	}
	req.Header = header

	return c.Do(req)
}
