// Package service implements the gateway's relay-and-rewrite forwarding logic.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"localstack-relay/internal/client"
	"localstack-relay/internal/metrics"
	"localstack-relay/internal/model"
	"localstack-relay/internal/relay"
)

// ErrMissingHost is returned when a request names no destination host.
var ErrMissingHost = errors.New("request has no destination host")

// RelayService forwards gateway requests to the emulator through the relay rules.
type RelayService struct {
	client  *client.EmulatorClient
	relay   *relay.Relay
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRelayService creates a RelayService. The metrics parameter is optional.
func NewRelayService(c *client.EmulatorClient, r *relay.Relay, logger *slog.Logger, m *metrics.Metrics) *RelayService {
	return &RelayService{
		client:  c,
		relay:   r,
		logger:  logger.With("component", "relay_service"),
		metrics: m,
	}
}

// Forward redirects a ProxyRequest to the emulator and returns its response.
// Replies the relay may rewrite are buffered in full; all others are streamed.
// The caller is responsible for closing the response body.
func (s *RelayService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if pr.Host == "" {
		return nil, ErrMissingHost
	}

	var body []byte
	if pr.Body != nil && pr.Body != http.NoBody {
		b, err := io.ReadAll(pr.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = b
	}

	u := &url.URL{Scheme: pr.Scheme, Host: pr.Host, RawPath: pr.Path}
	if p, err := url.PathUnescape(pr.Path); err == nil {
		u.Path = p
	} else {
		u.Path, u.RawPath = pr.Path, ""
	}

	flow := &relay.Flow{Request: relay.RequestFromURL(u, body)}
	origin := flow.Request.Host
	match := s.relay.OnRequest(flow)
	buffer := s.relay.RewritesResponse(flow)

	flow.Request.ApplyURL(u)
	u.RawQuery = pr.RawQuery

	s.logger.Debug("relaying request",
		"method", pr.Method,
		"origin_host", origin,
		"url", u.String(),
		"bucket", match.Bucket,
	)

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	resp, err := s.client.DoStream(pr.Ctx, pr.Method, u.String(), s.filterRequestHeaders(pr.Header, buffer), reqBody)
	if err != nil {
		return nil, fmt.Errorf("forward to emulator: %w", err)
	}
	resp.Header = s.filterResponseHeaders(resp.Header)

	rewritten := false
	if buffer {
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read emulator response: %w", err)
		}
		flow.Response = &relay.Response{Body: data}
		rewritten = s.relay.OnResponse(flow)
		if rewritten {
			s.logger.Info("rewrote DescribeRegions response", "origin_host", origin)
		}
		resp.Body = io.NopCloser(bytes.NewReader(flow.Response.Body))
		resp.Header.Set("Content-Length", strconv.Itoa(len(flow.Response.Body)))
	}

	s.metrics.ObserveFlow(metrics.RuntimeGateway, match.VirtualHosted, rewritten)
	return resp, nil
}

// filterRequestHeaders copies src without hop-by-hop headers. When the reply
// will be rewritten, Accept-Encoding is dropped too so the emulator answers in
// plain text.
func (s *RelayService) filterRequestHeaders(src http.Header, plainResponse bool) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	model.StripHopByHop(dst)
	if plainResponse {
		dst.Del("Accept-Encoding")
	}
	return dst
}

func (s *RelayService) filterResponseHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	model.StripHopByHop(dst)
	return dst
}
