// Package addon plugs the relay into the go-mitmproxy intercepting proxy.
package addon

import (
	"log/slog"
	"strconv"

	"github.com/lqqyt2423/go-mitmproxy/proxy"

	"localstack-relay/internal/metrics"
	"localstack-relay/internal/relay"
)

// Addon adapts go-mitmproxy flow callbacks to the relay rewrite rules.
//
// Redirection happens in Requestheaders so that flows whose bodies exceed
// the proxy's streaming threshold are redirected too; go-mitmproxy skips the
// Request callback for those.
type Addon struct {
	proxy.BaseAddon

	relay   *relay.Relay
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Addon. m may be nil.
func New(r *relay.Relay, logger *slog.Logger, m *metrics.Metrics) *Addon {
	return &Addon{
		relay:   r,
		logger:  logger.With("component", "addon"),
		metrics: m,
	}
}

// ClientConnected disables the upstream certificate lookup. The real AWS
// endpoint is never dialed, so leaf certificates are minted from the SNI alone.
func (a *Addon) ClientConnected(client *proxy.ClientConn) {
	client.UpstreamCert = false
}

// Requestheaders redirects the flow to the emulator.
func (a *Addon) Requestheaders(f *proxy.Flow) {
	if f.Request == nil || f.Request.URL == nil {
		return
	}

	original := f.Request.URL.Host
	rf := relay.Flow{Request: relay.RequestFromURL(f.Request.URL, nil)}
	match := a.relay.OnRequest(&rf)
	rf.Request.ApplyURL(f.Request.URL)

	if match.VirtualHosted {
		a.logger.Debug("bucket host rewritten to path style",
			"host", original,
			"bucket", match.Bucket,
			"path", f.Request.URL.EscapedPath(),
		)
	}
	a.logger.Debug("flow redirected",
		"method", f.Request.Method,
		"host", original,
		"target", f.Request.URL.Host,
	)
	a.metrics.ObserveFlow(metrics.RuntimeMITM, match.VirtualHosted, false)
}

// Response rewrites DescribeRegions replies. go-mitmproxy only calls it for
// bodies buffered below the streaming threshold.
func (a *Addon) Response(f *proxy.Flow) {
	if f.Request == nil || f.Response == nil {
		return
	}

	rf := relay.Flow{Request: relay.Request{Body: f.Request.Body}}
	if !a.relay.RewritesResponse(&rf) {
		return
	}

	// The emulator may compress; the rewrite operates on decoded text.
	if f.Response.Header != nil {
		f.Response.ReplaceToDecodedBody()
	}
	rf.Response = &relay.Response{Body: f.Response.Body}
	if !a.relay.OnResponse(&rf) {
		return
	}

	f.Response.Body = rf.Response.Body
	if f.Response.Header != nil {
		f.Response.Header.Set("Content-Length", strconv.Itoa(len(f.Response.Body)))
	}
	a.logger.Debug("region names rewritten", "status", f.Response.StatusCode)
	a.metrics.ObserveRewrite(metrics.RuleDescribeRegions)
}
