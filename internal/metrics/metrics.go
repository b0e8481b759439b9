// Package metrics provides Prometheus metrics for the relay.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Rewrite rule label values.
const (
	RuleBucketPath      = "bucket_path"
	RuleDescribeRegions = "describe_regions"
)

// Runtime label values: which front door a flow came through.
const (
	RuntimeMITM    = "mitm"
	RuntimeGateway = "gateway"
)

// Metrics holds all Prometheus metric collectors for the relay.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	FlowsTotal    *prometheus.CounterVec
	RewritesTotal *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localstack_relay_http_requests_total",
			Help: "Total inbound gateway HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "localstack_relay_http_request_duration_seconds",
			Help:    "Inbound gateway HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "localstack_relay_http_requests_in_flight",
			Help: "Number of gateway HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "localstack_relay_upstream_request_duration_seconds",
			Help:    "Emulator call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localstack_relay_upstream_responses_total",
			Help: "Total emulator responses by method and status code.",
		}, []string{"method", "status_code"}),

		FlowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localstack_relay_flows_total",
			Help: "Total flows redirected to the emulator, by front door.",
		}, []string{"runtime"}),

		RewritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localstack_relay_rewrites_total",
			Help: "Total flows changed by a rewrite rule.",
		}, []string{"rule"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.FlowsTotal,
		m.RewritesTotal,
	)

	return m
}

// ObserveFlow counts one redirected flow and the rules it triggered.
// It is safe to call on a nil *Metrics.
func (m *Metrics) ObserveFlow(runtime string, bucketRewritten, regionsRewritten bool) {
	if m == nil {
		return
	}
	m.FlowsTotal.WithLabelValues(runtime).Inc()
	if bucketRewritten {
		m.RewritesTotal.WithLabelValues(RuleBucketPath).Inc()
	}
	if regionsRewritten {
		m.RewritesTotal.WithLabelValues(RuleDescribeRegions).Inc()
	}
}

// ObserveRewrite counts one application of a rewrite rule outside a full
// flow observation. It is safe to call on a nil *Metrics.
func (m *Metrics) ObserveRewrite(rule string) {
	if m == nil {
		return
	}
	m.RewritesTotal.WithLabelValues(rule).Inc()
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// adminPrefix is where the gateway mounts its own routes; everything else is
// relayed AWS traffic.
const adminPrefix = "/_relay"

// NormalizePath returns a bounded path label for Prometheus metrics.
func NormalizePath(path string) string {
	if path == adminPrefix || strings.HasPrefix(path, adminPrefix+"/") {
		return adminPrefix
	}
	return "relayed"
}
