package probe

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts probe traffic in a private Prometheus registry so that
// parallel scans (and tests) never share counters.
type Stats struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	rateLimited prometheus.Counter
	errors      *prometheus.CounterVec
	retries     prometheus.Counter
	latency     prometheus.Histogram
}

// StatsSnapshot is the request accounting copied into the report metadata.
type StatsSnapshot struct {
	TotalRequests    int
	RateLimitedCount int
	ErrorCount       int
	RetryCount       int
}

// NewStats creates and registers the probe counters.
func NewStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idprecon_probe_requests_total",
				Help: "HTTP requests sent to the tenant, including retries",
			},
			[]string{"phase"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idprecon_probe_rate_limited_total",
			Help: "Responses with HTTP 429",
		}),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idprecon_probe_errors_total",
				Help: "Probes that ended in a failure after retries",
			},
			[]string{"kind"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idprecon_probe_retries_total",
			Help: "Attempts repeated after a transient failure or 429",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "idprecon_probe_duration_seconds",
			Help:    "Round-trip time of single attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	s.registry.MustRegister(s.requests, s.rateLimited, s.errors, s.retries, s.latency)
	return s
}

func (s *Stats) observeAttempt(phase int, elapsed time.Duration) {
	s.requests.WithLabelValues(strconv.Itoa(phase)).Inc()
	s.latency.Observe(elapsed.Seconds())
}

func (s *Stats) observeRateLimited() {
	s.rateLimited.Inc()
}

func (s *Stats) observeRetry() {
	s.retries.Inc()
}

func (s *Stats) observeFailure(kind FailureKind) {
	s.errors.WithLabelValues(string(kind)).Inc()
}

// Registry exposes the underlying registry, e.g. for textfile export.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// WriteTextfile writes the counters in the node_exporter textfile format.
func (s *Stats) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, s.registry)
}

// Snapshot sums the counters. Gather errors yield a zero snapshot.
func (s *Stats) Snapshot() StatsSnapshot {
	families, err := s.registry.Gather()
	if err != nil {
		return StatsSnapshot{}
	}
	var snap StatsSnapshot
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		switch mf.GetName() {
		case "idprecon_probe_requests_total":
			snap.TotalRequests = int(total)
		case "idprecon_probe_rate_limited_total":
			snap.RateLimitedCount = int(total)
		case "idprecon_probe_errors_total":
			snap.ErrorCount = int(total)
		case "idprecon_probe_retries_total":
			snap.RetryCount = int(total)
		}
	}
	return snap
}
