package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	credentialsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voting_credentials_issued_total",
		Help: "Voting credentials minted and registered.",
	})

	ballotsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ballots_recorded_total",
		Help: "Ballots accepted and recorded.",
	})

	ballotsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballots_rejected_total",
			Help: "Ballot submissions rejected, by reason class.",
		},
		[]string{"reason"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		credentialsIssued,
		ballotsRecorded,
		ballotsRejected,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CredentialIssued increments the issued-credentials counter.
func CredentialIssued() { credentialsIssued.Inc() }

// BallotRecorded increments the accepted-ballots counter.
func BallotRecorded() { ballotsRecorded.Inc() }

// BallotRejected increments the rejected-ballots counter for a reason class
// (validation, state, conflict, not_found).
func BallotRejected(reason string) { ballotsRejected.WithLabelValues(reason).Inc() }

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	rewrite := func(prefix []string, suffix []string) (string, bool) {
		n := len(prefix) + 1 + len(suffix)
		if len(parts) != n {
			return "", false
		}
		for i, p := range prefix {
			if parts[i] != p {
				return "", false
			}
		}
		for i, s := range suffix {
			if parts[len(prefix)+1+i] != s {
				return "", false
			}
		}
		out := append([]string{}, prefix...)
		out = append(out, ":id")
		out = append(out, suffix...)
		return "/" + strings.Join(out, "/"), true
	}
	patterns := []struct {
		prefix []string
		suffix []string
	}{
		{[]string{"v1", "elections"}, nil},
		{[]string{"v1", "elections"}, []string{"credentials"}},
		{[]string{"v1", "credentials"}, nil},
		{[]string{"v1", "admin", "elections"}, nil},
		{[]string{"v1", "admin", "elections"}, []string{"results"}},
		{[]string{"v1", "admin", "elections"}, []string{"publish"}},
		{[]string{"v1", "admin", "elections"}, []string{"pause"}},
		{[]string{"v1", "admin", "elections"}, []string{"resume"}},
		{[]string{"v1", "admin", "elections"}, []string{"close"}},
		{[]string{"v1", "admin", "elections"}, []string{"archive"}},
		{[]string{"v1", "admin", "elections"}, []string{"hide"}},
		{[]string{"v1", "admin", "elections"}, []string{"unhide"}},
		{[]string{"s2s", "v1", "elections"}, nil},
		{[]string{"s2s", "v1", "elections"}, []string{"results"}},
	}
	for _, p := range patterns {
		if out, ok := rewrite(p.prefix, p.suffix); ok {
			return out
		}
	}
	return "/" + strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
