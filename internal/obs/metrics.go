package obs

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
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
)

// SSO metrics
var (
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sso_tokens_issued_total",
			Help: "Identity assertions issued, by result.",
		},
		[]string{"result"},
	)

	logins = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sso_logins_total",
		Help: "Accepted login form submissions.",
	})

	ssoBuild = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sso_build_info",
			Help: "Always 1; labels identify the running SSO issuer build.",
		},
		[]string{"version", "commit", "goversion"},
	)
)

var initOnce sync.Once

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, tokensIssued, logins, ssoBuild)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuild publishes the running version. Call after Init.
func SetBuild(version, commit string) {
	ssoBuild.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

// TokenIssued counts an issuance attempt; result is "ok" or an error class.
func TokenIssued(result string) {
	tokensIssued.WithLabelValues(result).Inc()
}

// LoginAccepted counts a stored login.
func LoginAccepted() {
	logins.Inc()
}

// Instrument records in-flight, total and latency per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath bounds label cardinality: static assets collapse to one label
// and unknown paths to "other".
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	if strings.HasPrefix(raw, "/static/") {
		return "/static/*"
	}
	switch raw {
	case "/", "/login", "/welcome", "/logout", "/healthz", "/readyz", "/metrics":
		return raw
	}
	return "other"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
