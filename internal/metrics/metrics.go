// Package metrics holds the Prometheus collectors exported on /metrics.
//
// Collectors are registered on an injected registry so tests can use a
// fresh prometheus.NewRegistry() each. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mindflow"

// Chat stream outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
	OutcomeCanceled  = "canceled"
)

type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	chatStreams  *prometheus.CounterVec
	creditsSpent prometheus.Counter
	ghostNotes   prometheus.Counter
	rateLimited  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		chatStreams: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_streams_total",
			Help:      "Chat relay streams by outcome.",
		}, []string{"outcome"}),
		creditsSpent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_credits_spent_total",
			Help:      "Credits deducted by chat requests.",
		}),
		ghostNotes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ghost_notes_created_total",
			Help:      "Placeholder notes created for unresolved wiki-links.",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_rate_limited_total",
			Help:      "Chat requests rejected by the per-user rate limit.",
		}),
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ChatStream(outcome string) {
	if m == nil {
		return
	}
	m.chatStreams.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CreditSpent() {
	if m == nil {
		return
	}
	m.creditsSpent.Inc()
}

func (m *Metrics) GhostNotesCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ghostNotes.Add(float64(n))
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		status = 200
	}
	return strconv.Itoa(status)
}
