// Package metrics exposes prometheus counters for the transport, the
// refresh coordinator and the login flows. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "osonify_auth"

// Refresh and login outcomes.
const (
	RefreshSuccess = "success"
	RefreshReused  = "reused"
	RefreshFailure = "failure"

	LoginSuccess = "success"
	LoginFailure = "failure"
)

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	logins          *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend requests by method and status code (0 for network failures).",
		}, []string{"method", "status"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_refresh_duration_seconds",
			Help:      "Duration of refresh endpoint calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by flow and outcome.",
		}, []string{"flow", "outcome"}),
	}
	m.registry.MustRegister(m.requests, m.refreshes, m.refreshDuration, m.logins)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	if outcome != RefreshReused {
		m.refreshDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveLogin(flow string, err error) {
	if m == nil {
		return
	}
	outcome := LoginSuccess
	if err != nil {
		outcome = LoginFailure
	}
	m.logins.WithLabelValues(flow, outcome).Inc()
}

// RequestCount returns the counter value for method and status.
func (m *Metrics) RequestCount(method string, status int) float64 {
	return counterValue(m, func() prometheus.Counter {
		return m.requests.WithLabelValues(method, strconv.Itoa(status))
	})
}

// RefreshCount returns the counter value for outcome.
func (m *Metrics) RefreshCount(outcome string) float64 {
	return counterValue(m, func() prometheus.Counter {
		return m.refreshes.WithLabelValues(outcome)
	})
}

// LoginCount returns the counter value for flow and outcome.
func (m *Metrics) LoginCount(flow, outcome string) float64 {
	return counterValue(m, func() prometheus.Counter {
		return m.logins.WithLabelValues(flow, outcome)
	})
}
