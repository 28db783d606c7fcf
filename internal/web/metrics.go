package web

import (
	"net/http"
	"strconv"
	"time"

	"todo-backend/internal/todo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	reg         *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rateLimited prometheus.Counter
}

func newMetrics(store *todo.Store) *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todo_requests_total",
			Help: "Requests handled, by operation and HTTP status (or RPC error code).",
		}, []string{"op", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todo_request_duration_seconds",
			Help:    "Request latency by operation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todo_rate_limited_total",
			Help: "Requests rejected by the per-caller rate limiter.",
		}),
	}
	callers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "todo_callers",
		Help: "Callers that own an item tree.",
	}, func() float64 { return float64(store.Callers()) })

	m.reg.MustRegister(m.requests, m.duration, m.rateLimited, callers)
	return m
}

func (m *metrics) observe(op string, code int, d time.Duration) {
	m.requests.WithLabelValues(op, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
