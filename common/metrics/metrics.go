package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	upstream    *prometheus.CounterVec
	cache       *prometheus.CounterVec
}

// New returns Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "event_api",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})
	m.reqDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "event_api",
		Name:      "http_request_duration_seconds",
		Help:      "Time spent serving HTTP requests",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"route"})
	m.upstream = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "event_api",
		Name:      "upstream_requests_total",
		Help:      "Calls to external services by service, operation and status",
	}, []string{"service", "op", "status"})
	m.cache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "event_api",
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups by route and result",
	}, []string{"route", "result"})

	m.registry.MustRegister(
		m.requests, m.reqDuration, m.upstream, m.cache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.reqDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Upstream counts one call to an external service.
func (m *Metrics) Upstream(service, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.upstream.WithLabelValues(service, op, status).Inc()
}

// CacheLookup counts a hit or miss on route's cache.
func (m *Metrics) CacheLookup(route string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(route, result).Inc()
}
