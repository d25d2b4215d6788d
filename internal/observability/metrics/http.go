package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics instruments the API. Routes are labelled by their gin
// template so deposit ids never become label values.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewHTTPMetrics(registerer prometheus.Registerer, cfg Config) (*HTTPMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "deposit_http_requests_total",
			Help:        "HTTP requests by method, route template and status code.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "deposit_http_request_duration_seconds",
			Help:        "HTTP request latency by method and route template.",
			Buckets:     []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: labels,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "deposit_http_requests_in_flight",
			Help:        "Requests currently being served.",
			ConstLabels: labels,
		}),
	}

	if err := registerOrReuse(registerer, &m.requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(registerer, &m.latency); err != nil {
		return nil, err
	}
	if err := registerOrReuse(registerer, &m.inFlight); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers *c, or swaps in the collector already holding
// the same descriptor.
func registerOrReuse[C prometheus.Collector](registerer prometheus.Registerer, c *C) error {
	err := registerer.Register(*c)
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			*c = existing
			return nil
		}
	}
	return err
}

func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.inFlight.Inc()
		start := time.Now()
		c.Next()
		m.inFlight.Dec()
		m.observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func (m *HTTPMetrics) observe(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
