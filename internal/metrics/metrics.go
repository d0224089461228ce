package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"labattend/internal/attendance"
)

// Collector holds the service's Prometheus instruments on its own registry.
type Collector struct {
	registry            *prometheus.Registry
	checkins            prometheus.Counter
	checkouts           prometheus.Counter
	rejections          *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	persistenceFailures prometheus.Counter
	summaries           *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// New registers all collectors plus the Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		checkins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labattend_checkins_total",
			Help: "Successful check-ins.",
		}),
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labattend_checkouts_total",
			Help: "Successful check-outs.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labattend_rejections_total",
			Help: "Check-ins and check-outs rejected, by reason.",
		}, []string{"reason"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labattend_active_sessions",
			Help: "Open sessions as of the last read of the record set.",
		}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labattend_persistence_failures_total",
			Help: "Record store read or write failures.",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labattend_summary_requests_total",
			Help: "Summary generations, by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	c.registry.MustRegister(
		c.checkins, c.checkouts, c.rejections, c.activeSessions,
		c.persistenceFailures, c.summaries, c.requestDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CheckedIn counts a successful check-in.
func (c *Collector) CheckedIn() { c.checkins.Inc() }

// CheckedOut counts a successful check-out.
func (c *Collector) CheckedOut() { c.checkouts.Inc() }

// Rejected records a failed transition under its error code.
func (c *Collector) Rejected(err error) {
	if errors.Is(err, attendance.ErrPersistence) {
		c.persistenceFailures.Inc()
	}
	c.rejections.WithLabelValues(attendance.Code(err)).Inc()
}

// PersistenceFailed counts a store failure outside a transition, e.g. a dashboard read.
func (c *Collector) PersistenceFailed() { c.persistenceFailures.Inc() }

// SetActive updates the open-sessions gauge.
func (c *Collector) SetActive(n int) { c.activeSessions.Set(float64(n)) }

// Summary counts one summary generation with outcome "ok" or "fallback".
func (c *Collector) Summary(outcome string) { c.summaries.WithLabelValues(outcome).Inc() }

// GinMiddleware observes request latency per route.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		c.requestDuration.
			WithLabelValues(ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
