package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geowire",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geowire",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Codec metrics
	CodecOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "codec",
		Name:      "operations_total",
		Help:      "Total encode and decode calls by codec and outcome",
	}, []string{"codec", "op", "result"})

	CodecBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geowire",
		Subsystem: "codec",
		Name:      "bytes",
		Help:      "Size of encoded geometries read or written",
		Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
	}, []string{"codec", "op"})

	// Feature event metrics
	FeatureEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Total feature events published",
	}, []string{"kind"})

	FeatureEventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "events",
		Name:      "consumed_total",
		Help:      "Total feature events consumed",
	}, []string{"kind", "result"})

	TransformDisplacement = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geowire",
		Subsystem: "transform",
		Name:      "displacement_meters",
		Help:      "Largest coordinate shift applied by a GCJ-02 transform",
		Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geowire",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geowire",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geowire",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geowire",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "db",
		Name:      "pool_empty_acquires_total",
		Help:      "Total times a connection had to be established when acquiring from pool",
	})

	DBPoolWaitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geowire",
		Subsystem: "db",
		Name:      "pool_wait_count_total",
		Help:      "Total times waiting for a connection from pool",
	})

	DBPoolWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geowire",
		Subsystem: "db",
		Name:      "pool_wait_duration_seconds",
		Help:      "Mean time to acquire a database connection per sampling interval",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

// poolTotals holds the cumulative pool counters seen on the previous sample.
var poolTotals struct {
	sync.Mutex
	newConns, emptyAcquires, acquires int64
	acquireDuration                   time.Duration
}

// counterDelta is how far a cumulative pool counter moved since prev. A
// smaller value means the pool was recreated, so all of it is new.
func counterDelta(cur, prev int64) int64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

// ObserveCodec records one codec call. err decides the result label.
func ObserveCodec(codec, op string, size int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CodecOperations.WithLabelValues(codec, op, result).Inc()
	if err == nil {
		CodecBytes.WithLabelValues(codec, op).Observe(float64(size))
	}
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
// The pool's cumulative counts are turned into counter increments since the
// previous call.
func UpdateDBPoolMetrics(stat any) {
	// satisfied by *pgxpool.Stat without importing pgx here
	type poolConns interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}
	type poolAcquires interface {
		AcquireCount() int64
		AcquireDuration() time.Duration
		EmptyAcquireCount() int64
	}
	type poolNewConns interface {
		NewConnsCount() int64
	}

	if s, ok := stat.(poolConns); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}

	poolTotals.Lock()
	defer poolTotals.Unlock()

	if s, ok := stat.(poolNewConns); ok {
		cur := s.NewConnsCount()
		DBPoolEmptyAcquires.Add(float64(counterDelta(cur, poolTotals.newConns)))
		poolTotals.newConns = cur
	}
	if s, ok := stat.(poolAcquires); ok {
		empty := s.EmptyAcquireCount()
		DBPoolWaitCount.Add(float64(counterDelta(empty, poolTotals.emptyAcquires)))
		poolTotals.emptyAcquires = empty

		acquires, dur := s.AcquireCount(), s.AcquireDuration()
		n := counterDelta(acquires, poolTotals.acquires)
		d := dur - poolTotals.acquireDuration
		if acquires < poolTotals.acquires || d < 0 {
			d = dur
		}
		if n > 0 {
			DBPoolWaitDuration.Observe(d.Seconds() / float64(n))
		}
		poolTotals.acquires, poolTotals.acquireDuration = acquires, dur
	}
}
