package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// enrollment API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	admissionsTotal *prometheus.CounterVec
	promotionsTotal prometheus.Counter
	waitlistDepth   *prometheus.GaugeVec
	withdrawals     prometheus.Counter
	queueLeaves     prometheus.Counter
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	admissionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_admissions_total",
		Help: "Admissions by capacity gate outcome",
	}, []string{"decision"})

	promotionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_promotions_total",
		Help: "Waiting-list entries promoted to active",
	})

	waitlistDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "waitlist_depth",
		Help: "Current waiting-list length per group",
	}, []string{"group_id"})

	withdrawals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_withdrawals_total",
		Help: "Enrollments withdrawn",
	})

	queueLeaves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_leaves_total",
		Help: "Voluntary waiting-list departures",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, admissionsTotal, promotionsTotal, waitlistDepth, withdrawals, queueLeaves,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		admissionsTotal: admissionsTotal,
		promotionsTotal: promotionsTotal,
		waitlistDepth:   waitlistDepth,
		withdrawals:     withdrawals,
		queueLeaves:     queueLeaves,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler returns the Prometheus scrape handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records duration and count for a handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordAdmission counts a capacity-gate outcome.
func (s *MetricsService) RecordAdmission(decision string) {
	s.admissionsTotal.WithLabelValues(decision).Inc()
}

// RecordPromotion counts a waiting-list promotion.
func (s *MetricsService) RecordPromotion() {
	s.promotionsTotal.Inc()
}

// SetWaitlistDepth records the observed waiting-list length of a group.
func (s *MetricsService) SetWaitlistDepth(groupID string, depth int) {
	s.waitlistDepth.WithLabelValues(groupID).Set(float64(depth))
}

// RecordWithdrawal counts a withdrawal.
func (s *MetricsService) RecordWithdrawal() {
	s.withdrawals.Inc()
}

// RecordQueueLeave counts a voluntary waiting-list departure.
func (s *MetricsService) RecordQueueLeave() {
	s.queueLeaves.Inc()
}

// RecordCacheOperation tracks a cache lookup and refreshes the ratio.
func (s *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	s.cacheLatency.Observe(duration.Seconds())
	if hit {
		s.cacheHits.Inc()
		atomic.AddUint64(&s.cacheHitCount, 1)
	} else {
		s.cacheMisses.Inc()
		atomic.AddUint64(&s.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&s.cacheHitCount)
	misses := atomic.LoadUint64(&s.cacheMissCount)
	if total := hits + misses; total > 0 {
		s.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite records cache set latency.
func (s *MetricsService) ObserveCacheWrite(duration time.Duration) {
	s.cacheWrite.Observe(duration.Seconds())
}
