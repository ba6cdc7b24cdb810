package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the server
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec
	HTTPRequestSize       *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	FeedQueryDuration   *prometheus.HistogramVec
	FeedsCreatedTotal   prometheus.Counter
	CommentsTotal       prometheus.Counter
	LikesTotal          *prometheus.CounterVec
	UploadsGrantedTotal *prometheus.CounterVec

	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics registry
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		HTTPActiveConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of in-flight HTTP requests",
		}, []string{"method", "path"}),

		HTTPRequestSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request body size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path"}),

		HTTPResponseSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path", "status"}),

		CacheHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}, []string{"cache"}),

		CacheMissesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}, []string{"cache"}),

		FeedQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feed_query_duration_seconds",
			Help:    "Time spent answering feed listing queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),

		FeedsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feeds_created_total",
			Help: "Total feeds created",
		}),

		CommentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "comments_created_total",
			Help: "Total comments created",
		}),

		LikesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "likes_total",
			Help: "Total like operations",
		}, []string{"target", "action"}),

		UploadsGrantedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "uploads_granted_total",
			Help: "Presigned upload URLs issued",
		}, []string{"kind"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total errors by type and endpoint",
		}, []string{"type", "endpoint"}),
	}
}
