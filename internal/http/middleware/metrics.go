// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic:
//
//	http_requests_total{method,path,status}
//	http_request_duration_seconds{method,path}
//	http_requests_inflight
//	http_request_size_bytes{method,path}     declared request bodies (uploads)
//	http_response_size_bytes{method,path}
//	http_faults_total{stage,class,status}    failures rendered by package faults
//
// path is the registered route (e.g. /api/documents/:id). Requests that
// matched no route share the label UnmatchedPath, so probes for random URLs
// cannot grow the series count.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// UnmatchedPath labels requests that matched no route.
const UnmatchedPath = "<unmatched>"

// sizeBuckets span 200B..10MiB, the default upload cap.
var sizeBuckets = []float64{
	200, 1 << 10, 5 << 10, 25 << 10, 100 << 10,
	500 << 10, 1 << 20, 2 << 20, 5 << 20, 10 << 20,
}

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests."},
		[]string{"method", "path", "status"},
	)

	// No status label, to keep histogram cardinality down.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_requests_inflight", Help: "Current number of in-flight HTTP requests."},
	)

	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "Declared size of HTTP request bodies in bytes.",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)

	httpFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_faults_total",
			Help: "Failure responses rendered by the fault handlers.",
		},
		[]string{"stage", "class", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, httpRespSize, httpFaults)
}

// ObserveFault counts one rendered failure response.
func ObserveFault(stage, class string, status int) {
	httpFaults.WithLabelValues(stage, class, strconv.Itoa(status)).Inc()
}

// FaultCounter exposes http_faults_total for inspection.
func FaultCounter() *prometheus.CounterVec { return httpFaults }

// Metrics instruments every request. Mount /metrics next to it:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = UnmatchedPath
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, path).Observe(float64(n))
		}
		// Size is -1 when nothing was written.
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(n))
		}
	}
}
