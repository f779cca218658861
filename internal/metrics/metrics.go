package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbi_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartbi_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// 上传
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbi_uploads_total",
			Help: "Total number of uploads by result",
		},
		[]string{"result"},
	)

	UploadRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartbi_upload_rows_total",
			Help: "Total number of rows imported",
		},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartbi_upload_duration_seconds",
			Help:    "Upload parse and commit duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// 重算
	RecalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbi_recalculations_total",
			Help: "Total number of recalculations by result",
		},
		[]string{"result"},
	)

	RecalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartbi_recalculation_duration_seconds",
			Help:    "Recalculation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// 会话
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartbi_active_sessions",
			Help: "Current number of sessions held in memory",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartbi_sessions_evicted_total",
			Help: "Total number of idle sessions evicted",
		},
	)

	StaleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartbi_stale_requests_total",
			Help: "Requests rejected because a newer request superseded them",
		},
		[]string{"channel"},
	)

	// 派生视图缓存
	ViewCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartbi_view_cache_hits_total",
			Help: "Total number of memoized view hits",
		},
	)

	ViewCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartbi_view_cache_misses_total",
			Help: "Total number of memoized view misses",
		},
	)
)

// RecordAPIRequest 记录一次 API 请求
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordUpload 记录一次上传
func RecordUpload(rows int, duration time.Duration, err error) {
	UploadDuration.Observe(duration.Seconds())
	if err != nil {
		UploadsTotal.WithLabelValues("error").Inc()
		return
	}
	UploadsTotal.WithLabelValues("success").Inc()
	UploadRows.Add(float64(rows))
}

// RecordRecalculation 记录一次重算
func RecordRecalculation(duration time.Duration, err error) {
	RecalculationDuration.Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "error"
	}
	RecalculationsTotal.WithLabelValues(result).Inc()
}

// RecordViewCache 记录派生视图缓存命中
func RecordViewCache(hit bool) {
	if hit {
		ViewCacheHits.Inc()
	} else {
		ViewCacheMisses.Inc()
	}
}
