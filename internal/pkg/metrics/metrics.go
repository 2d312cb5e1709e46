package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// イベント操作の総数（operation, result: success/not_found/invalid/error）
	EventOperationsTotal *prometheus.CounterVec

	// イベントキャッシュの参照結果（target: all/one, result: hit/miss/error）
	EventCacheRequestsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release/extend, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		EventOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_operations_total",
				Help: "Total number of event service operations",
			},
			[]string{"operation", "result"},
		),
		EventCacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_cache_requests_total",
				Help: "Total number of event cache lookups",
			},
			[]string{"target", "result"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventOperationsTotal,
		m.EventCacheRequestsTotal,
		m.DistributedLockDuration,
	)

	return m
}

// ObserveOperation はイベント操作の結果を記録する（nil の場合は何もしない）
func (m *Metrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.EventOperationsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveCache はキャッシュの参照結果を記録する（nil の場合は何もしない）
func (m *Metrics) ObserveCache(target, result string) {
	if m == nil {
		return
	}
	m.EventCacheRequestsTotal.WithLabelValues(target, result).Inc()
}

// ObserveLock は分散ロックの操作時間を記録する（nil の場合は何もしない）
func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
