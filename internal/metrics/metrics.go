// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// コマースAPIクライアントやサービス層から利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(operation string, statusCode int)
	RecordUpstreamLatency(duration time.Duration)
	RecordCartMutation(operation string)
	RecordOrderPlaced()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	cartMutations    *prometheus.CounterVec
	ordersPlaced     prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_upstream_requests_total",
			Help: "コマースAPI呼び出しの合計数（操作・ステータスコード別）",
		}, []string{"operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shopfront_upstream_latency_seconds",
			Help:    "コマースAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_cart_mutations_total",
			Help: "カート変更操作の合計数（操作別）",
		}, []string{"operation"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopfront_orders_placed_total",
			Help: "確定した注文の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.cartMutations,
		c.ordersPlaced,
		c.httpStatus,
	)

	return c
}

// RecordUpstreamRequest はコマースAPI呼び出しを記録する。
// statusCodeが0の場合はネットワークエラーとして "error" ラベルで記録する。
func (c *Collector) RecordUpstreamRequest(operation string, statusCode int) {
	label := "error"
	if statusCode > 0 {
		label = strconv.Itoa(statusCode)
	}
	c.upstreamRequests.WithLabelValues(operation, label).Inc()
}

// RecordUpstreamLatency はコマースAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordCartMutation はカート変更操作を記録する。
func (c *Collector) RecordCartMutation(operation string) {
	c.cartMutations.WithLabelValues(operation).Inc()
}

// RecordOrderPlaced は注文の確定を記録する。
func (c *Collector) RecordOrderPlaced() {
	c.ordersPlaced.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
