// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインやワーカーから利用する。
type MetricsCollector interface {
	RecordRunSuccess()
	RecordRunFailure(reason string)
	RecordScrapeLatency(duration time.Duration)
	RecordChaptersFound(count int)
	RecordChaptersProcessed(count int)
	RecordExtractionSkips(count int)
	RecordNotificationsSent(channel string, count int)
	RecordNotificationsFailed(channel string, count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	runSuccess          prometheus.Counter
	runFail             *prometheus.CounterVec
	scrapeLatency       prometheus.Histogram
	chaptersFound       prometheus.Counter
	chaptersProcessed   prometheus.Counter
	extractionSkips     prometheus.Counter
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shinkan_pipeline_run_success_total",
			Help: "パイプライン実行成功の合計数",
		}),
		runFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_pipeline_run_fail_total",
			Help: "パイプライン実行失敗の合計数（理由別）",
		}, []string{"reason"}),
		scrapeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shinkan_scrape_latency_seconds",
			Help:    "ソース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		chaptersFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shinkan_chapters_found_total",
			Help: "抽出された候補チャプターの合計数",
		}),
		chaptersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shinkan_chapters_processed_total",
			Help: "新規処理されたチャプターの合計数",
		}),
		extractionSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shinkan_extraction_skips_total",
			Help: "候補化できず除外されたエントリの合計数",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_notifications_sent_total",
			Help: "送信成功した通知の合計数（チャネル別）",
		}, []string{"channel"}),
		notificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shinkan_notifications_failed_total",
			Help: "送信失敗した通知の合計数（チャネル別）",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		c.runSuccess,
		c.runFail,
		c.scrapeLatency,
		c.chaptersFound,
		c.chaptersProcessed,
		c.extractionSkips,
		c.notificationsSent,
		c.notificationsFailed,
	)

	return c
}

// RecordRunSuccess はパイプライン実行成功を記録する。
func (c *Collector) RecordRunSuccess() {
	c.runSuccess.Inc()
}

// RecordRunFailure はパイプライン実行失敗を理由付きで記録する。
func (c *Collector) RecordRunFailure(reason string) {
	c.runFail.WithLabelValues(reason).Inc()
}

// RecordScrapeLatency はソース取得のレイテンシを記録する。
func (c *Collector) RecordScrapeLatency(duration time.Duration) {
	c.scrapeLatency.Observe(duration.Seconds())
}

// RecordChaptersFound は抽出された候補チャプター数を記録する。
func (c *Collector) RecordChaptersFound(count int) {
	c.chaptersFound.Add(float64(count))
}

// RecordChaptersProcessed は新規処理されたチャプター数を記録する。
func (c *Collector) RecordChaptersProcessed(count int) {
	c.chaptersProcessed.Add(float64(count))
}

// RecordExtractionSkips は除外されたエントリ数を記録する。
func (c *Collector) RecordExtractionSkips(count int) {
	c.extractionSkips.Add(float64(count))
}

// RecordNotificationsSent は送信成功した通知数をチャネル別に記録する。
func (c *Collector) RecordNotificationsSent(channel string, count int) {
	c.notificationsSent.WithLabelValues(channel).Add(float64(count))
}

// RecordNotificationsFailed は送信失敗した通知数をチャネル別に記録する。
func (c *Collector) RecordNotificationsFailed(channel string, count int) {
	c.notificationsFailed.WithLabelValues(channel).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
