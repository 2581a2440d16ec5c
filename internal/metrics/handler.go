package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// SetupMetricsRoute は/metricsエンドポイント用のハンドラーを構築する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
