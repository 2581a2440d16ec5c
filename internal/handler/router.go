package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shinkan/internal/metrics"
	"github.com/hitoshi/shinkan/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	// cron起動
	Runner     PipelineRunner
	CronSecret string

	// ヘルスチェック
	DB       DBPinger
	Source   ConnectivityTester
	Channels map[string]ConnectivityTester

	// 購読解除
	Deactivator SubscriptionDeactivator

	// メトリクス
	Gatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	LoggingMiddleware → RecoveryMiddleware → SecurityHeadersMiddleware
//
// 公開エンドポイントの/unsubscribeにはIP単位のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	cronHandler := NewCronHandler(deps.Runner, deps.CronSecret)
	healthHandler := NewHealthHandler(deps.DB, deps.Source, deps.Channels)
	unsubHandler := NewUnsubscribeHandler(deps.Deactivator)

	// 外部cron連携（Bearerトークン保護）
	r.Route("/internal/cron", func(r chi.Router) {
		r.Post("/scrape", cronHandler.HandleScrape)
		// 一部のcronサービスはGETしか発行できない
		r.Get("/scrape", cronHandler.HandleScrape)
	})

	r.Get("/health", healthHandler.HandleHealth)

	// 公開エンドポイント（通知メールのリンクから遷移）
	r.With(deps.RateLimiter.UnsubscribeMiddleware()).Get("/unsubscribe", unsubHandler.HandleUnsubscribe)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
