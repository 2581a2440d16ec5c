// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/shinkan/internal/catalog"
	"github.com/hitoshi/shinkan/internal/config"
	"github.com/hitoshi/shinkan/internal/database"
	"github.com/hitoshi/shinkan/internal/handler"
	"github.com/hitoshi/shinkan/internal/logger"
	"github.com/hitoshi/shinkan/internal/metrics"
	"github.com/hitoshi/shinkan/internal/middleware"
	"github.com/hitoshi/shinkan/internal/notify"
	"github.com/hitoshi/shinkan/internal/pipeline"
	"github.com/hitoshi/shinkan/internal/repository"
	"github.com/hitoshi/shinkan/internal/security"
	"github.com/hitoshi/shinkan/internal/source"
	"github.com/hitoshi/shinkan/internal/subscriber"
	"github.com/hitoshi/shinkan/internal/worker/cleanup"
	"github.com/hitoshi/shinkan/internal/worker/scrape"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pipelineComponents はスクレイプパイプラインの構成要素一式。
// serveモードとworkerモードの両方で同じワイヤリングを使う。
type pipelineComponents struct {
	orchestrator *pipeline.Orchestrator
	repairer     *pipeline.Repairer
	client       source.Client
	channels     []notify.DeliveryChannel
	registry     *prometheus.Registry
	subRepo      *repository.PostgresSubscriptionRepo
}

// buildPipeline はDB接続と設定からパイプライン一式をワイヤリングする。
func buildPipeline(db *sql.DB, cfg *config.Config) (*pipelineComponents, error) {
	// 1. リポジトリの初期化
	seriesRepo := repository.NewPostgresSeriesRepo(db)
	chapterRepo := repository.NewPostgresChapterRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	notifRepo := repository.NewPostgresNotificationRepo(db)

	// 2. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 3. ソースクライアントと抽出器
	// SOURCE_FEED_URLが設定されている場合はRSS/Atomフィードをソースに使う
	var client source.Client
	if cfg.SourceFeedURL != "" {
		client = source.NewRSSAdapter(source.RSSAdapterConfig{
			FeedURL:      cfg.SourceFeedURL,
			Timeout:      cfg.SourceTimeout,
			RequestDelay: cfg.SourceRequestDelay,
		}, ssrfGuard)
	} else {
		client = source.NewComickScraper(source.ComickScraperConfig{
			BaseURL:       cfg.SourceBaseURL,
			SeriesListURL: cfg.SourceSeriesListURL,
			Timeout:       cfg.SourceTimeout,
			RequestDelay:  cfg.SourceRequestDelay,
			MaxBodySize:   cfg.SourceMaxBodySize,
		}, ssrfGuard)
	}
	extractor := source.NewExtractor(sanitizer)

	// 4. 配信チャネル
	var channels []notify.DeliveryChannel
	if cfg.ResendAPIKey != "" {
		emailCh, err := notify.NewEmailChannel(notify.EmailChannelConfig{
			APIKey:    cfg.ResendAPIKey,
			FromEmail: cfg.FromEmail,
			BaseURL:   cfg.BaseURL,
			Timeout:   10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("email channel initialization failed: %w", err)
		}
		channels = append(channels, emailCh)
	} else {
		slog.Warn("RESEND_API_KEYが未設定のためメールチャネルを無効化します")
	}
	channels = append(channels, notify.NewDiscordChannel(notify.DiscordChannelConfig{
		BaseURL: cfg.BaseURL,
		Timeout: 10 * time.Second,
	}, ssrfGuard))

	// 5. パイプラインの組み立て
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	store := catalog.NewStore(seriesRepo, chapterRepo)
	resolver := subscriber.NewResolver(subRepo)
	dispatcher := notify.NewDispatcher(channels, notifRepo)
	dispatcher.SetMetrics(collector)

	orchestrator := pipeline.NewOrchestrator(
		client, extractor, store, resolver, dispatcher,
		collector, cfg.FreshnessWindow,
	)
	repairer := pipeline.NewRepairer(chapterRepo, resolver, dispatcher)

	return &pipelineComponents{
		orchestrator: orchestrator,
		repairer:     repairer,
		client:       client,
		channels:     channels,
		registry:     registry,
		subRepo:      subRepo,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. パイプラインのワイヤリング
	components, err := buildPipeline(db, cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	// 3. ルーターの構築
	rlConfig := middleware.DefaultRateLimiterConfig()
	rlConfig.UnsubscribeRate = rate.Limit(float64(cfg.RateLimitUnsubscribe) / 60.0)
	rlConfig.UnsubscribeBurst = cfg.RateLimitUnsubscribe
	rateLimiter := middleware.NewRateLimiter(rlConfig)
	defer rateLimiter.Stop()

	healthChannels := make(map[string]handler.ConnectivityTester, len(components.channels))
	for _, ch := range components.channels {
		healthChannels[string(ch.Kind())] = ch
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		Runner:      components.orchestrator,
		CronSecret:  cfg.CronSecret,
		DB:          db,
		Source:      components.client,
		Channels:    healthChannels,
		Deactivator: components.subRepo,
		Gatherer:    components.registry,
	})

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // スクレイプ実行はバッチ休止を含むため長め
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、スクレイプスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. パイプラインのワイヤリング
	components, err := buildPipeline(db, cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	// 3. スケジューラの構築
	scheduler := scrape.NewScheduler(
		components.orchestrator,
		components.repairer,
		slog.Default(),
		cfg.ScrapeInterval,
		cfg.FreshnessWindow,
	)

	scheduler.SetRepairInterval(cfg.RepairInterval)

	// 通知台帳のクリーンアップを日次メンテナンスに追加
	scheduler.AddMaintenanceJob(cleanup.NewCleanupJob(db, slog.Default()))

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("scrape_interval", cfg.ScrapeInterval),
		slog.Duration("freshness_window", cfg.FreshnessWindow),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
