// Package scrape はスクレイプパイプラインの定期実行を提供する。
// スケジューラと日次の修復パス・クリーンアップの起動を含む。
package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/shinkan/internal/pipeline"
)

// PipelineRunner はスクレイプパイプラインの実行インターフェース。
type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.RunSummary, error)
}

// RepairRunner は修復パスの実行インターフェース。
type RepairRunner interface {
	Run(ctx context.Context) (pipeline.RepairSummary, error)
}

// MaintenanceJob は日次メンテナンスで実行する付随ジョブ。
type MaintenanceJob interface {
	Run(ctx context.Context) error
}

// Scheduler はパイプラインの定期実行と日次メンテナンスを統括する。
// スクレイプはintervalごと、修復パスとクリーンアップは日次で実行する。
type Scheduler struct {
	runner          PipelineRunner
	repairer        RepairRunner
	maintenance     []MaintenanceJob
	logger          *slog.Logger
	interval        time.Duration
	repairInterval  time.Duration
	freshnessWindow time.Duration
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト5分、repairIntervalが0以下の場合は24時間を使用する。
func NewScheduler(
	runner PipelineRunner,
	repairer RepairRunner,
	logger *slog.Logger,
	interval time.Duration,
	freshnessWindow time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		runner:          runner,
		repairer:        repairer,
		logger:          logger,
		interval:        interval,
		repairInterval:  24 * time.Hour,
		freshnessWindow: freshnessWindow,
	}
}

// SetRepairInterval は修復パス・メンテナンスの実行間隔を上書きする。
// 0以下の場合は無視してデフォルトの24時間を維持する。
func (s *Scheduler) SetRepairInterval(d time.Duration) {
	if d > 0 {
		s.repairInterval = d
	}
}

// AddMaintenanceJob は日次サイクルに付随ジョブを追加する。
func (s *Scheduler) AddMaintenanceJob(job MaintenanceJob) {
	s.maintenance = append(s.maintenance, job)
}

// Start はスケジューラを起動し、コンテキストがキャンセルされるまで実行を継続する。
// 起動直後に1回スクレイプを実行する。
func (s *Scheduler) Start(ctx context.Context) {
	// 実行間隔が鮮度窓以上だとリリースを取りこぼす
	if s.freshnessWindow > 0 && s.interval >= s.freshnessWindow {
		s.logger.Warn("スクレイプ間隔が鮮度窓以上のためリリースを取りこぼす可能性があります",
			slog.Duration("interval", s.interval),
			slog.Duration("freshness_window", s.freshnessWindow),
		)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	repairTicker := time.NewTicker(s.repairInterval)
	defer repairTicker.Stop()

	s.logger.Info("スクレイプスケジューラを開始しました",
		slog.Duration("interval", s.interval),
		slog.Duration("repair_interval", s.repairInterval),
	)

	// 起動直後に1回実行
	s.runScrape(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スクレイプスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runScrape(ctx)
		case <-repairTicker.C:
			s.runMaintenance(ctx)
		}
	}
}

// runScrape はパイプラインを1回実行し、結果をログに残す。
func (s *Scheduler) runScrape(ctx context.Context) {
	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("スクレイプサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("スクレイプサイクルが完了しました",
		slog.String("run_id", summary.RunID),
		slog.Int("chapters_found", summary.ChaptersFound),
		slog.Int("chapters_processed", summary.ChaptersProcessed),
		slog.Int("notifications_sent", summary.NotificationsSent),
	)
}

// runMaintenance は修復パスと付随ジョブを順に実行する。
func (s *Scheduler) runMaintenance(ctx context.Context) {
	summary, err := s.repairer.Run(ctx)
	if err != nil {
		s.logger.Error("修復パスの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	} else if summary.ChaptersExamined > 0 {
		s.logger.Info("修復パスが完了しました",
			slog.Int("repaired", summary.ChaptersRepaired),
			slog.Int("notifications_sent", summary.NotificationsSent),
		)
	}

	for _, job := range s.maintenance {
		if err := job.Run(ctx); err != nil {
			s.logger.Error("メンテナンスジョブの実行に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}
}
