// Package pipeline はスクレイプから通知までの一連の処理を統括する。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shinkan/internal/catalog"
	"github.com/hitoshi/shinkan/internal/metrics"
	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/notify"
	"github.com/hitoshi/shinkan/internal/source"
	"github.com/hitoshi/shinkan/internal/subscriber"
)

// RunSummary は1回のパイプライン実行の結果サマリー。
type RunSummary struct {
	RunID             string    `json:"run_id"`
	ChaptersFound     int       `json:"chapters_found"`
	ChaptersProcessed int       `json:"chapters_processed"`
	NotificationsSent int       `json:"notifications_sent"`
	Skipped           int       `json:"skipped"`
	Failures          int       `json:"failures"`
	Timestamp         time.Time `json:"timestamp"`
}

// Orchestrator はソース取得・抽出・永続化・通知の各段を順に実行する。
// ソース取得の失敗のみが実行全体の失敗となり、
// 候補単位の失敗は記録して次の候補へ進む。
type Orchestrator struct {
	client          source.Client
	extractor       *source.Extractor
	store           *catalog.Store
	resolver        *subscriber.Resolver
	dispatcher      *notify.Dispatcher
	collector       metrics.MetricsCollector
	freshnessWindow time.Duration
}

// NewOrchestrator は新しいOrchestratorを生成する。
func NewOrchestrator(
	client source.Client,
	extractor *source.Extractor,
	store *catalog.Store,
	resolver *subscriber.Resolver,
	dispatcher *notify.Dispatcher,
	collector metrics.MetricsCollector,
	freshnessWindow time.Duration,
) *Orchestrator {
	return &Orchestrator{
		client:          client,
		extractor:       extractor,
		store:           store,
		resolver:        resolver,
		dispatcher:      dispatcher,
		collector:       collector,
		freshnessWindow: freshnessWindow,
	}
}

// Run はパイプラインを1回実行する。
// 同じ新着一覧を複数回処理しても結果は冪等で、
// 2回目以降はChaptersProcessedが0になる。
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	runID := uuid.New().String()
	logger := slog.Default().With("run_id", runID)

	summary := RunSummary{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
	}

	logger.Info("パイプライン実行を開始します")

	fetchStart := time.Now()
	releases, err := o.client.FetchNewReleases(ctx)
	o.collector.RecordScrapeLatency(time.Since(fetchStart))
	if err != nil {
		o.collector.RecordRunFailure(failureReason(err))
		logger.Error("ソースの取得に失敗しました", "error", err)
		return summary, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}

	candidates, skipped := o.extractor.Extract(releases, time.Now().UTC(), o.freshnessWindow)
	summary.ChaptersFound = len(candidates)
	summary.Skipped = len(skipped)
	o.collector.RecordChaptersFound(len(candidates))
	o.collector.RecordExtractionSkips(len(skipped))

	if len(candidates) == 0 {
		logger.Info("新しいチャプター候補はありませんでした",
			"releases", len(releases),
			"skipped", len(skipped))
		o.collector.RecordRunSuccess()
		return summary, nil
	}

	for _, candidate := range candidates {
		processed, sent, err := o.processCandidate(ctx, logger, candidate)
		if err != nil {
			summary.Failures++
			logger.Error("候補の処理に失敗しました",
				"series_title", candidate.SeriesTitle,
				"chapter_number", candidate.ChapterNumber,
				"error", err)
			continue
		}
		if processed {
			summary.ChaptersProcessed++
		}
		summary.NotificationsSent += sent
	}

	o.collector.RecordChaptersProcessed(summary.ChaptersProcessed)
	o.collector.RecordRunSuccess()

	logger.Info("パイプライン実行が完了しました",
		"chapters_found", summary.ChaptersFound,
		"chapters_processed", summary.ChaptersProcessed,
		"notifications_sent", summary.NotificationsSent,
		"skipped", summary.Skipped,
		"failures", summary.Failures)

	return summary, nil
}

// processCandidate は1つの候補をシリーズ確定→チャプター挿入→通知→処理済み化の順に処理する。
// 既存チャプターだった場合は (false, 0, nil) を返す。
func (o *Orchestrator) processCandidate(ctx context.Context, logger *slog.Logger, candidate model.CandidateChapter) (bool, int, error) {
	series, err := o.store.UpsertSeriesByTitle(ctx, candidate)
	if err != nil {
		return false, 0, fmt.Errorf("シリーズの確定に失敗しました: %w", err)
	}

	chapter, inserted, err := o.store.InsertChapterIfAbsent(ctx, series, candidate)
	if err != nil {
		return false, 0, fmt.Errorf("チャプターの挿入に失敗しました: %w", err)
	}
	if !inserted {
		logger.Debug("既存のチャプターのためスキップします",
			"series_id", series.ID,
			"chapter_number", candidate.ChapterNumber)
		return false, 0, nil
	}

	subscribers, err := o.resolver.ActiveSubscribers(ctx, series.ID)
	if err != nil {
		return false, 0, fmt.Errorf("購読者の解決に失敗しました: %w", err)
	}

	sent := 0
	if len(subscribers) > 0 {
		result, err := o.dispatcher.DispatchChapter(ctx, chapter, series, subscribers)
		if err != nil {
			return false, 0, fmt.Errorf("通知の配信に失敗しました: %w", err)
		}
		sent = result.Sent
	}

	if err := o.store.MarkChapterProcessed(ctx, chapter.ID); err != nil {
		return false, 0, fmt.Errorf("チャプターの処理済み化に失敗しました: %w", err)
	}

	if err := o.store.AdvanceSeriesHead(ctx, series.ID, chapter.ChapterNumber, chapter.ReleaseDate); err != nil {
		// ヘッド更新の失敗は通知済みのチャプターを無効にしない
		logger.Warn("シリーズの最新チャプター更新に失敗しました",
			"series_id", series.ID,
			"error", err)
	}

	return true, sent, nil
}

// failureReason はメトリクスのラベルに使う失敗理由を分類する。
func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, model.ErrSourceMisconfigured):
		return "source_misconfigured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
