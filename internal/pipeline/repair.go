package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/notify"
	"github.com/hitoshi/shinkan/internal/repository"
	"github.com/hitoshi/shinkan/internal/subscriber"
)

// defaultRepairLimit は1回の修復パスで処理する未処理チャプターの上限。
const defaultRepairLimit = 50

// RepairSummary は1回の修復パスの結果サマリー。
type RepairSummary struct {
	ChaptersExamined  int `json:"chapters_examined"`
	ChaptersRepaired  int `json:"chapters_repaired"`
	NotificationsSent int `json:"notifications_sent"`
	AlreadySent       int `json:"already_sent"`
	Failures          int `json:"failures"`
}

// Repairer は通知途中のクラッシュ等でis_processed=falseのまま残った
// チャプターを検出し、通知台帳を参照して未送信分のみ再配信する。
type Repairer struct {
	chapterRepo repository.ChapterRepository
	resolver    *subscriber.Resolver
	dispatcher  *notify.Dispatcher
	limit       int
}

// NewRepairer は新しいRepairerを生成する。
func NewRepairer(chapterRepo repository.ChapterRepository, resolver *subscriber.Resolver, dispatcher *notify.Dispatcher) *Repairer {
	return &Repairer{
		chapterRepo: chapterRepo,
		resolver:    resolver,
		dispatcher:  dispatcher,
		limit:       defaultRepairLimit,
	}
}

// Run は修復パスを1回実行する。
// チャプター単位の失敗は記録して次へ進み、そのチャプターは
// is_processed=falseのまま残して次回の修復対象とする。
func (r *Repairer) Run(ctx context.Context) (RepairSummary, error) {
	var summary RepairSummary

	chapters, err := r.chapterRepo.ListUnprocessed(ctx, r.limit)
	if err != nil {
		return summary, fmt.Errorf("未処理チャプターの取得に失敗しました: %w", err)
	}
	summary.ChaptersExamined = len(chapters)

	if len(chapters) == 0 {
		slog.Debug("修復対象のチャプターはありませんでした")
		return summary, nil
	}

	slog.Info("修復パスを開始します", "chapters", len(chapters))

	for _, chapter := range chapters {
		if err := r.repairChapter(ctx, chapter, &summary); err != nil {
			summary.Failures++
			slog.Error("チャプターの修復に失敗しました",
				"chapter_id", chapter.ID,
				"series_id", chapter.SeriesID,
				"error", err)
		}
	}

	slog.Info("修復パスが完了しました",
		"examined", summary.ChaptersExamined,
		"repaired", summary.ChaptersRepaired,
		"notifications_sent", summary.NotificationsSent,
		"already_sent", summary.AlreadySent,
		"failures", summary.Failures)

	return summary, nil
}

func (r *Repairer) repairChapter(ctx context.Context, chapter *model.Chapter, summary *RepairSummary) error {
	series, err := r.chapterRepo.FindSeriesByID(ctx, chapter.SeriesID)
	if err != nil {
		return fmt.Errorf("シリーズの取得に失敗しました: %w", err)
	}
	if series == nil {
		// シリーズだけ消えたチャプターは再配信できない。処理済みにして打ち切る。
		slog.Warn("シリーズが存在しないため再配信せずに処理済みにします",
			"chapter_id", chapter.ID,
			"series_id", chapter.SeriesID)
		if err := r.chapterRepo.MarkProcessed(ctx, chapter.ID); err != nil {
			return fmt.Errorf("チャプターの処理済み化に失敗しました: %w", err)
		}
		summary.ChaptersRepaired++
		return nil
	}

	subscribers, err := r.resolver.ActiveSubscribers(ctx, chapter.SeriesID)
	if err != nil {
		return fmt.Errorf("購読者の解決に失敗しました: %w", err)
	}

	if len(subscribers) > 0 {
		result, err := r.dispatcher.RedispatchChapter(ctx, chapter, series, subscribers)
		if err != nil {
			return fmt.Errorf("通知の再配信に失敗しました: %w", err)
		}
		summary.NotificationsSent += result.Sent
		summary.AlreadySent += result.AlreadySent
	}

	if err := r.chapterRepo.MarkProcessed(ctx, chapter.ID); err != nil {
		return fmt.Errorf("チャプターの処理済み化に失敗しました: %w", err)
	}
	summary.ChaptersRepaired++
	return nil
}
