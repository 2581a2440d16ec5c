package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/repository"
)

// Store はシリーズとチャプターのカタログ永続化を提供する。
// タイトルによるシリーズの検索・作成と、チャプターの冪等な登録を担う。
type Store struct {
	seriesRepo  repository.SeriesRepository
	chapterRepo repository.ChapterRepository
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(
	seriesRepo repository.SeriesRepository,
	chapterRepo repository.ChapterRepository,
) *Store {
	return &Store{
		seriesRepo:  seriesRepo,
		chapterRepo: chapterRepo,
	}
}

// UpsertSeriesByTitle はタイトル完全一致でシリーズを検索し、
// 存在しない場合は候補の情報から新規作成する。
// 同時作成レースで一意性制約違反が起きた場合は既存行を一度だけ再読込する。
func (s *Store) UpsertSeriesByTitle(ctx context.Context, candidate model.CandidateChapter) (*model.Series, error) {
	existing, err := s.seriesRepo.FindByTitle(ctx, candidate.SeriesTitle)
	if err != nil {
		return nil, fmt.Errorf("シリーズの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	series := &model.Series{
		Title:      candidate.SeriesTitle,
		Slug:       Slugify(candidate.SeriesTitle),
		Status:     model.SeriesStatusOngoing,
		CoverImage: candidate.CoverURL,
	}

	createErr := s.seriesRepo.Create(ctx, series)
	if createErr == nil {
		slog.Info("シリーズを新規作成",
			slog.String("title", series.Title),
			slog.String("slug", series.Slug),
			slog.Int64("series_id", series.ID),
		)
		return series, nil
	}

	if !repository.IsUniqueViolation(createErr) {
		return nil, createErr
	}

	// 同時作成レース: 別の実行が先に作成したため既存行を再読込
	slog.Warn("シリーズ作成の競合を検出、既存行を再読込",
		slog.String("title", candidate.SeriesTitle),
	)
	existing, err = s.seriesRepo.FindByTitle(ctx, candidate.SeriesTitle)
	if err != nil {
		return nil, fmt.Errorf("競合後のシリーズ再読込に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("競合後のシリーズ再読込で行が見つかりません: %w", createErr)
	}
	return existing, nil
}

// InsertChapterIfAbsent はチャプターを冪等に登録する。
// (series_id, chapter_number) が既存の場合は挿入せず、既存行とfalseを返す。
// この戻り値のbool（新規かどうか）が通知ファンアウトの起動条件となる。
func (s *Store) InsertChapterIfAbsent(ctx context.Context, series *model.Series, candidate model.CandidateChapter) (*model.Chapter, bool, error) {
	chapter := &model.Chapter{
		SeriesID:      series.ID,
		Title:         fmt.Sprintf("Chapter %s", candidate.ChapterNumber),
		ChapterNumber: candidate.ChapterNumber,
		ReleaseDate:   candidate.ReleaseDate,
		ExternalURL:   candidate.ExternalURL,
	}

	inserted, err := s.chapterRepo.Create(ctx, chapter)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return chapter, true, nil
	}

	existing, err := s.chapterRepo.FindBySeriesAndNumber(ctx, series.ID, candidate.ChapterNumber)
	if err != nil {
		return nil, false, fmt.Errorf("既存チャプターの再読込に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("チャプターの挿入が衝突したが既存行が見つかりません: series_id=%d chapter=%s", series.ID, candidate.ChapterNumber)
	}
	return existing, false, nil
}

// MarkChapterProcessed はチャプターを処理済みにする。
// 通知ファンアウトの全試行が台帳に記録された後にのみ呼ぶこと。
func (s *Store) MarkChapterProcessed(ctx context.Context, chapterID int64) error {
	return s.chapterRepo.MarkProcessed(ctx, chapterID)
}

// AdvanceSeriesHead はシリーズの最新チャプター表示を前進させる。
func (s *Store) AdvanceSeriesHead(ctx context.Context, seriesID int64, chapterNumber string, releaseDate time.Time) error {
	return s.seriesRepo.AdvanceHead(ctx, seriesID, chapterNumber, releaseDate)
}
