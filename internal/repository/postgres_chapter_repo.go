package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresChapterRepo はPostgreSQLを使用したチャプターリポジトリ。
type PostgresChapterRepo struct {
	db *sql.DB
}

// NewPostgresChapterRepo はPostgresChapterRepoを生成する。
func NewPostgresChapterRepo(db *sql.DB) *PostgresChapterRepo {
	return &PostgresChapterRepo{db: db}
}

// FindBySeriesAndNumber は (series_id, chapter_number) でチャプターを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresChapterRepo) FindBySeriesAndNumber(ctx context.Context, seriesID int64, chapterNumber string) (*model.Chapter, error) {
	chapter := &model.Chapter{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, series_id, title, chapter_number, release_date, external_url, is_processed, created_at
		 FROM chapters WHERE series_id = $1 AND chapter_number = $2`,
		seriesID, chapterNumber,
	).Scan(
		&chapter.ID, &chapter.SeriesID, &chapter.Title, &chapter.ChapterNumber,
		&chapter.ReleaseDate, &chapter.ExternalURL, &chapter.IsProcessed, &chapter.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャプターの検索に失敗しました: %w", err)
	}

	return chapter, nil
}

// Create はチャプターをON CONFLICT DO NOTHINGで挿入する。
// 挿入された場合はtrueを返し、(series_id, chapter_number) が既存の場合はfalseを返す。
// この一意性制約が実行をまたいだ再処理を防ぐ冪等ゲートとなる。
func (r *PostgresChapterRepo) Create(ctx context.Context, chapter *model.Chapter) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chapters (series_id, title, chapter_number, release_date, external_url, is_processed)
		 VALUES ($1, $2, $3, $4, $5, FALSE)
		 ON CONFLICT (series_id, chapter_number) DO NOTHING
		 RETURNING id, created_at`,
		chapter.SeriesID, chapter.Title, chapter.ChapterNumber,
		chapter.ReleaseDate, chapter.ExternalURL,
	).Scan(&chapter.ID, &chapter.CreatedAt)

	if err == sql.ErrNoRows {
		// 衝突: 既存行があるため挿入されなかった
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("チャプターの挿入に失敗しました: %w", err)
	}

	return true, nil
}

// MarkProcessed はチャプターのis_processedをtrueにする。
func (r *PostgresChapterRepo) MarkProcessed(ctx context.Context, chapterID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chapters SET is_processed = TRUE WHERE id = $1`,
		chapterID,
	)
	if err != nil {
		return fmt.Errorf("チャプターの処理済みマークに失敗しました: %w", err)
	}
	return nil
}

// ListUnprocessed はis_processed=falseのチャプターを古い順に取得する。
func (r *PostgresChapterRepo) ListUnprocessed(ctx context.Context, limit int) ([]*model.Chapter, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, series_id, title, chapter_number, release_date, external_url, is_processed, created_at
		 FROM chapters
		 WHERE is_processed = FALSE
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("未処理チャプターの一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var chapters []*model.Chapter
	for rows.Next() {
		chapter := &model.Chapter{}
		if err := rows.Scan(
			&chapter.ID, &chapter.SeriesID, &chapter.Title, &chapter.ChapterNumber,
			&chapter.ReleaseDate, &chapter.ExternalURL, &chapter.IsProcessed, &chapter.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("未処理チャプターの行読み取りに失敗しました: %w", err)
		}
		chapters = append(chapters, chapter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未処理チャプターの走査に失敗しました: %w", err)
	}

	return chapters, nil
}

// FindSeriesByID はチャプターの親シリーズを取得する。見つからない場合はnilを返す。
func (r *PostgresChapterRepo) FindSeriesByID(ctx context.Context, seriesID int64) (*model.Series, error) {
	series := &model.Series{}
	var lastUpdated sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, slug, status, cover_image, last_chapter, last_updated, created_at, updated_at
		 FROM series WHERE id = $1`,
		seriesID,
	).Scan(
		&series.ID, &series.Title, &series.Slug, &series.Status, &series.CoverImage,
		&series.LastChapter, &lastUpdated, &series.CreatedAt, &series.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("シリーズの取得に失敗しました: %w", err)
	}

	if lastUpdated.Valid {
		series.LastUpdated = &lastUpdated.Time
	}

	return series, nil
}

// compile-time interface check
var _ ChapterRepository = (*PostgresChapterRepo)(nil)
