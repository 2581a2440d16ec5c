package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/shinkan/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意性制約違反のSQLSTATE。
const uniqueViolationCode = "23505"

// IsUniqueViolation はエラーが一意性制約違反かを判定する。
// シリーズ/チャプターの同時作成レースの検出に使用する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

// PostgresSeriesRepo はPostgreSQLを使用したシリーズリポジトリ。
type PostgresSeriesRepo struct {
	db *sql.DB
}

// NewPostgresSeriesRepo はPostgresSeriesRepoを生成する。
func NewPostgresSeriesRepo(db *sql.DB) *PostgresSeriesRepo {
	return &PostgresSeriesRepo{db: db}
}

// FindByTitle はタイトル完全一致でシリーズを検索する。見つからない場合はnilを返す。
func (r *PostgresSeriesRepo) FindByTitle(ctx context.Context, title string) (*model.Series, error) {
	series := &model.Series{}
	var lastUpdated sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, slug, status, cover_image, last_chapter, last_updated, created_at, updated_at
		 FROM series WHERE title = $1`,
		title,
	).Scan(
		&series.ID, &series.Title, &series.Slug, &series.Status, &series.CoverImage,
		&series.LastChapter, &lastUpdated, &series.CreatedAt, &series.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タイトルによるシリーズの検索に失敗しました: %w", err)
	}

	if lastUpdated.Valid {
		series.LastUpdated = &lastUpdated.Time
	}

	return series, nil
}

// Create はシリーズを作成し、生成されたIDとタイムスタンプを埋める。
// 一意性制約違反はラップせずに判別可能な形で返す。
func (r *PostgresSeriesRepo) Create(ctx context.Context, series *model.Series) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO series (title, slug, status, cover_image, last_chapter, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		series.Title, series.Slug, series.Status, series.CoverImage,
		series.LastChapter, series.LastUpdated,
	).Scan(&series.ID, &series.CreatedAt, &series.UpdatedAt)

	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", model.ErrPersistenceConflict, err)
		}
		return fmt.Errorf("シリーズの作成に失敗しました: %w", err)
	}

	return nil
}

// AdvanceHead はシリーズのlast_chapter/last_updatedを前進させる。
func (r *PostgresSeriesRepo) AdvanceHead(ctx context.Context, seriesID int64, chapterNumber string, updatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE series SET last_chapter = $2, last_updated = $3, updated_at = now()
		 WHERE id = $1`,
		seriesID, chapterNumber, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("シリーズ先頭の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SeriesRepository = (*PostgresSeriesRepo)(nil)
