package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知台帳リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は配信試行の結果を台帳に1行追記する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, record *model.NotificationRecord) error {
	var errorMessage sql.NullString
	if record.ErrorMessage != "" {
		errorMessage = sql.NullString{String: record.ErrorMessage, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, chapter_id, channel, status, sent_at, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		record.UserID, record.ChapterID, record.Channel, record.Status,
		record.SentAt, errorMessage,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("通知記録の追記に失敗しました: %w", err)
	}

	return nil
}

// ExistsSent は (user_id, chapter_id, channel) の送信成功記録が存在するかを返す。
func (r *PostgresNotificationRepo) ExistsSent(ctx context.Context, userID string, chapterID int64, channel model.ChannelKind) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications
		   WHERE user_id = $1 AND chapter_id = $2 AND channel = $3 AND status = 'sent'
		 )`,
		userID, chapterID, channel,
	).Scan(&exists)

	if err != nil {
		return false, fmt.Errorf("送信済み記録の確認に失敗しました: %w", err)
	}

	return exists, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
