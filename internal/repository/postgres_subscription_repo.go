package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// ListActiveBySeries は指定シリーズのアクティブな購読者をユーザー情報付きで返す。
// チャネル配列は購読側の宣言であり、ユーザー側の有効フラグによる絞り込みは
// 配信チャネルの責務とする。
func (r *PostgresSubscriptionRepo) ListActiveBySeries(ctx context.Context, seriesID int64) ([]model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.name, u.email_notifications, u.discord_webhook, u.discord_notifications,
		        u.created_at, u.updated_at, s.channels
		 FROM subscriptions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.series_id = $1 AND s.is_active = TRUE
		 ORDER BY s.created_at ASC`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("購読者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subscribers []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		var channels pq.StringArray

		if err := rows.Scan(
			&sub.User.ID, &sub.User.Email, &sub.User.Name,
			&sub.User.EmailNotifications, &sub.User.DiscordWebhook, &sub.User.DiscordNotifications,
			&sub.User.CreatedAt, &sub.User.UpdatedAt, &channels,
		); err != nil {
			return nil, fmt.Errorf("購読者の行読み取りに失敗しました: %w", err)
		}

		sub.Channels = make([]model.ChannelKind, 0, len(channels))
		for _, c := range channels {
			sub.Channels = append(sub.Channels, model.ChannelKind(c))
		}

		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読者一覧の走査に失敗しました: %w", err)
	}

	return subscribers, nil
}

// Deactivate は購読を非アクティブ化する。更新された場合はtrueを返す。
func (r *PostgresSubscriptionRepo) Deactivate(ctx context.Context, userID string, seriesID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = FALSE, updated_at = now()
		 WHERE user_id = $1 AND series_id = $2 AND is_active = TRUE`,
		userID, seriesID,
	)
	if err != nil {
		return false, fmt.Errorf("購読の解除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("購読解除の結果確認に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
