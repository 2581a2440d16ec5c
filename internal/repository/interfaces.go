// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// SeriesRepository はシリーズデータの永続化インターフェース。
type SeriesRepository interface {
	// FindByTitle はタイトル完全一致（大文字小文字区別）でシリーズを検索する。
	// 見つからない場合はnilを返す。
	FindByTitle(ctx context.Context, title string) (*model.Series, error)

	// Create はシリーズを作成し、IDとタイムスタンプを埋める。
	// タイトル/スラッグの一意性制約違反はそのままエラーとして返す
	// （呼び出し側がIsUniqueViolationで判定し、既存行を再読込する）。
	Create(ctx context.Context, series *model.Series) error

	// AdvanceHead はシリーズのlast_chapter/last_updatedを前進させる。
	// チャプターの通知ファンアウト完了後にのみ呼ばれる。
	AdvanceHead(ctx context.Context, seriesID int64, chapterNumber string, updatedAt time.Time) error
}

// ChapterRepository はチャプターデータの永続化インターフェース。
type ChapterRepository interface {
	// FindBySeriesAndNumber は (series_id, chapter_number) でチャプターを検索する。
	// 見つからない場合はnilを返す。
	FindBySeriesAndNumber(ctx context.Context, seriesID int64, chapterNumber string) (*model.Chapter, error)

	// Create はチャプターをON CONFLICT DO NOTHINGで挿入する。
	// 挿入された場合はtrueを返し、既存行と衝突した場合はfalseを返す（冪等ゲート）。
	Create(ctx context.Context, chapter *model.Chapter) (bool, error)

	// MarkProcessed はチャプターのis_processedをtrueにする。
	// 通知ファンアウトの試行が全件記録された後にのみ呼ばれる。
	MarkProcessed(ctx context.Context, chapterID int64) error

	// ListUnprocessed はis_processed=falseのチャプターを古い順に取得する。
	// クラッシュ後の修復パスが対象を特定するために使用する。
	ListUnprocessed(ctx context.Context, limit int) ([]*model.Chapter, error)

	// FindSeriesByID はチャプターの親シリーズを取得する。見つからない場合はnilを返す。
	FindSeriesByID(ctx context.Context, seriesID int64) (*model.Series, error)
}

// SubscriptionRepository は購読データの永続化インターフェース。
type SubscriptionRepository interface {
	// ListActiveBySeries は指定シリーズのアクティブな購読者一覧を
	// ユーザー情報と有効チャネル集合付きで返す。
	// ユーザーごとのチャネル設定（メール無効等）によるフィルタは行わない。
	ListActiveBySeries(ctx context.Context, seriesID int64) ([]model.Subscriber, error)

	// Deactivate は購読を非アクティブ化する。
	// 該当行が存在して更新された場合はtrueを返す。
	Deactivate(ctx context.Context, userID string, seriesID int64) (bool, error)
}

// NotificationRepository は通知台帳の永続化インターフェース。
// 台帳は挿入のみで、既存行の上書きは行わない。
type NotificationRepository interface {
	// Create は配信試行の結果を1行追記する。
	Create(ctx context.Context, record *model.NotificationRecord) error

	// ExistsSent は (user_id, chapter_id, channel) の送信成功記録が
	// 既に存在するかを返す。修復パスでの二重通知防止に使用する。
	ExistsSent(ctx context.Context, userID string, chapterID int64, channel model.ChannelKind) (bool, error)
}
