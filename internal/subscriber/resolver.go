// Package subscriber は通知ファンアウト対象の購読者解決を提供する。
package subscriber

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/repository"
)

// Resolver はシリーズのアクティブ購読者を解決する。
// ユーザーごとのチャネル設定（メール通知無効等）による絞り込みは行わず、
// チャネル側のポリシー判断に委ねる。
type Resolver struct {
	subscriptionRepo repository.SubscriptionRepository
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(subscriptionRepo repository.SubscriptionRepository) *Resolver {
	return &Resolver{subscriptionRepo: subscriptionRepo}
}

// ActiveSubscribers は指定シリーズのアクティブな購読者一覧を
// 有効チャネル集合付きで返す。購読者がいない場合は空スライスを返す。
func (r *Resolver) ActiveSubscribers(ctx context.Context, seriesID int64) ([]model.Subscriber, error) {
	subscribers, err := r.subscriptionRepo.ListActiveBySeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("購読者の解決に失敗しました: %w", err)
	}

	slog.Debug("購読者を解決",
		slog.Int64("series_id", seriesID),
		slog.Int("subscribers", len(subscribers)),
	)

	return subscribers, nil
}
