// Package notify は新着チャプター通知の配信チャネルとファンアウトを提供する。
package notify

import (
	"context"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// DeliveryChannel は1つの配信手段（メール/Discord Webhook等）を表す。
// バッチサイズと休止間隔はチャネルごとの定数であり、外部サービスの
// レート制限に合わせて実装が決める。
type DeliveryChannel interface {
	// Kind はチャネル種別を返す。
	Kind() model.ChannelKind

	// BatchSize は同時配信するバッチの上限数を返す。
	BatchSize() int

	// Pause はバッチ間の休止時間を返す。
	Pause() time.Duration

	// Send は1人の購読者へチャプター通知を配信する。
	// 購読者側の設定（通知無効、Webhook未登録等）により配信対象外の場合は
	// model.ErrDeliveryDeclinedを返す。辞退は試行として扱わない。
	// それ以外のエラーは配信失敗として台帳に記録される。
	Send(ctx context.Context, sub model.Subscriber, chapter *model.Chapter, series *model.Series) error

	// TestConnectivity はチャネルの外部サービスへの到達性を確認する。
	// ヘルスチェックで使用される。
	TestConnectivity(ctx context.Context) bool
}
