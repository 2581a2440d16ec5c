// Package model はドメインモデルを定義する。
package model

import "time"

// NotificationRecord は (購読者, チャプター, チャネル) ごとの配信試行を表す。
// 挿入のみの監査台帳であり、上書きされることはない。
// パイプラインはこの台帳を参照して送信済みの再通知を回避できる
// （ただし一次防衛はチャプター存在チェック）。
type NotificationRecord struct {
	ID           int64
	UserID       string
	ChapterID    int64
	Channel      ChannelKind
	Status       NotificationStatus
	SentAt       *time.Time
	ErrorMessage string
	CreatedAt    time.Time
}

// NotificationStatus は配信試行の結果状態を表す。
type NotificationStatus string

const (
	// NotificationStatusPending は未確定の配信状態。
	NotificationStatusPending NotificationStatus = "pending"
	// NotificationStatusSent は配信成功。
	NotificationStatusSent NotificationStatus = "sent"
	// NotificationStatusFailed は配信失敗。エラーメッセージが記録される。
	NotificationStatusFailed NotificationStatus = "failed"
)
