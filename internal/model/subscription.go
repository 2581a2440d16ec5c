// Package model はドメインモデルを定義する。
package model

import "time"

// ChannelKind は通知配信チャネルの種別を表す。
type ChannelKind string

const (
	// ChannelEmail はメール通知チャネル。
	ChannelEmail ChannelKind = "email"
	// ChannelDiscord はDiscord Webhook通知チャネル。
	ChannelDiscord ChannelKind = "discord"
)

// Subscription はユーザーとシリーズの購読関係を表す。
// 1ユーザー1シリーズにつき最大1件（外部コラボレーターが保証する不変条件）。
type Subscription struct {
	ID        int64
	UserID    string
	SeriesID  int64
	IsActive  bool
	Channels  []ChannelKind // 有効化された配信チャネルの集合
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscriber はファンアウト対象の購読者を表す。
// SubscriberResolverがアクティブな購読をユーザー情報と結合して返す。
type Subscriber struct {
	User     User
	Channels []ChannelKind
}

// HasChannel は指定チャネルが有効化されているかを返す。
func (s Subscriber) HasChannel(kind ChannelKind) bool {
	for _, c := range s.Channels {
		if c == kind {
			return true
		}
	}
	return false
}
