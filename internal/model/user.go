// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// サインアップやセッション管理は外部コラボレーターの責務であり、
// 本パイプラインは通知設定を含む読み取り専用の射影のみを扱う。
type User struct {
	ID                   string
	Email                string
	Name                 string
	EmailNotifications   bool   // メールチャネルのユーザー側有効フラグ
	DiscordWebhook       string // ユーザーごとのWebhook URL（未設定の場合あり）
	DiscordNotifications bool   // Discordチャネルのユーザー側有効フラグ
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
