// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// パイプラインのエラー分類。
// 実行全体を中断するのはソース取得系のみで、それ以外は項目単位で隔離される。
var (
	// ErrSourceUnavailable は外部ソースへの到達失敗（非2xx/トランスポートエラー）を表す。
	// 実行全体に対して致命的。
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceMisconfigured は必須のエンドポイント設定が欠落していることを表す。
	// 実行全体に対して致命的。
	ErrSourceMisconfigured = errors.New("source misconfigured")

	// ErrPersistenceConflict はシリーズ/チャプター作成時の一意性制約レースを表す。
	// 既存行の再読み込みで解決される非致命エラー。
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrDeliveryDeclined はチャネルが受信者を自身のポリシーで辞退したことを表す
	// （例: ユーザーのメール通知フラグがOFF、Webhook未設定）。
	// 配信試行ではないため通知レコードは記録されない。
	ErrDeliveryDeclined = errors.New("delivery declined by channel policy")
)

// APIError は統一エラーフォーマットを表す。
// HTTPレスポンスに含める原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, source, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeSourceUnavailable    = "SOURCE_UNAVAILABLE"
	ErrCodeSourceMisconfigured  = "SOURCE_MISCONFIGURED"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
)

// NewUnauthorizedError は認証失敗エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証トークンが一致しません。",
		Category: "auth",
		Action:   "正しいBearerトークンを指定してください。",
	}
}

// NewSourceUnavailableError はソース到達失敗エラーを生成する。
func NewSourceUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceUnavailable,
		Message:  fmt.Sprintf("外部ソースの取得に失敗しました: %s", reason),
		Category: "source",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidTokenError は購読解除トークン不正エラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "購読解除トークンが無効です。",
		Category: "validation",
		Action:   "通知メールに記載されたリンクをそのまま開いてください。",
	}
}

// NewSubscriptionNotFoundError は購読未検出エラーを生成する。
func NewSubscriptionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  "該当する購読が見つかりません。",
		Category: "validation",
		Action:   "購読状態はダッシュボードから確認してください。",
	}
}
