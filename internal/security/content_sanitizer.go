// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は収集元サイトからスクレイピングしたテキスト断片
// （シリーズタイトル、チャプターラベル等）をサニタイズする。
// 外部サイトのHTMLは信頼できないため、タグ混入をすべて除去して
// プレーンテキストのみを後段へ渡す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はスクレイピング済みテキストのサニタイズ機能の
// インターフェースを定義する。候補抽出の前段で使用される。
type TextSanitizerService interface {
	// SanitizeText は入力からHTMLタグをすべて除去し、
	// 文字実体参照を解決した上で前後の空白を整えたテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、
// スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、script等の危険タグだけでなく
// 表示用タグもすべて除去される。通知メールやDiscord埋め込みに載る文字列は
// このサニタイズを通過したものに限る。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からHTMLタグを除去しプレーンテキストを返す。
// bluemondayはタグ除去後に文字実体参照を残すため、
// html.UnescapeStringで「&amp;」等を元の文字へ戻してから空白を整える。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	unescaped := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(unescaped), " ")
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
