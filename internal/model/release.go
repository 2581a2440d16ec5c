// Package model はドメインモデルを定義する。
package model

import "time"

// RawRelease は外部ソースから取得した未検証の新着リリースエントリを表す。
// SourceClientの実装（HTMLスクレイパー/RSSアダプター）がこの形に正規化し、
// 検証と鮮度フィルタはReleaseExtractorが行う。
type RawRelease struct {
	Title        string // シリーズタイトル（未検証）
	ChapterLabel string // チャプターラベル（未検証、例: "Chapter 120.5"）
	ReleasedAt   string // ソース報告のタイムスタンプ文字列（RFC 3339想定、未検証）
	URL          string // チャプターへの外部URL（空の場合あり）
	CoverURL     string // カバー画像URL（空の場合あり）
}

// CandidateChapter は検証・鮮度フィルタを通過した未保存のチャプター候補を表す。
type CandidateChapter struct {
	SeriesTitle   string
	ChapterNumber string
	ReleaseDate   time.Time
	ExternalURL   string
	CoverURL      string
}

// SkipReason は候補化に失敗したエントリの除外理由を表す。
type SkipReason string

const (
	// SkipReasonMissingTitle はタイトルが空のため除外。
	SkipReasonMissingTitle SkipReason = "missing_title"
	// SkipReasonMissingChapter はチャプターラベルが空のため除外。
	SkipReasonMissingChapter SkipReason = "missing_chapter"
	// SkipReasonBadTimestamp はタイムスタンプがパース不能のため除外。
	SkipReasonBadTimestamp SkipReason = "bad_timestamp"
	// SkipReasonStale は鮮度ウィンドウより古いため除外。
	SkipReasonStale SkipReason = "stale"
)

// SkippedRelease は抽出時に除外されたエントリとその理由を表す。
// ログだけでなく実行サマリーに集計され、テストから観測可能になる。
type SkippedRelease struct {
	Release RawRelease
	Reason  SkipReason
}
