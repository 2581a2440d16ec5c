// Package model はドメインモデルを定義する。
package model

import "time"

// Chapter はシリーズに属する1チャプターを表す。
// (series_id, chapter_number) の一意性制約が再処理防止の要となる。
// IsProcessedは通知ファンアウトの試行（成否問わず）が全て記録された後にのみtrueになる。
type Chapter struct {
	ID            int64
	SeriesID      int64
	Title         string
	ChapterNumber string // 自由形式（例: "120.5"）
	ReleaseDate   time.Time
	ExternalURL   string
	IsProcessed   bool
	CreatedAt     time.Time
}
