// Package model はドメインモデルを定義する。
package model

import "time"

// Series は追跡対象のマンガシリーズを表す。
// 新チャプターが最初に観測されたタイトルに対して作成され、
// 以降はチャプター受理のたびにlast_chapter/last_updatedが前進する。
type Series struct {
	ID          int64
	Title       string
	Slug        string
	Status      SeriesStatus
	CoverImage  string
	LastChapter string
	LastUpdated *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SeriesStatus はシリーズの連載状態を表す。
type SeriesStatus string

const (
	// SeriesStatusOngoing は連載中のシリーズ。新規作成時のデフォルト。
	SeriesStatusOngoing SeriesStatus = "ongoing"
	// SeriesStatusCompleted は完結したシリーズ。
	SeriesStatusCompleted SeriesStatus = "completed"
	// SeriesStatusHiatus は休載中のシリーズ。
	SeriesStatusHiatus SeriesStatus = "hiatus"
)
