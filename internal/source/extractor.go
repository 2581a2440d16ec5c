package source

import (
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// TextSanitizer はスクレイピング済みテキストのサニタイズインターフェース。
// security.TextSanitizerServiceを抽象化してテスタビリティを向上させる。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Extractor は未検証のRawReleaseを検証・鮮度フィルタし、
// 保存可能なCandidateChapterへ変換する。純粋な変換処理でありI/Oは行わない。
type Extractor struct {
	sanitizer TextSanitizer
}

// NewExtractor はExtractorの新しいインスタンスを生成する。
func NewExtractor(sanitizer TextSanitizer) *Extractor {
	return &Extractor{sanitizer: sanitizer}
}

// Extract はRawReleaseの列を候補チャプターと除外エントリに振り分ける。
// 候補となる条件:
//   - タイトルとチャプターラベルが（サニタイズ後も）空でない
//   - タイムスタンプがRFC 3339としてパース可能
//   - now - releaseTimestamp <= window（鮮度ウィンドウ内）
//
// 個々の不正エントリは除外理由付きで返すのみで、エラーにはしない。
// この鮮度ウィンドウが過去データ再処理に対する第一の防壁であり、
// 実行間隔がウィンドウより短いことは呼び出し側（スケジューラ）の前提条件。
func (e *Extractor) Extract(releases []model.RawRelease, now time.Time, window time.Duration) ([]model.CandidateChapter, []model.SkippedRelease) {
	var candidates []model.CandidateChapter
	var skipped []model.SkippedRelease

	for _, release := range releases {
		title := e.sanitizer.SanitizeText(release.Title)
		label := e.sanitizer.SanitizeText(release.ChapterLabel)

		if title == "" {
			skipped = append(skipped, model.SkippedRelease{Release: release, Reason: model.SkipReasonMissingTitle})
			continue
		}
		if label == "" {
			skipped = append(skipped, model.SkippedRelease{Release: release, Reason: model.SkipReasonMissingChapter})
			continue
		}

		releasedAt, err := time.Parse(time.RFC3339, release.ReleasedAt)
		if err != nil {
			skipped = append(skipped, model.SkippedRelease{Release: release, Reason: model.SkipReasonBadTimestamp})
			continue
		}

		if now.Sub(releasedAt) > window {
			skipped = append(skipped, model.SkippedRelease{Release: release, Reason: model.SkipReasonStale})
			continue
		}

		candidates = append(candidates, model.CandidateChapter{
			SeriesTitle:   title,
			ChapterNumber: normalizeChapterNumber(label),
			ReleaseDate:   releasedAt,
			ExternalURL:   release.URL,
			CoverURL:      release.CoverURL,
		})
	}

	if len(skipped) > 0 {
		slog.Debug("候補化できないエントリを除外",
			slog.Int("skipped", len(skipped)),
			slog.Int("candidates", len(candidates)),
		)
	}

	return candidates, skipped
}

// normalizeChapterNumber はチャプターラベルから番号部分を取り出す。
// 「Chapter 120.5」「Ch. 120.5」のような接頭辞を除去し、
// 除去後に空になる場合は元のラベルをそのまま使う（自由形式を許容）。
func normalizeChapterNumber(label string) string {
	lower := strings.ToLower(label)
	for _, prefix := range []string{"chapter", "ch.", "ch "} {
		if strings.HasPrefix(lower, prefix) {
			stripped := strings.TrimSpace(label[len(prefix):])
			if stripped != "" {
				return stripped
			}
			break
		}
	}
	return label
}
