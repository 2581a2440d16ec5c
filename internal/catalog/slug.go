// Package catalog はシリーズ・チャプターカタログの管理機能を提供する。
package catalog

import (
	"regexp"
	"strings"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^\w\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugHyphenRuns   = regexp.MustCompile(`-+`)
)

// Slugify はシリーズタイトルからURL用スラッグを導出する。
// 小文字化→記号除去→空白をハイフン化→連続ハイフンの圧縮→両端のハイフン除去。
// 同一タイトルは常に同一スラッグになる（決定的）。
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
