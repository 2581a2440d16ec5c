package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/shinkan/internal/model"
)

// RSSAdapter はリリースフィード（RSS/Atom）を公開するソース向けのClient実装。
// HTMLスクレイピングが不要なソースではこちらを使用する。
type RSSAdapter struct {
	feedURL  string
	client   *http.Client
	throttle *politeThrottle
}

// RSSAdapterConfig はRSSAdapterの生成パラメータ。
type RSSAdapterConfig struct {
	// FeedURL はリリースフィードのURL。
	FeedURL string
	// Timeout はリクエスト全体のタイムアウト。
	Timeout time.Duration
	// RequestDelay は連続リクエスト間の固定待機時間。
	RequestDelay time.Duration
}

// NewRSSAdapter はRSSAdapterの新しいインスタンスを生成する。
func NewRSSAdapter(cfg RSSAdapterConfig, factory SafeClientFactory) *RSSAdapter {
	return &RSSAdapter{
		feedURL:  cfg.FeedURL,
		client:   factory.NewSafeClient(cfg.Timeout),
		throttle: newPoliteThrottle(cfg.RequestDelay),
	}
}

// FetchNewReleases はリリースフィードを取得しRawReleaseへ正規化する。
// エントリタイトルは「シリーズタイトル - チャプターラベル」の形式を想定し、
// 最後の「 - 」で分割する。分割できない場合はチャプターラベルを空のまま
// 返し、後段の検証で除外させる。
func (a *RSSAdapter) FetchNewReleases(ctx context.Context) ([]model.RawRelease, error) {
	if a.feedURL == "" {
		return nil, fmt.Errorf("%w: フィードURLが未設定です", model.ErrSourceMisconfigured)
	}

	if err := a.throttle.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: リクエスト待機が中断されました: %v", model.ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: リクエストの生成に失敗: %v", model.ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d from %s", model.ErrSourceUnavailable, resp.StatusCode, a.feedURL)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: フィードのパースに失敗: %v", model.ErrSourceUnavailable, err)
	}

	releases := make([]model.RawRelease, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		releases = append(releases, convertFeedItem(item))
	}

	slog.Info("リリースフィードを取得",
		slog.String("feed_url", a.feedURL),
		slog.Int("entries", len(releases)),
	)

	return releases, nil
}

// FetchSubscribableTitles はフィードに現れるシリーズタイトルの重複排除済み
// 一覧を返す。専用の一覧エンドポイントを持たないソース向けの近似。
func (a *RSSAdapter) FetchSubscribableTitles(ctx context.Context) ([]string, error) {
	releases, err := a.FetchNewReleases(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(releases))
	var titles []string
	for _, r := range releases {
		if r.Title == "" {
			continue
		}
		if _, ok := seen[r.Title]; ok {
			continue
		}
		seen[r.Title] = struct{}{}
		titles = append(titles, r.Title)
	}
	return titles, nil
}

// TestConnectivity はフィードURLへの到達性を確認する。
func (a *RSSAdapter) TestConnectivity(ctx context.Context) bool {
	if a.feedURL == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// convertFeedItem はフィードエントリをRawReleaseへ変換する。
func convertFeedItem(item *gofeed.Item) model.RawRelease {
	release := model.RawRelease{
		URL: item.Link,
	}

	// 「シリーズタイトル - チャプターラベル」形式を最後の区切りで分割
	title := strings.TrimSpace(item.Title)
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		release.Title = strings.TrimSpace(title[:idx])
		release.ChapterLabel = strings.TrimSpace(title[idx+len(" - "):])
	} else {
		release.Title = title
	}

	if item.PublishedParsed != nil {
		release.ReleasedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		release.ReleasedAt = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	if item.Image != nil {
		release.CoverURL = item.Image.URL
	}

	return release
}

// compile-time interface check
var _ Client = (*RSSAdapter)(nil)
