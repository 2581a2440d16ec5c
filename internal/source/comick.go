package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hitoshi/shinkan/internal/model"
)

// userAgent はソースへのリクエストで名乗るUA文字列。
const userAgent = "Shinkan/1.0 Release Notifier"

// ComickScraper はComick系サイトの新着リリース一覧HTMLをスクレイピングする
// Clientの実装。
type ComickScraper struct {
	baseURL       string
	seriesListURL string
	maxBodySize   int64
	client        *http.Client
	throttle      *politeThrottle
}

// ComickScraperConfig はComickScraperの生成パラメータ。
type ComickScraperConfig struct {
	// BaseURL はソースサイトのベースURL（例: https://comick.io）。
	BaseURL string
	// SeriesListURL は購読可能タイトル一覧（1行1タイトルのテキスト）のURL。
	// 未設定の場合、FetchSubscribableTitlesはErrSourceMisconfiguredを返す。
	SeriesListURL string
	// Timeout はリクエスト全体のタイムアウト。
	Timeout time.Duration
	// RequestDelay は連続リクエスト間の固定待機時間。
	RequestDelay time.Duration
	// MaxBodySize はレスポンスボディの最大読み取りサイズ。
	MaxBodySize int64
}

// NewComickScraper はComickScraperの新しいインスタンスを生成する。
// HTTPクライアントはSSRF防止付きファクトリから取得する。
func NewComickScraper(cfg ComickScraperConfig, factory SafeClientFactory) *ComickScraper {
	return &ComickScraper{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		seriesListURL: cfg.SeriesListURL,
		maxBodySize:   cfg.MaxBodySize,
		client:        factory.NewSafeClient(cfg.Timeout),
		throttle:      newPoliteThrottle(cfg.RequestDelay),
	}
}

// FetchNewReleases は新着リリース一覧ページを取得しRawReleaseへ正規化する。
// カードの構造: a[href] 配下に p.series-title / p.series-chapter /
// time[datetime]。3要素が揃わないカードはこの段階では落とさず、
// 空フィールドのままExtractorの検証に委ねる。
func (c *ComickScraper) FetchNewReleases(ctx context.Context) ([]model.RawRelease, error) {
	body, err := c.get(ctx, c.baseURL+"/home2")
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: 新着一覧ページの解析に失敗: %v", model.ErrSourceUnavailable, err)
	}

	var releases []model.RawRelease
	doc.Find("a[href]").Each(func(_ int, card *goquery.Selection) {
		title := card.Find("p.series-title")
		chapter := card.Find("p.series-chapter")
		timestamp := card.Find("time")

		// カード構造を持たないリンクは対象外
		if title.Length() == 0 && chapter.Length() == 0 && timestamp.Length() == 0 {
			return
		}

		release := model.RawRelease{
			Title:        strings.TrimSpace(title.Text()),
			ChapterLabel: strings.TrimSpace(chapter.Text()),
		}
		if datetime, ok := timestamp.Attr("datetime"); ok {
			release.ReleasedAt = strings.TrimSpace(datetime)
		}
		if href, ok := card.Attr("href"); ok {
			release.URL = c.resolveURL(href)
		}
		if src, ok := card.Find("img").First().Attr("src"); ok {
			release.CoverURL = c.resolveURL(src)
		}

		releases = append(releases, release)
	})

	slog.Info("新着一覧を取得",
		slog.String("source", c.baseURL),
		slog.Int("entries", len(releases)),
	)

	return releases, nil
}

// FetchSubscribableTitles は購読可能タイトル一覧（1行1タイトル）を取得する。
func (c *ComickScraper) FetchSubscribableTitles(ctx context.Context) ([]string, error) {
	if c.seriesListURL == "" {
		return nil, fmt.Errorf("%w: シリーズ一覧URLが未設定です", model.ErrSourceMisconfigured)
	}

	body, err := c.get(ctx, c.seriesListURL)
	if err != nil {
		return nil, err
	}

	var titles []string
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			titles = append(titles, trimmed)
		}
	}
	return titles, nil
}

// TestConnectivity はベースURLへの到達性を確認する。
func (c *ComickScraper) TestConnectivity(ctx context.Context) bool {
	_, err := c.get(ctx, c.baseURL)
	if err != nil {
		slog.Warn("ソース到達性チェックに失敗",
			slog.String("source", c.baseURL),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// get は礼儀的待機の後にGETリクエストを送信し、ボディを返す。
// 非2xxおよびトランスポートエラーはErrSourceUnavailableをラップする。
func (c *ComickScraper) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.throttle.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: リクエスト待機が中断されました: %v", model.ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: リクエストの生成に失敗: %v", model.ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, text/plain, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d from %s", model.ErrSourceUnavailable, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: レスポンスの読み取りに失敗: %v", model.ErrSourceUnavailable, err)
	}
	return body, nil
}

// resolveURL は相対パスをベースURLを基準に絶対URLへ解決する。
func (c *ComickScraper) resolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// parseDocument はHTMLボディをパースしてgoqueryドキュメントを返す。
// html.Parseは壊れたマークアップにも寛容であり、ここでのエラーは
// 入力がHTMLとして全く成立していないことを意味する。
func parseDocument(body []byte) (*goquery.Document, error) {
	node, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(node), nil
}

// compile-time interface check
var _ Client = (*ComickScraper)(nil)
