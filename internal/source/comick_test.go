package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// plainClientFactory はテスト用のSafeClientFactory。
// httptestサーバー（ループバック）へ接続するため、SSRF防止なしの
// 素のHTTPクライアントを返す。
type plainClientFactory struct{}

func (plainClientFactory) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newTestScraper(baseURL, seriesListURL string) *ComickScraper {
	return NewComickScraper(ComickScraperConfig{
		BaseURL:       baseURL,
		SeriesListURL: seriesListURL,
		Timeout:       5 * time.Second,
		RequestDelay:  0,
		MaxBodySize:   1 << 20,
	}, plainClientFactory{})
}

const newReleasesHTML = `<!DOCTYPE html>
<html><body>
<h2>Updates</h2>
<div>
  <a href="/comic/one-piece/chapter-1100">
    <img src="/covers/one-piece.jpg">
    <p class="series-title">One Piece</p>
    <p class="series-chapter">Chapter 1100</p>
    <time datetime="2026-08-29T12:00:00Z">just now</time>
  </a>
  <a href="/comic/berserk/chapter-380">
    <p class="series-title">Berserk</p>
    <p class="series-chapter">Chapter 380</p>
    <time datetime="2026-08-29T11:58:00Z">2 minutes ago</time>
  </a>
  <a href="/about">About us</a>
</div>
</body></html>`

// 新着一覧ページのカードがRawReleaseへ正規化されることを検証
func TestFetchNewReleases_ParsesCards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/home2" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(newReleasesHTML))
	}))
	defer server.Close()

	scraper := newTestScraper(server.URL, "")
	releases, err := scraper.FetchNewReleases(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(releases) != 2 {
		t.Fatalf("releases = %d, want 2 (カード構造を持たないリンクは除外)", len(releases))
	}

	first := releases[0]
	if first.Title != "One Piece" {
		t.Errorf("Title = %q, want %q", first.Title, "One Piece")
	}
	if first.ChapterLabel != "Chapter 1100" {
		t.Errorf("ChapterLabel = %q, want %q", first.ChapterLabel, "Chapter 1100")
	}
	if first.ReleasedAt != "2026-08-29T12:00:00Z" {
		t.Errorf("ReleasedAt = %q", first.ReleasedAt)
	}
	if first.URL != server.URL+"/comic/one-piece/chapter-1100" {
		t.Errorf("URL = %q (相対URLが解決されるべき)", first.URL)
	}
	if first.CoverURL != server.URL+"/covers/one-piece.jpg" {
		t.Errorf("CoverURL = %q", first.CoverURL)
	}

	second := releases[1]
	if second.CoverURL != "" {
		t.Errorf("カバー画像のないカードのCoverURL = %q, want 空", second.CoverURL)
	}
}

// 非2xxレスポンスがErrSourceUnavailableとして返ることを検証
func TestFetchNewReleases_SourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	scraper := newTestScraper(server.URL, "")
	_, err := scraper.FetchNewReleases(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

// 到達不能なホストでErrSourceUnavailableが返ることを検証
func TestFetchNewReleases_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 即座に閉じて接続拒否させる

	scraper := newTestScraper(server.URL, "")
	_, err := scraper.FetchNewReleases(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

// シリーズ一覧URLが未設定の場合ErrSourceMisconfiguredが返ることを検証
func TestFetchSubscribableTitles_Misconfigured(t *testing.T) {
	scraper := newTestScraper("https://example.com", "")

	_, err := scraper.FetchSubscribableTitles(context.Background())
	if !errors.Is(err, model.ErrSourceMisconfigured) {
		t.Errorf("err = %v, want ErrSourceMisconfigured", err)
	}
}

// シリーズ一覧テキストが行単位でパースされることを検証
func TestFetchSubscribableTitles_ParsesLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("One Piece\n  Berserk  \n\nJujutsu Kaisen\n"))
	}))
	defer server.Close()

	scraper := newTestScraper(server.URL, server.URL+"/list.txt")
	titles, err := scraper.FetchSubscribableTitles(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	want := []string{"One Piece", "Berserk", "Jujutsu Kaisen"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}
}

// TestConnectivityが到達可否をboolで返すことを検証
func TestTestConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	up := newTestScraper(server.URL, "")
	if !up.TestConnectivity(context.Background()) {
		t.Error("到達可能なソースでTestConnectivity = false")
	}

	down := newTestScraper("http://127.0.0.1:1", "")
	if down.TestConnectivity(context.Background()) {
		t.Error("到達不能なソースでTestConnectivity = true")
	}
}

// 礼儀的待機がリクエスト間に適用されることを検証
func TestPoliteThrottle_EnforcesDelay(t *testing.T) {
	throttle := newPoliteThrottle(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := throttle.wait(ctx); err != nil {
		t.Fatalf("1回目のwaitでエラー: %v", err)
	}
	if err := throttle.wait(ctx); err != nil {
		t.Fatalf("2回目のwaitでエラー: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("2リクエストの間隔 = %v, want >= 50ms", elapsed)
	}
}

// コンテキストキャンセルで待機が中断されることを検証
func TestPoliteThrottle_ContextCancel(t *testing.T) {
	throttle := newPoliteThrottle(10 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	if err := throttle.wait(ctx); err != nil {
		t.Fatalf("1回目のwaitでエラー: %v", err)
	}

	cancel()
	if err := throttle.wait(ctx); err == nil {
		t.Error("キャンセル済みコンテキストでwait = nil, want error")
	}
}
