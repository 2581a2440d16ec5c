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

const releaseFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Release Feed</title>
    <item>
      <title>One Piece - Chapter 1100</title>
      <link>https://example.com/one-piece/1100</link>
      <pubDate>Sat, 29 Aug 2026 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Berserk - Chapter 380</title>
      <link>https://example.com/berserk/380</link>
      <pubDate>Sat, 29 Aug 2026 11:58:00 GMT</pubDate>
    </item>
    <item>
      <title>TitleWithoutSeparator</title>
      <link>https://example.com/unknown</link>
    </item>
  </channel>
</rss>`

func newTestRSSAdapter(feedURL string) *RSSAdapter {
	return NewRSSAdapter(RSSAdapterConfig{
		FeedURL:      feedURL,
		Timeout:      5 * time.Second,
		RequestDelay: 0,
	}, plainClientFactory{})
}

// フィードエントリがRawReleaseへ正規化されることを検証
func TestRSSAdapter_FetchNewReleases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(releaseFeedXML))
	}))
	defer server.Close()

	adapter := newTestRSSAdapter(server.URL + "/releases.xml")
	releases, err := adapter.FetchNewReleases(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(releases) != 3 {
		t.Fatalf("releases = %d, want 3", len(releases))
	}

	first := releases[0]
	if first.Title != "One Piece" {
		t.Errorf("Title = %q, want %q", first.Title, "One Piece")
	}
	if first.ChapterLabel != "Chapter 1100" {
		t.Errorf("ChapterLabel = %q, want %q", first.ChapterLabel, "Chapter 1100")
	}
	if first.ReleasedAt != "2026-08-29T12:00:00Z" {
		t.Errorf("ReleasedAt = %q, want RFC 3339形式", first.ReleasedAt)
	}
	if first.URL != "https://example.com/one-piece/1100" {
		t.Errorf("URL = %q", first.URL)
	}

	// 区切りのないタイトルはチャプターラベル空のまま返る（後段の検証で除外）
	third := releases[2]
	if third.Title != "TitleWithoutSeparator" || third.ChapterLabel != "" {
		t.Errorf("区切りなしエントリ = %+v", third)
	}
}

// フィードURL未設定でErrSourceMisconfiguredが返ることを検証
func TestRSSAdapter_Misconfigured(t *testing.T) {
	adapter := newTestRSSAdapter("")

	_, err := adapter.FetchNewReleases(context.Background())
	if !errors.Is(err, model.ErrSourceMisconfigured) {
		t.Errorf("err = %v, want ErrSourceMisconfigured", err)
	}
}

// パース不能なボディでErrSourceUnavailableが返ることを検証
func TestRSSAdapter_UnparsableFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed"))
	}))
	defer server.Close()

	adapter := newTestRSSAdapter(server.URL)
	_, err := adapter.FetchNewReleases(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

// FetchSubscribableTitlesがフィード内タイトルを重複排除して返すことを検証
func TestRSSAdapter_FetchSubscribableTitles(t *testing.T) {
	feed := `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>One Piece - Chapter 1100</title></item>
<item><title>One Piece - Chapter 1101</title></item>
<item><title>Berserk - Chapter 380</title></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer server.Close()

	adapter := newTestRSSAdapter(server.URL)
	titles, err := adapter.FetchSubscribableTitles(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	want := []string{"One Piece", "Berserk"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}
}
