// Package source は外部リリースソースへのアダプターを提供する。
package source

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// Client は新着リリースソースへのアクセスインターフェースを定義する。
// 実装はHTMLスクレイパー（Comick系サイト）とRSSアダプターの2種。
// 返すRawReleaseは未検証であり、検証と鮮度フィルタはExtractorが担う。
type Client interface {
	// FetchNewReleases は新着リリース一覧ページを取得し、
	// 未検証のRawReleaseへ正規化して返す。
	// 到達失敗・非2xxはmodel.ErrSourceUnavailableをラップして返す。
	// リトライは行わない（次回の定期実行が自然なリトライとなる）。
	FetchNewReleases(ctx context.Context) ([]model.RawRelease, error)

	// FetchSubscribableTitles は購読可能なシリーズタイトル一覧を取得する。
	// 一覧URLが未設定の場合はmodel.ErrSourceMisconfiguredを返す。
	FetchSubscribableTitles(ctx context.Context) ([]string, error)

	// TestConnectivity はソースのベースURLへの到達性を確認する。
	// ヘルスチェックで使用され、失敗時もエラーではなくfalseを返す。
	TestConnectivity(ctx context.Context) bool
}

// SafeClientFactory はSSRF防止付きHTTPクライアントの生成インターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SafeClientFactory interface {
	NewSafeClient(timeout time.Duration) *http.Client
}

// politeThrottle はソースへの連続リクエストに固定の待機間隔を強制する。
// 収集元サイトへの礼儀的なアクセス間隔であり、設定値に関わらず
// リクエストごとに適用される（クライアント側ポリシー）。
type politeThrottle struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
}

func newPoliteThrottle(delay time.Duration) *politeThrottle {
	return &politeThrottle{delay: delay}
}

// wait は前回リクエストからdelay経過するまでブロックする。
// コンテキストキャンセルで待機を中断する。
func (t *politeThrottle) wait(ctx context.Context) error {
	t.mu.Lock()
	var sleep time.Duration
	now := time.Now()
	if !t.last.IsZero() {
		elapsed := now.Sub(t.last)
		if elapsed < t.delay {
			sleep = t.delay - elapsed
		}
	}
	t.last = now.Add(sleep)
	t.mu.Unlock()

	if sleep <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sleep):
		return nil
	}
}
