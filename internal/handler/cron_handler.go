// Package handler はHTTPエンドポイントのハンドラーを提供する。
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/shinkan/internal/middleware"
	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/pipeline"
)

// PipelineRunner はcronハンドラーが必要とするパイプライン実行インターフェース。
type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.RunSummary, error)
}

// CronHandler は外部cron連携用のスクレイプ起動ハンドラー。
// 共有シークレットのBearerトークンで保護される。
type CronHandler struct {
	runner PipelineRunner
	secret string
}

// NewCronHandler はCronHandlerを生成する。
func NewCronHandler(runner PipelineRunner, secret string) *CronHandler {
	return &CronHandler{
		runner: runner,
		secret: secret,
	}
}

// scrapeResponse はスクレイプ成功時のレスポンスボディ。
type scrapeResponse struct {
	ChaptersFound     int       `json:"chapters_found"`
	ChaptersProcessed int       `json:"chapters_processed"`
	NotificationsSent int       `json:"notifications_sent"`
	Skipped           int       `json:"skipped"`
	Failures          int       `json:"failures"`
	Timestamp         time.Time `json:"timestamp"`
}

// scrapeErrorResponse はスクレイプ失敗時のレスポンスボディ。
type scrapeErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleScrape はスクレイプパイプラインを1回実行する。
// POST /internal/cron/scrape（外部cronサービスの互換のためGETも受け付ける）
func (h *CronHandler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		slog.Warn("cronエンドポイントへの認証失敗",
			slog.String("remote_addr", r.RemoteAddr),
		)
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(scrapeErrorResponse{
			Error:     "scrape_failed",
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(scrapeResponse{
		ChaptersFound:     summary.ChaptersFound,
		ChaptersProcessed: summary.ChaptersProcessed,
		NotificationsSent: summary.NotificationsSent,
		Skipped:           summary.Skipped,
		Failures:          summary.Failures,
		Timestamp:         summary.Timestamp,
	})
}

// authorized はAuthorizationヘッダーのBearerトークンを検証する。
// タイミング攻撃を避けるため定数時間比較を使用する。
func (h *CronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
