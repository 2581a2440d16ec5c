package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/shinkan/internal/middleware"
	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/notify"
)

// SubscriptionDeactivator は購読解除ハンドラーが必要とする
// 最小限の購読操作インターフェース。
type SubscriptionDeactivator interface {
	// Deactivate は購読を非アクティブ化する。該当行が更新された場合はtrueを返す。
	Deactivate(ctx context.Context, userID string, seriesID int64) (bool, error)
}

// UnsubscribeHandler は通知メール内のリンクからの購読解除を処理する。
// 認証なしの公開エンドポイントのため、不正なトークンに対しても
// 内部情報を漏らさない404系レスポンスのみを返す。
type UnsubscribeHandler struct {
	deactivator SubscriptionDeactivator
}

// NewUnsubscribeHandler はUnsubscribeHandlerを生成する。
func NewUnsubscribeHandler(deactivator SubscriptionDeactivator) *UnsubscribeHandler {
	return &UnsubscribeHandler{deactivator: deactivator}
}

// unsubscribeResponse は購読解除成功時のレスポンスボディ。
type unsubscribeResponse struct {
	Message string `json:"message"`
}

// HandleUnsubscribe は購読解除トークンを検証し、該当する購読を非アクティブ化する。
// GET /unsubscribe?token=...
func (h *UnsubscribeHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewInvalidTokenError())
		return
	}

	userID, seriesID, ok := notify.DecodeUnsubscribeToken(token)
	if !ok {
		// 不正なトークンの詳細は返さない
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewInvalidTokenError())
		return
	}

	deactivated, err := h.deactivator.Deactivate(r.Context(), userID, seriesID)
	if err != nil {
		slog.Error("購読解除の処理に失敗しました",
			slog.String("user_id", userID),
			slog.Int64("series_id", seriesID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if !deactivated {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSubscriptionNotFoundError())
		return
	}

	slog.Info("購読を解除しました",
		slog.String("user_id", userID),
		slog.Int64("series_id", seriesID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(unsubscribeResponse{
		Message: "購読を解除しました。今後このシリーズの通知は送信されません。",
	})
}
