package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DBPinger はデータベースの死活確認インターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// ConnectivityTester は外部依存の到達性確認インターフェース。
// ソースクライアントと各配信チャネルが実装する。
type ConnectivityTester interface {
	TestConnectivity(ctx context.Context) bool
}

// HealthHandler はサービス全体の健全性を集約して返すハンドラー。
// DBは必須依存、ソースと配信チャネルは劣化運転が可能な依存として扱う。
type HealthHandler struct {
	db       DBPinger
	source   ConnectivityTester
	channels map[string]ConnectivityTester
	timeout  time.Duration
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db DBPinger, source ConnectivityTester, channels map[string]ConnectivityTester) *HealthHandler {
	return &HealthHandler{
		db:       db,
		source:   source,
		channels: channels,
		timeout:  5 * time.Second,
	}
}

// healthResponse はヘルスチェックのレスポンスボディ。
type healthResponse struct {
	Status     string            `json:"status"` // healthy / degraded / unhealthy
	Components map[string]string `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// HandleHealth はサービスの健全性を返す。
// GET /health
// DB不通はunhealthy（503）、ソースまたはチャネルの不通はdegraded（200）。
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	components := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		components["database"] = "down"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		components["database"] = "up"
	}

	if h.source != nil {
		if h.source.TestConnectivity(ctx) {
			components["source"] = "up"
		} else {
			components["source"] = "down"
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	for name, ch := range h.channels {
		if ch.TestConnectivity(ctx) {
			components[name] = "up"
		} else {
			components[name] = "down"
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(healthResponse{
		Status:     status,
		Components: components,
		Timestamp:  time.Now().UTC(),
	})
}
