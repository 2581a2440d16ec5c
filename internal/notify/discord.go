package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

const (
	// discordBatchSize はDiscord配信の同時送信バッチ上限。
	// Discordのレート制限はメールAPIより厳しいため小さめに取る。
	discordBatchSize = 5
	// discordBatchPause はDiscordバッチ間の休止時間。
	discordBatchPause = 2 * time.Second

	// discordEmbedColor は埋め込みのアクセントカラー。
	discordEmbedColor = 0x667eea

	// discordGatewayURL は到達性確認に使う認証不要のエンドポイント。
	discordGatewayURL = "https://discord.com/api/v10/gateway"
)

// WebhookValidator はWebhook URLの事前検証インターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type WebhookValidator interface {
	ValidateURL(rawURL string) error
}

// DiscordChannel はユーザーごとのDiscord Webhookへ埋め込み通知を配信する
// DeliveryChannelの実装。
type DiscordChannel struct {
	baseURL    string
	client     *http.Client
	validator  WebhookValidator
	gatewayURL string
}

// DiscordChannelConfig はDiscordChannelの生成パラメータ。
type DiscordChannelConfig struct {
	// BaseURL はアプリケーションの公開URL。
	BaseURL string
	// Timeout はWebhook呼び出しのタイムアウト。
	Timeout time.Duration
	// GatewayURL は到達性確認エンドポイント。空の場合はDiscordのデフォルト。
	GatewayURL string
}

// NewDiscordChannel はDiscordChannelの新しいインスタンスを生成する。
// WebhookのURLはユーザー入力由来のためvalidatorで毎回検証する。
func NewDiscordChannel(cfg DiscordChannelConfig, validator WebhookValidator) *DiscordChannel {
	gatewayURL := cfg.GatewayURL
	if gatewayURL == "" {
		gatewayURL = discordGatewayURL
	}
	return &DiscordChannel{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		validator:  validator,
		gatewayURL: gatewayURL,
	}
}

// Kind はチャネル種別を返す。
func (c *DiscordChannel) Kind() model.ChannelKind { return model.ChannelDiscord }

// BatchSize はDiscord配信のバッチ上限を返す。
func (c *DiscordChannel) BatchSize() int { return discordBatchSize }

// Pause はバッチ間の休止時間を返す。
func (c *DiscordChannel) Pause() time.Duration { return discordBatchPause }

// discordEmbed はWebhookペイロードの埋め込み部。
type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Thumbnail   *discordThumbnail   `json:"thumbnail,omitempty"`
	Fields      []discordEmbedField `json:"fields"`
	Footer      discordEmbedFooter  `json:"footer"`
	Timestamp   string              `json:"timestamp"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

// discordWebhookPayload はWebhookへのPOSTボディ。
type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

// Send は1人の購読者のWebhookへチャプター通知を配信する。
// ユーザーがDiscord通知を無効化している、またはWebhook未登録の場合は
// ErrDeliveryDeclinedを返す。
func (c *DiscordChannel) Send(ctx context.Context, sub model.Subscriber, chapter *model.Chapter, series *model.Series) error {
	if !sub.User.DiscordNotifications {
		return fmt.Errorf("%w: ユーザーがDiscord通知を無効化しています", model.ErrDeliveryDeclined)
	}
	if sub.User.DiscordWebhook == "" {
		return fmt.Errorf("%w: Webhook URLが未登録です", model.ErrDeliveryDeclined)
	}

	if c.validator != nil {
		if err := c.validator.ValidateURL(sub.User.DiscordWebhook); err != nil {
			return fmt.Errorf("Webhook URLの検証に失敗しました: %w", err)
		}
	}

	payload := discordWebhookPayload{
		Content: "**New Chapter Released!**",
		Embeds:  []discordEmbed{c.buildEmbed(chapter, series)},
	}

	if err := c.post(ctx, sub.User.DiscordWebhook, payload); err != nil {
		return err
	}

	slog.Debug("Discord通知を送信",
		slog.String("user_id", sub.User.ID),
		slog.Int64("chapter_id", chapter.ID),
	)
	return nil
}

// TestWebhook は指定Webhookへテスト埋め込みを送信し、成否を返す。
// Webhook登録時の疎通確認に使用する。
func (c *DiscordChannel) TestWebhook(ctx context.Context, webhookURL string) bool {
	if c.validator != nil {
		if err := c.validator.ValidateURL(webhookURL); err != nil {
			return false
		}
	}

	payload := discordWebhookPayload{
		Embeds: []discordEmbed{{
			Title:       "Test Notification",
			Description: "This is a test message to verify your Discord webhook is working correctly.",
			Color:       discordEmbedColor,
			Fields:      []discordEmbedField{},
			Footer:      discordEmbedFooter{Text: appName + " - Test"},
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}

	return c.post(ctx, webhookURL, payload) == nil
}

// TestConnectivity はDiscord APIへの到達性を確認する。
// WebhookのURLはユーザーごとに異なるため、公開エンドポイントで代用する。
func (c *DiscordChannel) TestConnectivity(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// buildEmbed は通知埋め込みを構築する。
// カバー画像は存在する場合のみサムネイルに載せる（欠落時は劣化表示）。
func (c *DiscordChannel) buildEmbed(chapter *model.Chapter, series *model.Series) discordEmbed {
	seriesURL := fmt.Sprintf("%s/series/%s", c.baseURL, series.Slug)
	chapterURL := chapter.ExternalURL
	if chapterURL == "" {
		chapterURL = seriesURL
	}

	embed := discordEmbed{
		Title:       series.Title,
		Description: fmt.Sprintf("**Chapter %s** has been released!", chapter.ChapterNumber),
		Color:       discordEmbedColor,
		Fields: []discordEmbedField{
			{Name: "Release Date", Value: chapter.ReleaseDate.Format("2006-01-02"), Inline: true},
			{Name: "Read Chapter", Value: fmt.Sprintf("[Click here to read](%s)", chapterURL), Inline: true},
		},
		Footer:    discordEmbedFooter{Text: appName},
		Timestamp: chapter.ReleaseDate.UTC().Format(time.RFC3339),
	}

	if series.CoverImage != "" {
		embed.Thumbnail = &discordThumbnail{URL: series.CoverImage}
	}

	return embed
}

// post はWebhookへJSONペイロードをPOSTする。
func (c *DiscordChannel) post(ctx context.Context, webhookURL string, payload discordWebhookPayload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ペイロードの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("Webhookの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Webhookがエラーを返しました: HTTP %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// compile-time interface check
var _ DeliveryChannel = (*DiscordChannel)(nil)
