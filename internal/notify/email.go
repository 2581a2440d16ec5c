package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	texttemplate "text/template"

	"github.com/hitoshi/shinkan/internal/model"
)

const (
	// emailBatchSize はメール配信の同時送信バッチ上限。
	emailBatchSize = 10
	// emailBatchPause はメールバッチ間の休止時間。
	emailBatchPause = 1 * time.Second

	appName = "Shinkan"
)

// EmailChannel はResend系のHTTP JSON APIでメール通知を配信する
// DeliveryChannelの実装。
type EmailChannel struct {
	apiURL    string
	apiKey    string
	fromEmail string
	baseURL   string
	client    *http.Client
	htmlTmpl  *template.Template
	textTmpl  *texttemplate.Template
}

// EmailChannelConfig はEmailChannelの生成パラメータ。
type EmailChannelConfig struct {
	// APIURL はメールAPIのエンドポイント。空の場合はResendのデフォルト。
	APIURL string
	// APIKey はメールAPIのBearerトークン。
	APIKey string
	// FromEmail は送信元アドレス。
	FromEmail string
	// BaseURL はアプリケーションの公開URL（解除リンクの生成に使用）。
	BaseURL string
	// Timeout はAPI呼び出しのタイムアウト。
	Timeout time.Duration
}

// NewEmailChannel はEmailChannelの新しいインスタンスを生成する。
// テンプレートはパッケージ定数から一度だけパースする。
func NewEmailChannel(cfg EmailChannelConfig) (*EmailChannel, error) {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.resend.com/emails"
	}

	htmlTmpl, err := template.New("chapter_email_html").Parse(chapterEmailHTML)
	if err != nil {
		return nil, fmt.Errorf("HTMLテンプレートのパースに失敗しました: %w", err)
	}
	textTmpl, err := texttemplate.New("chapter_email_text").Parse(chapterEmailText)
	if err != nil {
		return nil, fmt.Errorf("テキストテンプレートのパースに失敗しました: %w", err)
	}

	return &EmailChannel{
		apiURL:    apiURL,
		apiKey:    cfg.APIKey,
		fromEmail: cfg.FromEmail,
		baseURL:   cfg.BaseURL,
		client:    &http.Client{Timeout: cfg.Timeout},
		htmlTmpl:  htmlTmpl,
		textTmpl:  textTmpl,
	}, nil
}

// Kind はチャネル種別を返す。
func (c *EmailChannel) Kind() model.ChannelKind { return model.ChannelEmail }

// BatchSize はメール配信のバッチ上限を返す。
func (c *EmailChannel) BatchSize() int { return emailBatchSize }

// Pause はバッチ間の休止時間を返す。
func (c *EmailChannel) Pause() time.Duration { return emailBatchPause }

// emailBody はテンプレートへ渡す描画データ。
type emailBody struct {
	UserName       string
	SeriesTitle    string
	ChapterNumber  string
	ChapterTitle   string
	ReleaseDate    string
	ChapterURL     string
	SeriesURL      string
	UnsubscribeURL string
	AppName        string
}

// sendEmailRequest はメールAPIへのリクエストボディ。
type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// Send は1人の購読者へチャプター通知メールを配信する。
// ユーザーがメール通知を無効化している場合はErrDeliveryDeclinedを返す。
func (c *EmailChannel) Send(ctx context.Context, sub model.Subscriber, chapter *model.Chapter, series *model.Series) error {
	if !sub.User.EmailNotifications {
		return fmt.Errorf("%w: ユーザーがメール通知を無効化しています", model.ErrDeliveryDeclined)
	}
	if c.apiKey == "" {
		return fmt.Errorf("メールAPIキーが未設定です")
	}

	body := c.renderData(sub, chapter, series)

	var htmlBuf, textBuf bytes.Buffer
	if err := c.htmlTmpl.Execute(&htmlBuf, body); err != nil {
		return fmt.Errorf("HTML本文の描画に失敗しました: %w", err)
	}
	if err := c.textTmpl.Execute(&textBuf, body); err != nil {
		return fmt.Errorf("テキスト本文の描画に失敗しました: %w", err)
	}

	payload := sendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", appName, c.fromEmail),
		To:      []string{sub.User.Email},
		Subject: fmt.Sprintf("New Chapter: %s - Chapter %s", series.Title, chapter.ChapterNumber),
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("メールAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("メールAPIがエラーを返しました: HTTP %d: %s", resp.StatusCode, string(detail))
	}

	slog.Debug("メール通知を送信",
		slog.String("user_id", sub.User.ID),
		slog.Int64("chapter_id", chapter.ID),
	)
	return nil
}

// TestConnectivity はメールAPIへの到達性を確認する。
// 認証なしGETでも応答が返ればエンドポイント自体には到達できている。
func (c *EmailChannel) TestConnectivity(ctx context.Context) bool {
	if c.apiKey == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return true
}

// renderData はテンプレート描画用データを構築する。
func (c *EmailChannel) renderData(sub model.Subscriber, chapter *model.Chapter, series *model.Series) emailBody {
	name := sub.User.Name
	if name == "" {
		name = "there"
	}

	seriesURL := fmt.Sprintf("%s/series/%s", c.baseURL, series.Slug)
	chapterURL := chapter.ExternalURL
	if chapterURL == "" {
		chapterURL = seriesURL
	}

	token := EncodeUnsubscribeToken(sub.User.ID, series.ID)

	return emailBody{
		UserName:       name,
		SeriesTitle:    series.Title,
		ChapterNumber:  chapter.ChapterNumber,
		ChapterTitle:   chapter.Title,
		ReleaseDate:    chapter.ReleaseDate.Format("2006-01-02"),
		ChapterURL:     chapterURL,
		SeriesURL:      seriesURL,
		UnsubscribeURL: fmt.Sprintf("%s/unsubscribe?token=%s", c.baseURL, token),
		AppName:        appName,
	}
}

// chapterEmailHTML は通知メールのHTML本文テンプレート。
const chapterEmailHTML = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>New Chapter Released</title>
  </head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: #667eea; color: white; padding: 20px; border-radius: 8px 8px 0 0; text-align: center;">
      <h1>New Chapter Released!</h1>
    </div>
    <div style="background: #f9f9f9; padding: 30px; border-radius: 0 0 8px 8px;">
      <p>Hi {{.UserName}},</p>
      <p>A new chapter has been released for one of your subscribed series:</p>
      <div style="background: white; padding: 20px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #667eea;">
        <h2 style="margin-top: 0; color: #667eea;">{{.SeriesTitle}}</h2>
        <p><strong>Chapter:</strong> {{.ChapterNumber}}</p>
        <p><strong>Released:</strong> {{.ReleaseDate}}</p>
      </div>
      <div style="text-align: center; margin: 30px 0;">
        <a href="{{.ChapterURL}}" style="display: inline-block; background: #667eea; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; font-weight: bold;">Read Chapter</a>
      </div>
      <p>Happy reading!</p>
      <div style="text-align: center; margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 12px; color: #666;">
        <p>You're receiving this because you subscribed to notifications for "{{.SeriesTitle}}".</p>
        <p><a href="{{.UnsubscribeURL}}" style="color: #999;">Unsubscribe from this series</a></p>
      </div>
    </div>
  </body>
</html>
`

// chapterEmailText は通知メールのプレーンテキスト本文テンプレート。
const chapterEmailText = `New Chapter Released!

Hi {{.UserName}},

A new chapter has been released for "{{.SeriesTitle}}":

Chapter: {{.ChapterNumber}}
Released: {{.ReleaseDate}}

Read the chapter: {{.ChapterURL}}

To unsubscribe from "{{.SeriesTitle}}": {{.UnsubscribeURL}}

Happy reading!

---
{{.AppName}}
`

// compile-time interface check
var _ DeliveryChannel = (*EmailChannel)(nil)
