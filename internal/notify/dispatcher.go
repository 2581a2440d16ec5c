package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/repository"
)

// DispatchResult は1チャプター分のファンアウト結果。
type DispatchResult struct {
	// Sent は送信成功した試行数。
	Sent int
	// Failed は送信失敗した試行数。
	Failed int
	// Declined はチャネルポリシーにより辞退された（試行にならなかった）数。
	Declined int
	// AlreadySent は台帳の送信済み記録により再送をスキップした数
	// （修復パスのみ）。
	AlreadySent int
}

// DeliveryMetrics は配信結果のチャネル別計測点。
type DeliveryMetrics interface {
	RecordNotificationsSent(channel string, count int)
	RecordNotificationsFailed(channel string, count int)
}

// Dispatcher は1チャプターの通知をチャネル横断でファンアウトする。
// チャネルごとに固定サイズのバッチへ分割し、バッチ内は並行送信、
// バッチ間はレートリミッタによるブロッキング休止を挟む。
// 辞退を除く全試行は成否を問わず通知台帳へ1行ずつ記録される。
type Dispatcher struct {
	channels         []DeliveryChannel
	notificationRepo repository.NotificationRepository
	limiters         map[model.ChannelKind]*rate.Limiter
	metrics          DeliveryMetrics
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// バッチ間休止はチャネルのPause()からrate.Every(pause)のリミッタとして構築する。
func NewDispatcher(channels []DeliveryChannel, notificationRepo repository.NotificationRepository) *Dispatcher {
	limiters := make(map[model.ChannelKind]*rate.Limiter, len(channels))
	for _, ch := range channels {
		pause := ch.Pause()
		if pause <= 0 {
			pause = time.Nanosecond
		}
		limiters[ch.Kind()] = rate.NewLimiter(rate.Every(pause), 1)
	}
	return &Dispatcher{
		channels:         channels,
		notificationRepo: notificationRepo,
		limiters:         limiters,
	}
}

// SetMetrics は配信結果の計測先を設定する。未設定の場合は計測しない。
func (d *Dispatcher) SetMetrics(m DeliveryMetrics) {
	d.metrics = m
}

// DispatchChapter は1チャプターの通知を全購読者・全チャネルへ配信する。
// チャネル単位の失敗は局所的に記録され、他の受信者・チャネル・チャプターの
// 処理を妨げない。戻り値のエラーはコンテキストキャンセル時のみ。
func (d *Dispatcher) DispatchChapter(ctx context.Context, chapter *model.Chapter, series *model.Series, subscribers []model.Subscriber) (DispatchResult, error) {
	var result DispatchResult

	for _, ch := range d.channels {
		// このチャネルを有効化している購読者のみ対象
		var recipients []model.Subscriber
		for _, sub := range subscribers {
			if sub.HasChannel(ch.Kind()) {
				recipients = append(recipients, sub)
			}
		}
		if len(recipients) == 0 {
			continue
		}

		chResult, err := d.dispatchChannel(ctx, ch, chapter, series, recipients)
		result.Sent += chResult.Sent
		result.Failed += chResult.Failed
		result.Declined += chResult.Declined
		if err != nil {
			return result, err
		}
	}

	d.logResult(chapter, series, result)
	return result, nil
}

// RedispatchChapter は修復パス用のファンアウト。通常のDispatchChapterと
// 同じバッチ配信を行うが、台帳に送信成功記録が既にある
// (購読者, チャネル) の組は再送せずスキップする。
// クラッシュでis_processed=falseのまま残ったチャプターの二重通知を防ぐ。
func (d *Dispatcher) RedispatchChapter(ctx context.Context, chapter *model.Chapter, series *model.Series, subscribers []model.Subscriber) (DispatchResult, error) {
	var result DispatchResult

	for _, ch := range d.channels {
		var recipients []model.Subscriber
		for _, sub := range subscribers {
			if !sub.HasChannel(ch.Kind()) {
				continue
			}
			sent, err := d.notificationRepo.ExistsSent(ctx, sub.User.ID, chapter.ID, ch.Kind())
			if err != nil {
				return result, err
			}
			if sent {
				result.AlreadySent++
				continue
			}
			recipients = append(recipients, sub)
		}
		if len(recipients) == 0 {
			continue
		}

		chResult, err := d.dispatchChannel(ctx, ch, chapter, series, recipients)
		result.Sent += chResult.Sent
		result.Failed += chResult.Failed
		result.Declined += chResult.Declined
		if err != nil {
			return result, err
		}
	}

	d.logResult(chapter, series, result)
	return result, nil
}

// logResult はファンアウト結果の概要ログを出力する。
func (d *Dispatcher) logResult(chapter *model.Chapter, series *model.Series, result DispatchResult) {
	slog.Info("チャプター通知のファンアウト完了",
		slog.Int64("chapter_id", chapter.ID),
		slog.String("series_title", series.Title),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Int("declined", result.Declined),
		slog.Int("already_sent", result.AlreadySent),
	)
}

// dispatchChannel は1チャネル分の配信をバッチ単位で実行する。
func (d *Dispatcher) dispatchChannel(ctx context.Context, ch DeliveryChannel, chapter *model.Chapter, series *model.Series, recipients []model.Subscriber) (DispatchResult, error) {
	var result DispatchResult
	limiter := d.limiters[ch.Kind()]
	batchSize := ch.BatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	for i := 0; i < len(recipients); i += batchSize {
		// バッチ間休止: リミッタのブロッキング待機（初回は即時通過）
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result, err
			}
		}

		end := i + batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[i:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, sub := range batch {
			wg.Add(1)
			go func(sub model.Subscriber) {
				defer wg.Done()
				outcome := d.attempt(ctx, ch, sub, chapter, series)
				mu.Lock()
				result.Sent += outcome.Sent
				result.Failed += outcome.Failed
				result.Declined += outcome.Declined
				mu.Unlock()
			}(sub)
		}
		wg.Wait()
	}

	if d.metrics != nil {
		if result.Sent > 0 {
			d.metrics.RecordNotificationsSent(string(ch.Kind()), result.Sent)
		}
		if result.Failed > 0 {
			d.metrics.RecordNotificationsFailed(string(ch.Kind()), result.Failed)
		}
	}

	return result, nil
}

// attempt は1件の配信試行を実行し、辞退でなければ台帳へ記録する。
func (d *Dispatcher) attempt(ctx context.Context, ch DeliveryChannel, sub model.Subscriber, chapter *model.Chapter, series *model.Series) DispatchResult {
	sendErr := ch.Send(ctx, sub, chapter, series)

	// 辞退: ユーザー設定による配信対象外。試行ではないため記録しない。
	if errors.Is(sendErr, model.ErrDeliveryDeclined) {
		slog.Debug("チャネルポリシーにより配信を辞退",
			slog.String("user_id", sub.User.ID),
			slog.String("channel", string(ch.Kind())),
			slog.String("reason", sendErr.Error()),
		)
		return DispatchResult{Declined: 1}
	}

	record := &model.NotificationRecord{
		UserID:    sub.User.ID,
		ChapterID: chapter.ID,
		Channel:   ch.Kind(),
	}

	if sendErr != nil {
		record.Status = model.NotificationStatusFailed
		record.ErrorMessage = sendErr.Error()
		slog.Warn("通知の配信に失敗",
			slog.String("user_id", sub.User.ID),
			slog.String("channel", string(ch.Kind())),
			slog.Int64("chapter_id", chapter.ID),
			slog.String("error", sendErr.Error()),
		)
	} else {
		now := time.Now()
		record.Status = model.NotificationStatusSent
		record.SentAt = &now
	}

	if err := d.notificationRepo.Create(ctx, record); err != nil {
		// 台帳への記録失敗は配信自体を巻き戻せないため、ログに残すのみ
		slog.Error("通知記録の追記に失敗",
			slog.String("user_id", sub.User.ID),
			slog.String("channel", string(ch.Kind())),
			slog.Int64("chapter_id", chapter.ID),
			slog.String("error", err.Error()),
		)
	}

	if sendErr != nil {
		return DispatchResult{Failed: 1}
	}
	return DispatchResult{Sent: 1}
}
