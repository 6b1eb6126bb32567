package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"osis_bot/internal/media"
	"osis_bot/internal/metrics"
)

// AlbumLimit ограничивает число элементов в одном альбоме.
const AlbumLimit = 10

// Sender отправляет содержимое во внешний канал.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, item media.Item) error
	SendMediaGroup(ctx context.Context, chatID int64, items []media.Item) error
	SendDocument(ctx context.Context, chatID int64, item media.Item) error
}

// Job описывает одну задачу уведомления.
type Job struct {
	ChatID   int64
	Ticket   string
	Text     string
	Media    []media.Item
	Overflow []Overflow
}

// Report описывает итог доставки. Ошибка доставки не возвращается
// вызывающему как error.
type Report struct {
	Delivered bool
	Degraded  bool
	Attempts  int
	Err       error
}

// Dispatcher доставляет уведомления с повторами, деградацией до текста
// и паузами между отправками.
type Dispatcher struct {
	sender   Sender
	policy   Policy
	interval time.Duration
	logger   *slog.Logger
}

// NewDispatcher создает Dispatcher.
func NewDispatcher(sender Sender, policy Policy, interval time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, policy: policy, interval: interval, logger: logger}
}

// Dispatch выполняет задачу. Сгенерированные файлы удаляются при любом исходе.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) Report {
	defer d.cleanup(job)

	logger := d.logger.With(slog.String("ticket", job.Ticket), slog.Int64("chat_id", job.ChatID))
	report := Report{}
	degraded, err := WithFallback(ctx, func(ctx context.Context) error {
		attempts, err := Attempt(ctx, d.policy, func(ctx context.Context, _ int) error {
			return d.deliver(ctx, job)
		}, func(attempt int, err error, wait time.Duration) {
			logger.Warn("dispatch attempt failed",
				slog.Int("attempt", attempt),
				slog.Duration("retry_in", wait),
				slog.String("error", err.Error()),
			)
		})
		report.Attempts = attempts
		if err != nil {
			logger.Error("dispatch retries exhausted, falling back to text",
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
		}
		return err
	}, func(ctx context.Context) error {
		return d.sendText(ctx, job.ChatID, job.Text, d.newPacer())
	})

	report.Degraded = degraded
	report.Err = err
	switch {
	case err != nil:
		logger.Error("dispatch failed", slog.String("error", err.Error()))
		metrics.RecordDispatch(metrics.DispatchFailed)
	case degraded:
		report.Delivered = true
		metrics.RecordDispatch(metrics.DispatchDegraded)
	default:
		report.Delivered = true
		metrics.RecordDispatch(metrics.DispatchDelivered)
	}
	return report
}

// SendMessage отправляет текст частями без повторов, для ответов на команды.
func (d *Dispatcher) SendMessage(ctx context.Context, chatID int64, text string) error {
	return d.sendText(ctx, chatID, text, d.newPacer())
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) error {
	pacer := d.newPacer()
	photos, documents := partition(job.Media)
	text := job.Text

	switch {
	case len(photos) >= 2:
		caption, rest := splitCaption(text)
		for i, group := range albums(photos) {
			items := append([]media.Item(nil), group...)
			if i == 0 {
				items[0].Caption = caption
			}
			if err := pacer.Wait(ctx); err != nil {
				return err
			}
			if err := d.sender.SendMediaGroup(ctx, job.ChatID, items); err != nil {
				return fmt.Errorf("send album: %w", err)
			}
		}
		text = rest
	case len(photos) == 1:
		caption, rest := splitCaption(text)
		photo := photos[0]
		photo.Caption = caption
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		if err := d.sender.SendPhoto(ctx, job.ChatID, photo); err != nil {
			return fmt.Errorf("send photo: %w", err)
		}
		text = rest
	}

	if err := d.sendText(ctx, job.ChatID, text, pacer); err != nil {
		return err
	}

	for _, doc := range documents {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		if err := d.sender.SendDocument(ctx, job.ChatID, doc); err != nil {
			return fmt.Errorf("send document %s: %w", doc.Ref, err)
		}
	}
	for _, overflow := range job.Overflow {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		doc := media.Item{Kind: media.KindDocument, Ref: overflow.Field, Path: overflow.Path, Caption: overflow.Caption}
		if err := d.sender.SendDocument(ctx, job.ChatID, doc); err != nil {
			return fmt.Errorf("send overflow %s: %w", overflow.Field, err)
		}
	}
	return nil
}

func (d *Dispatcher) sendText(ctx context.Context, chatID int64, text string, pacer *rate.Limiter) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range SplitChunks(text, MessageLimit) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		if err := d.sender.SendMessage(ctx, chatID, chunk); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) newPacer() *rate.Limiter {
	if d.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d.interval), 1)
}

func (d *Dispatcher) cleanup(job Job) {
	for _, overflow := range job.Overflow {
		if err := os.Remove(overflow.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("overflow cleanup failed", slog.String("path", overflow.Path), slog.String("error", err.Error()))
		}
	}
}

func partition(items []media.Item) (photos, documents []media.Item) {
	for _, item := range items {
		switch item.Kind {
		case media.KindPhoto:
			photos = append(photos, item)
		default:
			documents = append(documents, item)
		}
	}
	return photos, documents
}

func albums(photos []media.Item) [][]media.Item {
	groups := make([][]media.Item, 0, len(photos)/AlbumLimit+1)
	for len(photos) > AlbumLimit {
		groups = append(groups, photos[:AlbumLimit])
		photos = photos[AlbumLimit:]
	}
	if len(photos) == 1 && len(groups) > 0 {
		last := groups[len(groups)-1]
		groups[len(groups)-1] = last[:len(last)-1]
		photos = append([]media.Item{last[len(last)-1]}, photos...)
	}
	if len(photos) > 0 {
		groups = append(groups, photos)
	}
	return groups
}
