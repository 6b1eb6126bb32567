package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// UpdateSource отдает обновления через getUpdates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration, limit int) ([]Update, error)
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

// Poller получает обновления через long polling и передает их обработчику.
type Poller struct {
	source   UpdateSource
	handler  UpdateHandler
	logger   *slog.Logger
	timeout  time.Duration
	interval time.Duration
	limit    int
}

// NewPoller создает Poller.
func NewPoller(source UpdateSource, handler UpdateHandler, logger *slog.Logger, timeout, interval time.Duration, limit int) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		source:   source,
		handler:  handler,
		logger:   logger,
		timeout:  timeout,
		interval: interval,
		limit:    limit,
	}
}

// Run опрашивает Bot API до отмены ctx. Ошибки обработки отдельных
// обновлений логируются и не останавливают цикл.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.source.DeleteWebhook(ctx, false); err != nil {
		p.logger.Warn("telegram delete webhook failed", slog.String("error", err.Error()))
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout, p.limit)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			p.logger.Warn("telegram get updates failed", slog.String("error", err.Error()))
			if !sleep(ctx, p.interval) {
				return nil
			}
			continue
		}
		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if err := p.handler.HandleUpdate(ctx, update); err != nil {
				p.logger.Error("failed to handle telegram update",
					slog.Int64("update_id", update.UpdateID),
					slog.String("error", err.Error()),
				)
			}
		}
		if len(updates) == 0 && p.timeout <= 0 {
			if !sleep(ctx, p.interval) {
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
