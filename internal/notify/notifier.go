package notify

import (
	"context"
	"log/slog"
	"sync"

	"osis_bot/internal/admission"
	"osis_bot/internal/media"
	"osis_bot/internal/metrics"
)

// MediaResolver находит вложения заявки.
type MediaResolver interface {
	Resolve(ctx context.Context, app admission.Application) []media.Item
}

// Notifier собирает и доставляет уведомления ревьюерам. События сервиса
// обрабатываются в фоне, Wait дожидается незавершенных задач.
type Notifier struct {
	chatID     int64
	composer   *Composer
	resolver   MediaResolver
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotifier создает Notifier для чата ревьюеров chatID.
func NewNotifier(chatID int64, composer *Composer, resolver MediaResolver, dispatcher *Dispatcher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		chatID:     chatID,
		composer:   composer,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// NotifyApplication синхронно отправляет полную карточку заявки в chatID.
func (n *Notifier) NotifyApplication(ctx context.Context, chatID int64, app admission.Application, header string) Report {
	msg := n.composer.Compose(app, header)
	var items []media.Item
	if n.resolver != nil {
		items = n.resolver.Resolve(ctx, app)
	}
	return n.dispatcher.Dispatch(ctx, Job{
		ChatID:   chatID,
		Ticket:   app.Ticket,
		Text:     msg.Text,
		Media:    items,
		Overflow: msg.Overflow,
	})
}

// SendDetail отправляет карточку заявки по запросу /detail.
func (n *Notifier) SendDetail(ctx context.Context, chatID int64, app admission.Application) error {
	report := n.NotifyApplication(ctx, chatID, app, HeaderDetail)
	return report.Err
}

// ApplicationReceived ставит в фон уведомление о новой заявке.
func (n *Notifier) ApplicationReceived(ctx context.Context, app admission.Application) {
	n.spawn(ctx, func(ctx context.Context) {
		report := n.NotifyApplication(ctx, n.chatID, app, HeaderIntake)
		n.logReport("intake notification", app.Ticket, report)
	})
}

// CommitCompleted ставит в фон итог пакетной фиксации.
func (n *Notifier) CommitCompleted(ctx context.Context, result admission.CommitResult) {
	metrics.RecordCommit(result.Accepted, result.Rejected, result.Failed)
	text := n.composer.ComposeCommitSummary(result)
	n.spawn(ctx, func(ctx context.Context) {
		report := n.dispatcher.Dispatch(ctx, Job{ChatID: n.chatID, Text: text})
		n.logReport("commit summary", "", report)
	})
}

// Wait дожидается фоновых задач или отмены ctx. События, пришедшие после
// вызова Wait, доставляются синхронно.
func (n *Notifier) Wait(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) spawn(ctx context.Context, job func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.logger.Warn("notifier is shutting down, delivering inline")
		job(ctx)
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()
	go func() {
		defer n.wg.Done()
		job(ctx)
	}()
}

func (n *Notifier) logReport(kind, ticket string, report Report) {
	attrs := []any{
		slog.String("ticket", ticket),
		slog.Int("attempts", report.Attempts),
		slog.Bool("degraded", report.Degraded),
	}
	switch {
	case !report.Delivered:
		n.logger.Error(kind+" not delivered", append(attrs, slog.String("error", errString(report.Err)))...)
	case report.Degraded:
		n.logger.Warn(kind+" delivered as text only", attrs...)
	default:
		n.logger.Info(kind+" delivered", attrs...)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
