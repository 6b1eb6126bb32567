package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"osis_bot/internal/admission"
	"osis_bot/internal/command"
	"osis_bot/internal/metrics"
	"osis_bot/internal/ratelimit"
)

const rateLimitedText = "⏳ Terlalu banyak perintah. Tunggu sebentar lalu coba lagi."

// Sender отправляет текстовые ответы.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// CommandHandler исполняет текст команды от имени actor.
type CommandHandler interface {
	Handle(ctx context.Context, text, actor string) command.Reply
}

// DetailSender отправляет полную карточку заявки с вложениями.
type DetailSender interface {
	SendDetail(ctx context.Context, chatID int64, app admission.Application) error
}

// Bot принимает команды ревьюеров из разрешенных чатов.
type Bot struct {
	sender   Sender
	commands CommandHandler
	details  DetailSender
	admins   map[int64]struct{}
	limiter  ratelimit.Limiter
	logger   *slog.Logger
}

// NewBot создает обработчик команд. admins перечисляет чаты, которым разрешены команды.
func NewBot(sender Sender, commands CommandHandler, details DetailSender, admins []int64, limiter ratelimit.Limiter, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	allowed := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		allowed[id] = struct{}{}
	}
	return &Bot{
		sender:   sender,
		commands: commands,
		details:  details,
		admins:   allowed,
		limiter:  limiter,
		logger:   logger,
	}
}

// HandleUpdate маршрутизирует команды. Сообщения без "/" и сообщения из
// неизвестных чатов игнорируются.
func (b *Bot) HandleUpdate(ctx context.Context, update Update) error {
	if update.Message == nil {
		return nil
	}
	msg := update.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	chatID := msg.Chat.ID
	if _, ok := b.admins[chatID]; !ok {
		b.logger.Warn("command from unauthorized chat", slog.Int64("chat_id", chatID), slog.Int64("user_id", msg.From.ID))
		return nil
	}
	if !b.limiter.Allow(ctx, strconv.FormatInt(chatID, 10)) {
		metrics.RecordCommand("rate_limited")
		return b.sender.SendMessage(ctx, chatID, rateLimitedText)
	}

	actor := actorName(msg.From)
	reply := b.commands.Handle(ctx, text, actor)
	label := commandLabel(text)
	metrics.RecordCommand(label)
	b.logger.Info("command handled", slog.Int64("chat_id", chatID), slog.String("actor", actor), slog.String("command", label))

	if reply.Detail != nil && b.details != nil {
		if err := b.details.SendDetail(ctx, chatID, *reply.Detail); err != nil {
			b.logger.Error("detail dispatch failed", slog.String("ticket", reply.Detail.Ticket), slog.String("error", err.Error()))
			return b.sender.SendMessage(ctx, chatID, reply.Text+"\n⚠️ Data lengkap gagal dikirim.")
		}
		return nil
	}
	if err := b.sender.SendMessage(ctx, chatID, reply.Text); err != nil {
		return fmt.Errorf("telegram reply failed: %w", err)
	}
	return nil
}

func actorName(user User) string {
	switch {
	case user.Username != "":
		return "@" + user.Username
	case user.FirstName != "":
		return user.FirstName
	case user.ID != 0:
		return "tg:" + strconv.FormatInt(user.ID, 10)
	default:
		return "telegram"
	}
}

func commandLabel(text string) string {
	cmd, _ := command.Parse(text)
	if cmd.Name == "" {
		return "unknown"
	}
	return string(cmd.Name)
}
