package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"osis_bot/internal/admission"
	"osis_bot/internal/command"
)

type fakeSender struct {
	lastChatID int64
	lastText   string
	calls      int
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.lastChatID = chatID
	f.lastText = text
	f.calls++
	return nil
}

type fakeCommands struct {
	reply     command.Reply
	lastText  string
	lastActor string
}

func (f *fakeCommands) Handle(ctx context.Context, text, actor string) command.Reply {
	f.lastText = text
	f.lastActor = actor
	return f.reply
}

type fakeDetails struct {
	chatID int64
	ticket string
	err    error
}

func (f *fakeDetails) SendDetail(ctx context.Context, chatID int64, app admission.Application) error {
	f.chatID = chatID
	f.ticket = app.Ticket
	return f.err
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) bool { return false }

func adminUpdate(chatID int64, text string) Update {
	return Update{Message: &Message{
		Chat: Chat{ID: chatID, Type: "group"},
		From: User{ID: 5, Username: "reviewer"},
		Text: text,
	}}
}

func TestBotRepliesToAdminCommand(t *testing.T) {
	sender := &fakeSender{}
	commands := &fakeCommands{reply: command.Reply{Text: "ok"}}
	bot := NewBot(sender, commands, nil, []int64{-100}, nil, slog.Default())

	if err := bot.HandleUpdate(context.Background(), adminUpdate(-100, "/push")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.lastChatID != -100 || sender.lastText != "ok" {
		t.Fatalf("unexpected reply %d %q", sender.lastChatID, sender.lastText)
	}
	if commands.lastActor != "@reviewer" {
		t.Fatalf("expected actor @reviewer, got %q", commands.lastActor)
	}
}

func TestBotIgnoresUnknownChat(t *testing.T) {
	sender := &fakeSender{}
	commands := &fakeCommands{reply: command.Reply{Text: "ok"}}
	bot := NewBot(sender, commands, nil, []int64{-100}, nil, slog.Default())

	if err := bot.HandleUpdate(context.Background(), adminUpdate(42, "/push")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 0 || commands.lastText != "" {
		t.Fatalf("expected update from unknown chat to be ignored")
	}
}

func TestBotIgnoresPlainText(t *testing.T) {
	sender := &fakeSender{}
	commands := &fakeCommands{}
	bot := NewBot(sender, commands, nil, []int64{-100}, nil, slog.Default())

	if err := bot.HandleUpdate(context.Background(), adminUpdate(-100, "halo semua")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no reply, got %d", sender.calls)
	}
}

func TestBotRateLimited(t *testing.T) {
	sender := &fakeSender{}
	commands := &fakeCommands{}
	bot := NewBot(sender, commands, nil, []int64{-100}, denyLimiter{}, slog.Default())

	if err := bot.HandleUpdate(context.Background(), adminUpdate(-100, "/list")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.lastText != rateLimitedText {
		t.Fatalf("expected rate limit reply, got %q", sender.lastText)
	}
	if commands.lastText != "" {
		t.Fatalf("command must not run when rate limited")
	}
}

func TestBotSendsDetail(t *testing.T) {
	sender := &fakeSender{}
	app := admission.Application{Ticket: "OSIS25-123456-A"}
	commands := &fakeCommands{reply: command.Reply{Text: "status", Detail: &app}}
	details := &fakeDetails{}
	bot := NewBot(sender, commands, details, []int64{-100}, nil, slog.Default())

	if err := bot.HandleUpdate(context.Background(), adminUpdate(-100, "/detail OSIS25-123456-A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.chatID != -100 || details.ticket != app.Ticket {
		t.Fatalf("unexpected detail dispatch %d %q", details.chatID, details.ticket)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no text reply on successful detail")
	}
}

func TestBotDetailFailureFallsBackToText(t *testing.T) {
	sender := &fakeSender{}
	app := admission.Application{Ticket: "OSIS25-123456-A"}
	commands := &fakeCommands{reply: command.Reply{Text: "status", Detail: &app}}
	bot := NewBot(sender, commands, &fakeDetails{err: errors.New("down")}, []int64{-100}, nil, slog.Default())

	if err := bot.HandleUpdate(context.Background(), adminUpdate(-100, "/detail OSIS25-123456-A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(sender.lastText, "status") {
		t.Fatalf("expected status text fallback, got %q", sender.lastText)
	}
}

func TestBotWithExecutor(t *testing.T) {
	ctx := context.Background()
	service := admission.NewService(admission.NewMemoryStore(), nil, nil, admission.Options{TicketPrefix: "OSIS"})
	app, err := service.Intake(ctx, admission.Application{FullName: "Rina"})
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	sender := &fakeSender{}
	bot := NewBot(sender, command.NewExecutor(service, nil), nil, []int64{-100}, nil, slog.Default())

	if err := bot.HandleUpdate(ctx, adminUpdate(-100, "/terima@osis_bot "+strings.ToLower(app.Ticket))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sender.lastText, "PENDING_TERIMA") {
		t.Fatalf("expected staging acknowledgment, got %q", sender.lastText)
	}
	got, err := service.Get(ctx, app.Ticket)
	if err != nil || got.Status != admission.StatusPendingAccept {
		t.Fatalf("expected staged status, got %q (%v)", got.Status, err)
	}
}
