package telegram

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"osis_bot/internal/command"
)

func TestWebhookUnauthorized(t *testing.T) {
	sender := &fakeSender{}
	bot := NewBot(sender, &fakeCommands{}, nil, []int64{12}, nil, slog.Default())
	handler := NewWebhookHandler(bot, "secret", slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewBufferString(`{"update_id":1}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Result().StatusCode)
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	handler := NewWebhookHandler(NewBot(&fakeSender{}, &fakeCommands{}, nil, nil, nil, nil), "", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	if rec.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Result().StatusCode)
	}
}

func TestWebhookInvalidPayload(t *testing.T) {
	handler := NewWebhookHandler(NewBot(&fakeSender{}, &fakeCommands{}, nil, nil, nil, nil), "", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewBufferString(`{`)))
	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Result().StatusCode)
	}
}

func TestWebhookSuccess(t *testing.T) {
	sender := &fakeSender{}
	bot := NewBot(sender, &fakeCommands{reply: command.Reply{Text: "bantuan"}}, nil, []int64{12}, nil, slog.Default())
	handler := NewWebhookHandler(bot, "secret", slog.Default())

	payload := `{"update_id":1,"message":{"message_id":1,"chat":{"id":12,"type":"private"},"text":"/help"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewBufferString(payload))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "secret")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Result().StatusCode)
	}
	if sender.lastChatID != 12 {
		t.Fatalf("expected chat id 12, got %d", sender.lastChatID)
	}
}
