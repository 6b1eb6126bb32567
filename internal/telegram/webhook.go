package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"osis_bot/internal/observability"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Update представляет payload обновления Telegram.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
	Caption   string `json:"caption,omitempty"`
	From      User   `json:"from"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
}

// UpdateHandler обрабатывает одно обновление.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update Update) error
}

// WebhookHandler проверяет запросы Telegram webhook и передает обновления.
type WebhookHandler struct {
	handler      UpdateHandler
	secretToken  string
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewWebhookHandler создает обработчик webhook, который проверяет секретный токен Telegram.
func NewWebhookHandler(handler UpdateHandler, secretToken string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		handler:      handler,
		secretToken:  secretToken,
		maxBodyBytes: 1 << 20,
		logger:       logger,
	}
}

// ServeHTTP реализует http.Handler для коллбэков Telegram webhook.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := observability.RequestIDFromContext(r.Context())

	if h.secretToken != "" && r.Header.Get(telegramSecretHeader) != h.secretToken {
		h.logger.Warn("unauthorized webhook request", slog.String("request_id", requestID))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer body.Close()

	payload, err := io.ReadAll(body)
	if err != nil {
		h.logger.Warn("failed to read webhook body", slog.String("request_id", requestID))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var update Update
	if err := json.Unmarshal(payload, &update); err != nil {
		h.logger.Warn("invalid webhook payload", slog.String("request_id", requestID))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.handler.HandleUpdate(r.Context(), update); err != nil {
		h.logger.Error("failed to handle telegram update", slog.String("request_id", requestID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
