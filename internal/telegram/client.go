package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"osis_bot/internal/media"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	parseModeHTML  = "HTML"
)

// APIError описывает неуспешный ответ Bot API.
type APIError struct {
	StatusCode  int
	Method      string
	Description string
	RetryAfter  int
	Body        string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Body)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Client вызывает методы Telegram Bot API.
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

// NewClient создает клиента Bot API. Пустой baseURL означает api.telegram.org.
func NewClient(baseURL, botToken string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, botToken: botToken, httpClient: httpClient}
}

// SendMessage отправляет текст с HTML-разметкой.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               parseModeHTML,
		"disable_web_page_preview": true,
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendPhoto загружает одно фото с подписью.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, item media.Item) error {
	fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if item.Caption != "" {
		fields["caption"] = item.Caption
		fields["parse_mode"] = parseModeHTML
	}
	return c.upload(ctx, "sendPhoto", fields, []formFile{{field: "photo", path: item.Path}})
}

// SendDocument загружает документ. Подпись документа отправляется без разметки.
func (c *Client) SendDocument(ctx context.Context, chatID int64, item media.Item) error {
	fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if item.Caption != "" {
		fields["caption"] = item.Caption
	}
	return c.upload(ctx, "sendDocument", fields, []formFile{{field: "document", path: item.Path}})
}

type inputMedia struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMediaGroup загружает альбом из 2-10 фото.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, items []media.Item) error {
	if len(items) < 2 || len(items) > 10 {
		return fmt.Errorf("telegram sendMediaGroup: album must contain 2-10 items, got %d", len(items))
	}
	group := make([]inputMedia, 0, len(items))
	files := make([]formFile, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("file%d", i)
		entry := inputMedia{Type: "photo", Media: "attach://" + field}
		if item.Kind == media.KindDocument {
			entry.Type = "document"
		}
		if item.Caption != "" {
			entry.Caption = item.Caption
			if entry.Type == "photo" {
				entry.ParseMode = parseModeHTML
			}
		}
		group = append(group, entry)
		files = append(files, formFile{field: field, path: item.Path})
	}
	encoded, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("telegram sendMediaGroup encode: %w", err)
	}
	fields := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"media":   string(encoded),
	}
	return c.upload(ctx, "sendMediaGroup", fields, files)
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s encode: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

type formFile struct {
	field string
	path  string
}

func (c *Client) upload(ctx context.Context, method string, fields map[string]string, files []formFile) error {
	for _, file := range files {
		if _, err := os.Stat(file.path); err != nil {
			return fmt.Errorf("telegram %s attachment: %w", method, err)
		}
	}
	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeForm(form, fields, files))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), reader)
	if err != nil {
		_ = reader.CloseWithError(err)
		return fmt.Errorf("telegram %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(req, method, nil)
}

func writeForm(form *multipart.Writer, fields map[string]string, files []formFile) error {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := form.WriteField(key, fields[key]); err != nil {
			return err
		}
	}
	for _, file := range files {
		if err := writeFile(form, file); err != nil {
			return err
		}
	}
	return form.Close()
}

func writeFile(form *multipart.Writer, file formFile) error {
	f, err := os.Open(file.path)
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()
	part, err := form.CreateFormFile(file.field, filepath.Base(file.path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s read: %w", method, err)
	}
	var parsed apiResponse
	decodeErr := json.Unmarshal(payload, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decodeErr != nil || !parsed.OK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Description: parsed.Description}
		if parsed.Parameters != nil {
			apiErr.RetryAfter = parsed.Parameters.RetryAfter
		}
		if apiErr.Description == "" {
			apiErr.Body = string(truncate(payload, 4<<10))
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return fmt.Errorf("telegram %s decode: %w", method, err)
		}
	}
	return nil
}

func truncate(payload []byte, limit int) []byte {
	if len(payload) > limit {
		return payload[:limit]
	}
	return payload
}
