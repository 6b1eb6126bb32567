package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GetUpdates запрашивает обновления через long polling.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration, limit int) ([]Update, error) {
	payload := map[string]any{
		"allowed_updates": []string{"message"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}
	if timeout > 0 {
		seconds := int(timeout.Round(time.Second).Seconds())
		if seconds > 50 {
			seconds = 50
		}
		payload["timeout"] = seconds
	}
	if limit > 0 {
		if limit > 100 {
			limit = 100
		}
		payload["limit"] = limit
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// DeleteWebhook отключает webhook перед переходом на polling.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	payload := map[string]any{}
	if dropPending {
		payload["drop_pending_updates"] = true
	}
	return c.call(ctx, "deleteWebhook", payload, nil)
}

// SetWebhook регистрирует URL для доставки обновлений.
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string, dropPending bool) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("telegram setWebhook: url is required")
	}
	payload := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	if secretToken != "" {
		payload["secret_token"] = secretToken
	}
	if dropPending {
		payload["drop_pending_updates"] = true
	}
	return c.call(ctx, "setWebhook", payload, nil)
}
