package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("REVIEW_CHAT_ID", "-1001234")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.telegram.org", cfg.TelegramAPIURL)
	assert.Equal(t, int64(-1001234), cfg.ReviewChatID)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, "OSIS", cfg.TicketPrefix)
	assert.Equal(t, 3, cfg.DispatchMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.DispatchBackoff)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, 20*time.Second, cfg.ShutdownHardLimit)
	assert.True(t, cfg.TelegramPollingEnabled)
	assert.False(t, cfg.AutoPushCommits)
	assert.Equal(t, []int64{-1001234}, cfg.Admins())
}

func TestLoadMissingRequired(t *testing.T) {
	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "REVIEW_CHAT_ID"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
	assert.Contains(t, err.Error(), "REVIEW_CHAT_ID")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_CHAT_IDS", "1,2,3")
	t.Setenv("DB_DRIVER", "postgresql")
	t.Setenv("TICKET_PREFIX", "osis")
	t.Setenv("AUTO_PUSH_AFTER_COMMIT", "true")
	t.Setenv("DISPATCH_SEND_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, cfg.Admins())
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "OSIS", cfg.TicketPrefix)
	assert.True(t, cfg.AutoPushCommits)
	assert.Equal(t, 250*time.Millisecond, cfg.DispatchSendInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISPATCH_MAX_ATTEMPTS")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	assert.Error(t, err)
}
