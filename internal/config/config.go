package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config хранит конфигурацию времени выполнения бота приема заявок.
type Config struct {
	BotToken       string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL string  `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	ReviewChatID   int64   `env:"REVIEW_CHAT_ID"`
	AdminChatIDs   []int64 `env:"ADMIN_CHAT_IDS" envSeparator:","`

	TelegramTimeout          time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"30s"`
	TelegramPollingEnabled   bool          `env:"TELEGRAM_POLLING_ENABLED" envDefault:"true"`
	TelegramPollingTimeout   time.Duration `env:"TELEGRAM_POLLING_TIMEOUT" envDefault:"25s"`
	TelegramPollingInterval  time.Duration `env:"TELEGRAM_POLLING_INTERVAL" envDefault:"1s"`
	TelegramPollingLimit     int           `env:"TELEGRAM_POLLING_LIMIT" envDefault:"50"`
	TelegramWebhookURL       string        `env:"TELEGRAM_WEBHOOK_URL"`
	WebhookSecret            string        `env:"TELEGRAM_WEBHOOK_SECRET"`
	TelegramInboundRateLimit int           `env:"TELEGRAM_INBOUND_RATE_LIMIT_PER_MIN" envDefault:"30"`

	DatabaseURL     string        `env:"DATABASE_URL"`
	DBDriver        string        `env:"DB_DRIVER" envDefault:"pgx"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxIdle   time.Duration `env:"DB_CONN_MAX_IDLE" envDefault:"5m"`
	DBConnMaxLife   time.Duration `env:"DB_CONN_MAX_LIFE" envDefault:"30m"`
	RedisURL        string        `env:"REDIS_URL"`
	Port            string        `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	UploadRoot      string        `env:"UPLOAD_ROOT" envDefault:"./uploads"`
	UploadFlatDir   string        `env:"UPLOAD_FLAT_DIR" envDefault:"./uploads/files"`
	OverflowDir     string        `env:"OVERFLOW_DIR"`
	TicketPrefix    string        `env:"TICKET_PREFIX" envDefault:"OSIS"`
	AutoPushCommits bool          `env:"AUTO_PUSH_AFTER_COMMIT" envDefault:"false"`

	DispatchMaxAttempts  int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
	DispatchBackoff      time.Duration `env:"DISPATCH_BACKOFF" envDefault:"2s"`
	DispatchSendInterval time.Duration `env:"DISPATCH_SEND_INTERVAL" envDefault:"1s"`

	ShutdownGrace     time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
	ShutdownHardLimit time.Duration `env:"SHUTDOWN_HARD_LIMIT" envDefault:"20s"`
}

// Load читает конфигурацию из переменных окружения.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.TicketPrefix = strings.ToUpper(strings.TrimSpace(cfg.TicketPrefix))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case "pq", "postgresql", "postgres":
		cfg.DBDriver = "postgres"
	case "", "pgx", "pgx/v5":
		cfg.DBDriver = "pgx"
	}

	missing := make([]string, 0, 2)
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.ReviewChatID == 0 {
		missing = append(missing, "REVIEW_CHAT_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	invalid := make([]string, 0, 4)
	if cfg.DispatchMaxAttempts <= 0 {
		invalid = append(invalid, "DISPATCH_MAX_ATTEMPTS")
	}
	if cfg.TelegramPollingLimit <= 0 {
		invalid = append(invalid, "TELEGRAM_POLLING_LIMIT")
	}
	if cfg.TelegramInboundRateLimit < 0 {
		invalid = append(invalid, "TELEGRAM_INBOUND_RATE_LIMIT_PER_MIN")
	}
	if cfg.DBMaxOpenConns <= 0 {
		invalid = append(invalid, "DB_MAX_OPEN_CONNS")
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("values must be positive: %s", strings.Join(invalid, ", "))
	}
	if cfg.DBDriver != "pgx" && cfg.DBDriver != "postgres" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.ShutdownHardLimit < cfg.ShutdownGrace {
		cfg.ShutdownHardLimit = cfg.ShutdownGrace
	}
	return cfg, nil
}

// Admins возвращает чаты, которым разрешены команды. Без ADMIN_CHAT_IDS
// команды принимаются только из чата ревьюеров.
func (c Config) Admins() []int64 {
	if len(c.AdminChatIDs) == 0 {
		return []int64{c.ReviewChatID}
	}
	return c.AdminChatIDs
}
