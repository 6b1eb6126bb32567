// Package recruitbot собирает сервис приема заявок и управляет его жизненным циклом.
package recruitbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"osis_bot/internal/admission"
	"osis_bot/internal/command"
	"osis_bot/internal/config"
	"osis_bot/internal/database"
	"osis_bot/internal/httpapi"
	"osis_bot/internal/logging"
	"osis_bot/internal/media"
	"osis_bot/internal/notify"
	"osis_bot/internal/ratelimit"
	"osis_bot/internal/store/postgres"
	"osis_bot/internal/telegram"
)

const webhookPath = "/telegram/webhook"

// Run запускает бота и блокирует выполнение до остановки.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg.RedisURL, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("redis close failed", slog.String("error", err.Error()))
			}
		}()
	}

	var (
		db    *sqlx.DB
		store admission.Store
	)
	if cfg.DatabaseURL == "" {
		logger.Warn("database url missing, using in-memory store")
		store = admission.NewMemoryStore()
	} else {
		db, err = database.NewPostgres(ctx, database.PostgresConfig{
			Driver:          cfg.DBDriver,
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxIdle:     cfg.DBConnMaxIdle,
			ConnMaxLifetime: cfg.DBConnMaxLife,
			PingTimeout:     15 * time.Second,
		}, logger)
		if err != nil {
			return fmt.Errorf("database connect failed: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return err
		}
		store = postgres.NewApplicationStore(db)
	}

	telegramClient := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, &http.Client{Timeout: cfg.TelegramTimeout})

	resolver := media.NewResolver(media.Config{Root: cfg.UploadRoot, FlatDir: cfg.UploadFlatDir}, logger)
	composer := notify.NewComposer(cfg.OverflowDir, logger)
	policy := notify.DefaultPolicy()
	policy.MaxAttempts = cfg.DispatchMaxAttempts
	if cfg.DispatchBackoff > 0 {
		policy.InitialBackoff = cfg.DispatchBackoff
	}
	dispatcher := notify.NewDispatcher(telegramClient, policy, cfg.DispatchSendInterval, logger)
	notifier := notify.NewNotifier(cfg.ReviewChatID, composer, resolver, dispatcher, logger)

	service := admission.NewService(store, notifier, logger, admission.Options{
		TicketPrefix: cfg.TicketPrefix,
		AutoPush:     cfg.AutoPushCommits,
	})
	executor := command.NewExecutor(service, logger)

	var inboundLimiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.TelegramInboundRateLimit > 0 {
		if redisClient != nil {
			inboundLimiter = ratelimit.NewRedisLimiter(redisClient, cfg.TelegramInboundRateLimit, time.Minute, "telegram:inbound")
		} else {
			inboundLimiter = ratelimit.NewMemoryLimiter(cfg.TelegramInboundRateLimit, time.Minute)
		}
	}
	bot := telegram.NewBot(dispatcher, executor, notifier, cfg.Admins(), inboundLimiter, logger)

	var poller *telegram.Poller
	if cfg.TelegramPollingEnabled {
		pollTimeout := cfg.TelegramPollingTimeout + 5*time.Second
		if pollTimeout < cfg.TelegramTimeout {
			pollTimeout = cfg.TelegramTimeout
		}
		pollerClient := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, &http.Client{Timeout: pollTimeout})
		poller = telegram.NewPoller(pollerClient, bot, logger, cfg.TelegramPollingTimeout, cfg.TelegramPollingInterval, cfg.TelegramPollingLimit)
	} else if cfg.TelegramWebhookURL == "" {
		logger.Warn("telegram webhook url missing; bot will not receive updates")
	} else {
		setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := telegramClient.SetWebhook(setupCtx, cfg.TelegramWebhookURL, cfg.WebhookSecret, false)
		cancel()
		if err != nil {
			return fmt.Errorf("telegram set webhook failed: %w", err)
		}
		logger.Info("telegram webhook configured", slog.String("url", cfg.TelegramWebhookURL))
	}

	router := httpapi.NewRouter(httpapi.RouterDependencies{
		API:            httpapi.NewAPI(service, logger),
		Webhook:        telegram.NewWebhookHandler(bot, cfg.WebhookSecret, logger),
		WebhookPath:    webhookPath,
		RequestTimeout: 15 * time.Second,
		Logger:         logger,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("osis bot listening", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if poller != nil {
		group.Go(func() error {
			logger.Info("telegram polling enabled", slog.Duration("timeout", cfg.TelegramPollingTimeout))
			return poller.Run(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		return shutdown(cfg, server, notifier, db, logger)
	})

	return group.Wait()
}

func connectRedis(ctx context.Context, url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Error("redis url parse failed", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis ping failed", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	return client
}

// shutdown останавливает прием запросов, дожидается фоновых уведомлений
// и закрывает пул. По истечении SHUTDOWN_HARD_LIMIT процесс завершается принудительно.
func shutdown(cfg config.Config, server *http.Server, notifier *notify.Notifier, db *sqlx.DB, logger *slog.Logger) error {
	logger.Info("shutting down", slog.Duration("grace", cfg.ShutdownGrace))
	hardStop := time.AfterFunc(cfg.ShutdownHardLimit, func() {
		logger.Error("shutdown hard limit reached, forcing exit")
		os.Exit(1)
	})
	defer hardStop.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	var errs []error
	if err := server.Shutdown(drainCtx); err != nil {
		logger.Error("http shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := notifier.Wait(drainCtx); err != nil {
		logger.Warn("notification drain incomplete", slog.String("error", err.Error()))
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("database close failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	logger.Info("shutdown complete")
	return errors.Join(errs...)
}
