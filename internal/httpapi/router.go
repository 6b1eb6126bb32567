package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"osis_bot/internal/metrics"
	"osis_bot/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// RouterDependencies содержит обработчики и настройки HTTP-сервера.
type RouterDependencies struct {
	API            *API
	Webhook        http.Handler
	WebhookPath    string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter собирает маршруты сервиса.
func NewRouter(deps RouterDependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(withLogging(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if deps.Webhook != nil && deps.WebhookPath != "" {
		r.Method(http.MethodPost, deps.WebhookPath, deps.Webhook)
	}

	if deps.API != nil {
		r.Route("/api/applications", func(r chi.Router) {
			if deps.RequestTimeout > 0 {
				r.Use(middleware.Timeout(deps.RequestTimeout))
			}
			r.Post("/", deps.API.HandleIntake)
			r.Get("/{ticket}", deps.API.HandleStatus)
		})
	}
	return r
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = observability.NewRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), requestID)))
	})
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("request_id", observability.RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
