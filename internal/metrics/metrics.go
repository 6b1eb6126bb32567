// Package metrics регистрирует метрики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "osis_bot"

// Исходы доставки уведомления.
const (
	DispatchDelivered = "delivered"
	DispatchDegraded  = "degraded"
	DispatchFailed    = "failed"
)

var (
	// Registry содержит метрики сервиса.
	Registry = prometheus.NewRegistry()

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route", "status"},
	)

	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Notification jobs by outcome.",
		},
		[]string{"outcome"},
	)

	commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "committed_total",
			Help:      "Committed decisions by resulting status.",
		},
		[]string{"status"},
	)

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "commands_total",
			Help:      "Reviewer commands received.",
		},
		[]string{"command"},
	)

	defaultCollector = NewCollector()
)

func init() {
	Registry.MustRegister(
		httpDuration,
		dispatches,
		commits,
		commands,
		defaultCollector,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Collector считает HTTP-запросы и ответы 5xx.
type Collector struct {
	requests uint64
	errors   uint64

	requestsDesc *prometheus.Desc
	errorsDesc   *prometheus.Desc
}

func NewCollector() *Collector {
	return &Collector{
		requestsDesc: prometheus.NewDesc(namespace+"_requests_total", "Total number of HTTP requests.", nil, nil),
		errorsDesc:   prometheus.NewDesc(namespace+"_errors_total", "Total number of 5xx HTTP responses.", nil, nil),
	}
}

func (c *Collector) IncRequests() {
	atomic.AddUint64(&c.requests, 1)
}

func (c *Collector) IncErrors() {
	atomic.AddUint64(&c.errors, 1)
}

func (c *Collector) Snapshot() (uint64, uint64) {
	return atomic.LoadUint64(&c.requests), atomic.LoadUint64(&c.errors)
}

// Describe реализует prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsDesc
	ch <- c.errorsDesc
}

// Collect реализует prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	requests, errors := c.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.requestsDesc, prometheus.CounterValue, float64(requests))
	ch <- prometheus.MustNewConstMetric(c.errorsDesc, prometheus.CounterValue, float64(errors))
}

// Handler отдает метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordDispatch учитывает исход доставки уведомления.
func RecordDispatch(outcome string) {
	dispatches.WithLabelValues(outcome).Inc()
}

// RecordCommit учитывает зафиксированные решения.
func RecordCommit(accepted, rejected, failed int) {
	commits.WithLabelValues("LOLOS").Add(float64(accepted))
	commits.WithLabelValues("DITOLAK").Add(float64(rejected))
	commits.WithLabelValues("failed").Add(float64(failed))
}

// RecordCommand учитывает команду ревьюера.
func RecordCommand(name string) {
	commands.WithLabelValues(name).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// InstrumentHandler считает запросы, ошибки и время ответа по шаблону маршрута chi.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		defaultCollector.IncRequests()
		next.ServeHTTP(recorder, r)
		if recorder.status >= http.StatusInternalServerError {
			defaultCollector.IncErrors()
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Observe(time.Since(start).Seconds())
	})
}

// Requests возвращает счетчики HTTP-запросов и ошибок.
func Requests() (uint64, uint64) {
	return defaultCollector.Snapshot()
}
