package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	WebhookEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Количество принятых событий вебхука по типам",
	}, []string{"event_type"})

	SignatureRejectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signature_rejects_total",
		Help: "Количество запросов, отклонённых проверкой подписи",
	})

	FeedbackOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_outcomes_total",
		Help: "Исходы конвейера обратной связи",
	}, []string{"status", "reason"})

	FeedbackByType = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_by_type_total",
		Help: "Принятые события обратной связи по типам",
	}, []string{"feedback_type"})

	DistributionRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "distribution_run_seconds",
		Help:    "Время одного прогона рассылки",
		Buckets: prometheus.DefBuckets,
	})

	DistributionPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distribution_posts_total",
		Help: "Публикации рассылки по видам сообщений",
	}, []string{"kind", "status"})

	DigestItemsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digest_items_stored_total",
		Help: "Сохранённые для обратной связи пункты дайджеста",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 100, 105, 110, 115, 120, 125, 130, 135, 140, 145, 150, 155, 160, 165, 170, 175, 180, 185, 190, 195, 200, 250, 300, 350, 400, 450, 500, 550, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		WebhookEventsTotal,
		SignatureRejectsTotal,
		FeedbackOutcomesTotal,
		FeedbackByType,
		DistributionRunSeconds,
		DistributionPostsTotal,
		DigestItemsStored,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncWebhookEvent увеличивает счётчик событий вебхука.
func IncWebhookEvent(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	WebhookEventsTotal.WithLabelValues(eventType).Inc()
}

// ObserveFeedbackOutcome записывает исход обработки реакции.
func ObserveFeedbackOutcome(status, reason string) {
	if reason == "" {
		reason = "none"
	}
	FeedbackOutcomesTotal.WithLabelValues(status, reason).Inc()
}

// IncFeedbackByType увеличивает счётчик принятой обратной связи.
func IncFeedbackByType(feedbackType string) {
	FeedbackByType.WithLabelValues(feedbackType).Inc()
}

// ObserveDistributionRun записывает длительность прогона рассылки.
func ObserveDistributionRun(start time.Time) {
	DistributionRunSeconds.Observe(time.Since(start).Seconds())
}

// IncDistributionPost увеличивает счётчик публикаций рассылки.
func IncDistributionPost(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DistributionPostsTotal.WithLabelValues(kind, status).Inc()
}
