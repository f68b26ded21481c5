package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/abhinavprkash/ThreadBrief/internal/adapters/events"
	"github.com/abhinavprkash/ThreadBrief/internal/adapters/repo"
	"github.com/abhinavprkash/ThreadBrief/internal/domain"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/config"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/db"
	httpinfra "github.com/abhinavprkash/ThreadBrief/internal/infra/http"
	applog "github.com/abhinavprkash/ThreadBrief/internal/infra/log"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/ratelimit"
	"github.com/abhinavprkash/ThreadBrief/internal/usecase/feedback"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "listener")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("listener: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
	err = repoAdapter.EnsureSchema(schemaCtx)
	schemaCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("listener: не удалось подготовить схему БД")
	}

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("listener: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter := ratelimit.NewRedisLimiter(redisClient, "feedback_rate", cfg.Feedback.RateWindow)

	mapper := feedback.NewEmojiMapper(cfg.Feedback.EmojiMap)
	feedbackMetrics := feedback.NewMetrics(repoAdapter, limiter, cfg.Feedback.RateLimit)
	ingest := feedback.NewService(mapper, repoAdapter, feedbackMetrics)

	verifier := httpinfra.NewVerifier(cfg.Slack.SigningSecret, cfg.Feedback.ReplayGuard, logger.With().Str("component", "signature").Logger())
	handler := events.NewHandler(ingest, cfg.Feedback.WindowDays, logger.With().Str("component", "events").Logger())

	srv := httpinfra.NewServer(logger)
	srv.Router.Group(func(protected chi.Router) {
		protected.Use(verifier.Middleware)
		protected.Post("/slack/events", handler.HandleEvents)
		protected.Post("/events", handler.HandleEvents)
	})
	srv.Router.Get("/health", handler.HandleHealth)
	srv.Router.Get("/metrics", handler.HandleMetrics)

	go func() {
		logger.Info().Msg("listener: старт")
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("listener: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("listener: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

var _ domain.FeedbackStore = (*repo.Postgres)(nil)
var _ domain.RateLimiter = (*ratelimit.RedisLimiter)(nil)
