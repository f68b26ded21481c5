package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/abhinavprkash/ThreadBrief/internal/adapters/repo"
	slackadapter "github.com/abhinavprkash/ThreadBrief/internal/adapters/slack"
	"github.com/abhinavprkash/ThreadBrief/internal/domain"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/config"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/db"
	applog "github.com/abhinavprkash/ThreadBrief/internal/infra/log"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/queue"
	"github.com/abhinavprkash/ThreadBrief/internal/usecase/distribute"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "distributor")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	var store domain.ItemRecorder
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("distributor: нет подключения к БД")
		}
		defer pool.Close()

		repoAdapter := repo.NewPostgres(pool)
		schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
		err = repoAdapter.EnsureSchema(schemaCtx)
		schemaCancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("distributor: не удалось подготовить схему БД")
		}
		store = repoAdapter
	} else {
		logger.Warn().Msg("distributor: PG_DSN не задан, фиксация пунктов для обратной связи выключена")
		store = distribute.NopRecorder{}
	}

	if cfg.Slack.BotToken == "" {
		logger.Fatal().Msg("distributor: не указан токен Slack (SLACK_BOT_TOKEN)")
	}
	if cfg.Slack.DigestChannel == "" {
		logger.Fatal().Msg("distributor: не указан канал дайджеста (DIGEST_CHANNEL)")
	}
	messenger := slackadapter.NewClient(cfg.Slack.BotToken, cfg.Slack.APIBaseURL, 0)

	service := distribute.NewService(messenger, store, distribute.Config{
		DigestChannel: cfg.Slack.DigestChannel,
		TeamChannels:  cfg.Slack.TeamChannels,
		Leadership:    cfg.Slack.Leadership,
		HighThreshold: cfg.Digest.HighThreshold,
		LowThreshold:  cfg.Digest.LowThreshold,
	})

	var jobs domain.DistributionQueue
	switch cfg.Queues.Backend {
	case "rabbitmq":
		if cfg.Queues.RabbitURL == "" {
			logger.Fatal().Msg("distributor: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		rabbit, err := queue.NewRabbitDistributionQueue(cfg.Queues.RabbitURL, cfg.Queues.Distribution)
		if err != nil {
			logger.Fatal().Err(err).Msg("distributor: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		jobs = rabbit
	default:
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("distributor: не указан адрес Redis (REDIS_ADDR)")
		}
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		jobs = queue.NewRedisDistributionQueue(redisClient, cfg.Queues.Distribution)
	}

	worker := &runWorker{log: logger, queue: jobs, service: service}

	logger.Info().Str("queue", cfg.Queues.Backend).Msg("distributor: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("distributor: остановлен")
}

type runWorker struct {
	log     zerolog.Logger
	queue   domain.DistributionQueue
	service *distribute.Service
}

// Run обрабатывает задачи до отмены контекста. Задача, полученная уже
// после отмены, возвращается в очередь нетронутой; начатый прогон
// завершается с ack независимо от числа ошибок, они остаются в логе
// и в результате прогона.
func (w *runWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("distributor: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("cause", string(job.Cause)).
			Bool("dry_run", job.DryRun).
			Logger()

		if ctx.Err() != nil {
			if err := ack(false); err != nil {
				jobLog.Error().Err(err).Msg("distributor: не удалось вернуть задачу в очередь")
			}
			return
		}

		w.handleJob(ctx, job, jobLog)

		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("distributor: не удалось подтвердить задачу")
		}
	}
}

func (w *runWorker) handleJob(ctx context.Context, job domain.DistributionJob, jobLog zerolog.Logger) {
	if job.DryRun {
		preview := w.service.Preview(job.Digest, job.Analyses, "")
		jobLog.Info().
			Str("run_id", preview.RunID).
			Int("items", len(preview.Items)).
			Int("excluded", len(preview.Excluded)).
			Int("teams", len(preview.TeamDetails)).
			Msg("distributor: пробный прогон, публикаций нет")
		return
	}

	result := w.service.Distribute(ctx, job.Digest, job.Analyses, "")

	event := jobLog.Info()
	if len(result.Errors) > 0 {
		event = jobLog.Warn().Strs("errors", result.Errors)
	}
	event.
		Str("run_id", result.RunID).
		Int("items", len(result.Items)).
		Int("items_stored", result.ItemsStored).
		Int("excluded", len(result.Excluded)).
		Int("team_posts", len(result.TeamPosts)).
		Int("dms", len(result.DMs)).
		Msg("distributor: рассылка завершена")
}

var _ domain.Messenger = (*slackadapter.Client)(nil)
var _ domain.ItemRecorder = (*repo.Postgres)(nil)
