package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Slack struct {
		BotToken      string            `envconfig:"SLACK_BOT_TOKEN"`
		SigningSecret string            `envconfig:"SLACK_SIGNING_SECRET"`
		APIBaseURL    string            `envconfig:"SLACK_API_BASE_URL" default:"https://slack.com/api"`
		DigestChannel string            `envconfig:"DIGEST_CHANNEL"`
		TeamChannels  map[string]string `envconfig:"TEAM_CHANNELS"`
		Leadership    []string          `envconfig:"LEADERSHIP_USER_IDS"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Feedback struct {
		RateLimit   int               `envconfig:"FEEDBACK_RATE_LIMIT" default:"20"`
		RateWindow  time.Duration     `envconfig:"FEEDBACK_RATE_WINDOW" default:"1h"`
		EmojiMap    map[string]string `envconfig:"FEEDBACK_EMOJI_MAP"`
		WindowDays  int               `envconfig:"FEEDBACK_WINDOW_DAYS" default:"7"`
		ReplayGuard time.Duration     `envconfig:"SLACK_REPLAY_WINDOW" default:"5m"`
	} `envconfig:""`

	Digest struct {
		HighThreshold float64 `envconfig:"DIGEST_HIGH_CONFIDENCE" default:"0.7"`
		LowThreshold  float64 `envconfig:"DIGEST_LOW_CONFIDENCE" default:"0.3"`
	} `envconfig:""`

	Queues struct {
		Backend      string `envconfig:"QUEUE_BACKEND" default:"redis"`
		Distribution string `envconfig:"DISTRIBUTION_QUEUE_KEY" default:"distribution_jobs"`
		RabbitURL    string `envconfig:"RABBITMQ_URL"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
