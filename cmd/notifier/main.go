package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"taubsi/internal/adapters/discord"
	"taubsi/internal/adapters/telegram"
	"taubsi/internal/domain"
	"taubsi/internal/infra/cache"
	"taubsi/internal/infra/config"
	applog "taubsi/internal/infra/log"
	"taubsi/internal/infra/locale"
	"taubsi/internal/infra/metrics"
	"taubsi/internal/infra/queue"
	"taubsi/internal/usecase/notify"
)

// Отдельный процесс доставки личных уведомлений из очереди redis или rabbitmq.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	var redisClient *redis.Client
	var dedupe domain.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		dedupe = cache.NewRedis(redisClient, "taubsi:")
	}

	var jobs domain.NotificationQueue
	switch cfg.Notify.Queue {
	case "redis":
		if redisClient == nil {
			logger.Fatal().Msg("notifier: для очереди redis нужен REDIS_ADDR")
		}
		jobs = queue.NewRedisNotificationQueue(redisClient, cfg.Notify.QueueKey)
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			logger.Fatal().Msg("notifier: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		q, err := queue.NewRabbitNotificationQueue(cfg.RabbitURL, cfg.Notify.QueueKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось инициализировать очередь RabbitMQ")
		}
		defer q.Close()
		jobs = q
	default:
		logger.Fatal().Str("queue", cfg.Notify.Queue).Msg("notifier: в режиме inline уведомления доставляет сам бот")
	}

	regions, err := config.LoadRegions(cfg.RegionsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось загрузить регионы")
	}

	var sender notify.Sender
	switch cfg.Platform {
	case "discord":
		session, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось создать сессию Discord")
		}
		sender = discord.NewPlatform(session, regions.Emojis, regions.SubscriberRole, applog.Component(logger, "discord"))
	case "telegram":
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось создать бота")
		}
		tr, err := locale.Load(cfg.Language)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось загрузить язык")
		}
		sender = telegram.NewPlatform(api, regions.Emojis, tr, cfg.Location(), applog.Component(logger, "telegram"))
	default:
		logger.Fatal().Str("platform", cfg.Platform).Msg("notifier: неизвестная платформа (CHAT_PLATFORM)")
	}

	worker := notify.NewWorker(jobs, sender, dedupe, cfg.Notify.RPS, applog.Component(logger, "notify"))
	logger.Info().Str("queue", cfg.Notify.Queue).Msg("notifier: запущен")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("notifier: остановлен с ошибкой")
		return
	}
	logger.Info().Msg("notifier: остановлен")
}
