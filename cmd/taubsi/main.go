package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"taubsi/internal/adapters/bot"
	"taubsi/internal/adapters/discord"
	"taubsi/internal/adapters/gamedata"
	"taubsi/internal/adapters/gamestate"
	"taubsi/internal/adapters/pokebattler"
	"taubsi/internal/adapters/repo"
	"taubsi/internal/adapters/telegram"
	"taubsi/internal/domain"
	"taubsi/internal/infra/cache"
	"taubsi/internal/infra/config"
	"taubsi/internal/infra/db"
	apphttp "taubsi/internal/infra/http"
	applog "taubsi/internal/infra/log"
	"taubsi/internal/infra/locale"
	"taubsi/internal/infra/metrics"
	"taubsi/internal/infra/queue"
	"taubsi/internal/usecase/difficulty"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/notify"
	"taubsi/internal/usecase/raidinfo"
	"taubsi/internal/usecase/raids"
	"taubsi/internal/usecase/reconcile"
	"taubsi/internal/usecase/resolver"
)

const webhookPath = "/bot/webhook"

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	regions, err := config.LoadRegions(cfg.RegionsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("taubsi: не удалось загрузить регионы")
	}
	tr, err := locale.Load(cfg.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("taubsi: не удалось загрузить язык")
	}
	tz := cfg.Location()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("taubsi: нет подключения к БД")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("taubsi: не удалось подготовить схему")
	}

	scanner, err := db.ConnectMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("taubsi: нет подключения к базе сканера")
	}
	defer scanner.Close()

	catalogue := gamedata.New(cfg.GameData.URL, cfg.GameData.File, applog.Component(logger, "gamedata"))
	if err := catalogue.Reload(ctx); err != nil {
		logger.Warn().Err(err).Msg("taubsi: игровые данные недоступны, боссы будут неизвестны")
	}

	var redisClient *redis.Client
	var kv domain.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		kv = cache.NewRedis(redisClient, "taubsi:")
	}

	notifications, closeQueue, err := openQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("taubsi: не удалось открыть очередь уведомлений")
	}
	defer closeQueue()

	var (
		platform domain.Platform
		session  *discordgo.Session
		botAPI   *tgbotapi.BotAPI
	)
	switch cfg.Platform {
	case "discord":
		if cfg.Discord.Token == "" {
			logger.Fatal().Msg("taubsi: не указан токен Discord (DISCORD_TOKEN)")
		}
		session, err = discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("taubsi: не удалось создать сессию Discord")
		}
		session.Identify.Intents = discord.Intents
		platform = discord.NewPlatform(session, regions.Emojis, regions.SubscriberRole, applog.Component(logger, "discord"))
	case "telegram":
		if cfg.Telegram.Token == "" {
			logger.Fatal().Msg("taubsi: не указан токен Telegram (TG_BOT_TOKEN)")
		}
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("taubsi: не удалось создать бота")
		}
		platform = telegram.NewPlatform(botAPI, regions.Emojis, tr, tz, applog.Component(logger, "telegram"))
	default:
		logger.Fatal().Str("platform", cfg.Platform).Msg("taubsi: неизвестная платформа (CHAT_PLATFORM)")
	}

	table := resolver.NewTable()
	res := resolver.New(catalogue)
	estimator := difficulty.NewService(
		pokebattler.NewClient(cfg.Pokebattler.BaseURL, cfg.Pokebattler.Timeout),
		kv, cfg.Pokebattler.CacheTTL, applog.Component(logger, "difficulty"),
	)

	raidCfg := raids.DefaultConfig()
	raidCfg.Grace = cfg.Raids.Grace
	raidCfg.WarnBefore = cfg.Raids.WarnBefore
	raidCfg.DeleteWindow = cfg.Raids.DeleteWindow
	raidCfg.Window = cfg.Raids.Window
	raidCfg.Limits = ledger.Limits{Total: cfg.Raids.TotalLimit, Remote: cfg.Raids.RemoteLimit}
	raidCfg.TZ = tz

	raidService := raids.NewService(raids.Deps{
		Platform:   platform,
		Repo:       store,
		Notifier:   notifications,
		Table:      table,
		Resolver:   res,
		Difficulty: estimator,
		Translator: tr,
	}, regions.Regions, regions.Emojis, raidCfg, applog.Component(logger, "raids"))
	boards := raidinfo.NewService(platform, table, raidService, tr, regions.Regions, tz, applog.Component(logger, "raidinfo"))

	loop, err := reconcile.New(gamestate.NewMySQL(scanner), table, res, raidService, boards, regions.Regions,
		reconcile.Options{Interval: cfg.Raids.ReconcileInterval}, applog.Component(logger, "reconcile"))
	if err != nil {
		logger.Fatal().Err(err).Msg("taubsi: неверная геозона")
	}
	if err := loop.Poll(ctx, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("taubsi: первый опрос сканера не удался")
	}

	server := apphttp.NewServer(applog.Component(logger, "http"))
	server.MountRaids(func() any { return raidService.Snapshot() })

	g, gctx := errgroup.WithContext(ctx)

	switch {
	case session != nil:
		handler := discord.NewHandler(raidService, boards, platform, tr, regions.Emojis, applog.Component(logger, "discord"))
		handler.Register(session)
		if err := session.Open(); err != nil {
			logger.Fatal().Err(err).Msg("taubsi: не удалось подключиться к Discord")
		}
		defer session.Close()
		if err := discord.RegisterCommands(session, cfg.Discord.AppID, guildIDs(regions.Regions), tr); err != nil {
			logger.Error().Err(err).Msg("taubsi: не все команды зарегистрированы")
		}
	case botAPI != nil:
		handler := bot.NewHandler(botAPI, raidService, boards, platform, tr, applog.Component(logger, "bot"))
		if cfg.Telegram.WebhookURL != "" {
			if err := setWebhook(botAPI, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				logger.Fatal().Err(err).Msg("taubsi: не удалось установить вебхук")
			}
			server.MountWebhook(webhookPath, cfg.Telegram.WebhookSecret, handler)
		} else {
			updates := botAPI.GetUpdatesChan(tgbotapi.NewUpdate(0))
			g.Go(func() error {
				defer botAPI.StopReceivingUpdates()
				return handler.Poll(gctx, updates)
			})
		}
	}

	restored, err := raidService.Restore(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("taubsi: восстановление объявлений не удалось")
	}
	logger.Info().Int("restored", restored).Str("platform", cfg.Platform).Msg("taubsi: объявления восстановлены")

	if cfg.Notify.Queue == "inline" {
		worker := notify.NewWorker(notifications, platform, kv, cfg.Notify.RPS, applog.Component(logger, "notify"))
		g.Go(func() error { return worker.Run(gctx) })
	}
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return catalogue.Run(gctx, cfg.GameData.Refresh) })
	g.Go(func() error { return server.Start(fmt.Sprintf(":%d", cfg.Port)) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("taubsi: остановлен с ошибкой")
		return
	}
	logger.Info().Msg("taubsi: остановлен")
}

// openQueue выбирает очередь уведомлений. В режиме inline очередь живёт в памяти процесса.
func openQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.NotificationQueue, func(), error) {
	noop := func() {}
	switch cfg.Notify.Queue {
	case "inline":
		return queue.NewMemoryNotificationQueue(1024), noop, nil
	case "redis":
		if redisClient == nil {
			return nil, noop, errors.New("для очереди redis нужен REDIS_ADDR")
		}
		return queue.NewRedisNotificationQueue(redisClient, cfg.Notify.QueueKey), noop, nil
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			return nil, noop, errors.New("для очереди rabbitmq нужен RABBITMQ_URL")
		}
		q, err := queue.NewRabbitNotificationQueue(cfg.RabbitURL, cfg.Notify.QueueKey)
		if err != nil {
			return nil, noop, err
		}
		return q, func() { _ = q.Close() }, nil
	}
	return nil, noop, fmt.Errorf("неизвестный режим очереди %q", cfg.Notify.Queue)
}

func guildIDs(regions []domain.Region) []string {
	seen := make(map[string]struct{}, len(regions))
	var out []string
	for _, r := range regions {
		if _, ok := seen[r.GuildID]; ok || r.GuildID == "" {
			continue
		}
		seen[r.GuildID] = struct{}{}
		out = append(out, r.GuildID)
	}
	return out
}

// setWebhook регистрирует вебхук с секретом, которым Telegram подписывает вызовы.
func setWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	_, err := api.MakeRequest("setWebhook", params)
	return err
}
