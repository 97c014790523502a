package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Berlin"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	Platform    string `envconfig:"CHAT_PLATFORM" default:"discord"`
	Language    string `envconfig:"LANGUAGE" default:"german"`
	RegionsFile string `envconfig:"REGIONS_FILE" default:"regions.yaml"`

	Discord struct {
		Token string `envconfig:"DISCORD_TOKEN"`
		AppID string `envconfig:"DISCORD_APP_ID"`
	} `envconfig:""`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	MySQLDSN  string `envconfig:"MYSQL_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Notify struct {
		Queue    string  `envconfig:"NOTIFY_QUEUE" default:"inline"`
		QueueKey string  `envconfig:"NOTIFY_QUEUE_KEY" default:"raid_notifications"`
		RPS      float64 `envconfig:"NOTIFY_RPS" default:"5"`
	} `envconfig:""`

	Pokebattler struct {
		BaseURL  string        `envconfig:"POKEBATTLER_URL" default:"https://fight.pokebattler.com"`
		Timeout  time.Duration `envconfig:"POKEBATTLER_TIMEOUT" default:"10s"`
		CacheTTL time.Duration `envconfig:"DIFFICULTY_CACHE_TTL" default:"24h"`
	} `envconfig:""`

	GameData struct {
		URL     string        `envconfig:"GAMEDATA_URL"`
		File    string        `envconfig:"GAMEDATA_FILE" default:"gamedata.json"`
		Refresh time.Duration `envconfig:"GAMEDATA_REFRESH" default:"1h"`
	} `envconfig:""`

	Raids struct {
		ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"10s"`
		Grace             time.Duration `envconfig:"RAID_GRACE" default:"6m"`
		WarnBefore        time.Duration `envconfig:"RAID_WARN_BEFORE" default:"5m"`
		DeleteWindow      time.Duration `envconfig:"RAID_DELETE_WINDOW" default:"5m"`
		Window            time.Duration `envconfig:"RAID_WINDOW" default:"45m"`
		TotalLimit        int           `envconfig:"RAID_TOTAL_LIMIT" default:"20"`
		RemoteLimit       int           `envconfig:"RAID_REMOTE_LIMIT" default:"10"`
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

// Location возвращает часовой пояс бота.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.Local
	}
	return loc
}
