package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DiscordToken string
	DatabaseURL  string

	BackendURL   string
	BackendToken string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPAddr      string // webhook del backend, default :8080
	WebhookSecret string

	AdminRoleIDs  []string
	SpawnCooldown time.Duration // anti re-spawn, default 15s

	JobConcurrency int
	EventWorkers   int

	LogLevel  string
	LogFormat string
}

// Load lee el entorno (el .env ya lo carga main con godotenv).
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SPAWN_COOLDOWN_SECONDS", 15)
	v.SetDefault("JOB_CONCURRENCY", 10)
	v.SetDefault("EVENT_WORKERS", 8)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	cfg := Config{
		DiscordToken:   v.GetString("DISCORD_BOT_TOKEN"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		BackendURL:     v.GetString("BACKEND_URL"),
		BackendToken:   v.GetString("BACKEND_TOKEN"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RedisDB:        v.GetInt("REDIS_DB"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		WebhookSecret:  v.GetString("WEBHOOK_SECRET"),
		AdminRoleIDs:   splitList(v.GetString("ADMIN_ROLE_IDS")),
		SpawnCooldown:  time.Duration(v.GetInt("SPAWN_COOLDOWN_SECONDS")) * time.Second,
		JobConcurrency: v.GetInt("JOB_CONCURRENCY"),
		EventWorkers:   v.GetInt("EVENT_WORKERS"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
	}

	var missing []string
	for k, val := range map[string]string{
		"DISCORD_BOT_TOKEN": cfg.DiscordToken,
		"DATABASE_URL":      cfg.DatabaseURL,
		"BACKEND_URL":       cfg.BackendURL,
		"BACKEND_TOKEN":     cfg.BackendToken,
	} {
		if val == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, fmt.Errorf("faltan variables de entorno: %s", strings.Join(missing, ", "))
	}
	if cfg.SpawnCooldown <= 0 {
		cfg.SpawnCooldown = 15 * time.Second
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LambdaConfig es lo que necesitan cmd/webhook y cmd/janitor (sin discord ni backend).
type LambdaConfig struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	WebhookSecret string

	RankUpRetention time.Duration
	PanelRetention  time.Duration

	LogLevel  string
	LogFormat string
}

func LoadLambda() LambdaConfig {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RANK_UP_RETENTION_DAYS", 90)
	v.SetDefault("PANEL_RETENTION_DAYS", 7)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	day := 24 * time.Hour
	return LambdaConfig{
		DatabaseURL:     v.GetString("DATABASE_URL"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		WebhookSecret:   v.GetString("WEBHOOK_SECRET"),
		RankUpRetention: time.Duration(v.GetInt("RANK_UP_RETENTION_DAYS")) * day,
		PanelRetention:  time.Duration(v.GetInt("PANEL_RETENTION_DAYS")) * day,
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
	}
}
