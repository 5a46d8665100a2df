package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
	discordrouter "github.com/jose-valero/activity-rooms-bot/internal/adapters/discord"
	"github.com/jose-valero/activity-rooms-bot/internal/adapters/httpbackend"
	"github.com/jose-valero/activity-rooms-bot/internal/app/service"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/cache"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/config"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/jobs"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/logging"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/storage"
	"github.com/jose-valero/activity-rooms-bot/internal/pkg/keyedqueue"
)

const eventQueueSize = 256

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Redis (cache + registro de jobs)
	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	c := cache.New(rdb)

	// Backend (antes de los services que lo usan)
	bc := backend.New(cfg.BackendURL, cfg.BackendToken, c, backend.WithLogger(log))

	// DB
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("✅ DB lista y migrada")
	panels := storage.NewPanelRepo(db)
	rankUps := storage.NewRankUpRepo(db)

	// Discord session
	auth := strings.TrimSpace(cfg.DiscordToken)
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		log.Fatal("discord", zap.Error(err))
	}
	discordrouter.ConfigureSession(s)

	gw := discordrouter.NewGateway(s, log)

	// Jobs (asynq): el scheduler registra entradas, el worker las ejecuta
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	entrySched := jobs.NewEntryScheduler(redisOpt, log)
	jobSched := jobs.NewScheduler(rdb, entrySched, log)

	// Services
	rooms := service.NewRoomsService(bc, gw, panels, cfg.SpawnCooldown, log)
	activity := service.NewActivityService(bc, gw, rankUps, log)
	tracker := service.NewVoiceTracker(jobSched, log)
	presence := service.NewPresence(bc, rooms, activity, tracker, log)
	settings := service.NewSettingsService(bc)

	worker := jobs.NewWorker(redisOpt, cfg.JobConcurrency, jobSched, activity, tracker, log)

	// Router + cola de eventos por guild
	events := keyedqueue.New(cfg.EventWorkers, eventQueueSize, log.Named("events"))
	r := discordrouter.NewRouter(s, presence, rooms, settings, events, cfg.AdminRoleIDs, log)
	r.Handlers()

	events.Start()
	if err := s.Open(); err != nil {
		log.Fatal("discord open", zap.Error(err))
	}
	log.Info("✅ Conectado", zap.String("user", s.State.User.Username), zap.String("id", s.State.User.ID))

	if err := r.Register(); err != nil {
		log.Fatal("registrando comandos", zap.Error(err))
	}
	log.Info("✅ comandos registrados")

	rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if n, err := jobSched.Restore(rctx); err != nil {
		log.Warn("restore jobs", zap.Error(err))
	} else {
		log.Info("jobs restored", zap.Int("n", n))
	}
	if n, err := rooms.SweepPanels(rctx); err != nil {
		log.Warn("panel sweep", zap.Error(err))
	} else if n > 0 {
		log.Info("stale panels removed", zap.Int64("n", n))
	}
	cancel()

	if err := entrySched.Start(); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}
	defer entrySched.Shutdown()
	if err := worker.Start(); err != nil {
		log.Fatal("worker", zap.Error(err))
	}
	defer worker.Shutdown()

	// Webhook del backend (invalida cache)
	web := httpbackend.New(cfg.WebhookSecret, httpbackend.NewInvalidator(c, log), log)
	go func() {
		if err := web.Start(cfg.HTTPAddr); err != nil {
			log.Error("http server", zap.Error(err))
		}
	}()

	// Esperar señal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = web.Shutdown(sctx)
	_ = s.Close()
	events.Stop()
}
