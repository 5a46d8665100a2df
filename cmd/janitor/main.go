package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/infra/cache"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/config"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/jobs"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/logging"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/storage"
)

type Result struct {
	RankUps  int64 `json:"rank_ups"`
	Panels   int64 `json:"panels"`
	Registry int   `json:"registry"`
}

type pruner interface {
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type janitor struct {
	cfg     config.LambdaConfig
	rankUps pruner
	panels  pruner
	// prune del registro de jobs; nil si no hay redis
	registry func(ctx context.Context) (int, error)
	log      *zap.Logger
}

// run no corta en el primer error: limpia lo que pueda y devuelve el primero.
func (j *janitor) run(ctx context.Context) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var res Result
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	n, err := j.rankUps.PruneOlderThan(cctx, j.cfg.RankUpRetention)
	keep(err)
	res.RankUps = n

	n, err = j.panels.PruneOlderThan(cctx, j.cfg.PanelRetention)
	keep(err)
	res.Panels = n

	if j.registry != nil {
		m, err := j.registry(cctx)
		keep(err)
		res.Registry = m
	}

	j.log.Info("janitor done",
		zap.Int64("rank_ups", res.RankUps),
		zap.Int64("panels", res.Panels),
		zap.Int("registry", res.Registry),
		zap.Error(firstErr),
	)
	return res, firstErr
}

func main() {
	cfg := config.LoadLambda()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("no DATABASE_URL")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("pgx parse", zap.Error(err))
	}
	pcfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(context.Background(), pcfg)
	if err != nil {
		logger.Fatal("pgxpool", zap.Error(err))
	}
	defer pool.Close()
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	j := &janitor{
		cfg:     cfg,
		rankUps: storage.NewRankUpRepo(db),
		panels:  storage.NewPanelRepo(db),
		log:     logger.Named("janitor"),
	}

	// redis es opcional: sin él sólo se limpia postgres
	rdb, err := cache.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, skipping job registry", zap.Error(err))
	} else {
		defer rdb.Close()
		j.registry = func(ctx context.Context) (int, error) { return jobs.PruneRegistry(ctx, rdb) }
	}

	lambda.Start(func(ctx context.Context) (Result, error) {
		res, err := j.run(ctx)
		if err != nil {
			return res, fmt.Errorf("janitor: %w", err)
		}
		return res, nil
	})
}
