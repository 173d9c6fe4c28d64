package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/api"
	"github.com/dharsanguruparan/IngestDrop/internal/config"
	"github.com/dharsanguruparan/IngestDrop/internal/database"
	"github.com/dharsanguruparan/IngestDrop/internal/queue"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
	"github.com/dharsanguruparan/IngestDrop/internal/s3storage"
	"github.com/dharsanguruparan/IngestDrop/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("load config", zap.Error(err))
	}
	logger, err := config.NewLogger(cfg.Log, "api")
	if err != nil {
		zap.L().Fatal("init logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := database.Migrate(cfg.Database.URL); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	repo := repository.NewRepository(pool)

	objects, err := s3storage.New(cfg.S3)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Fatal("ensure bucket", zap.Error(err))
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	dispatcher := queue.NewAsynqDispatcher(client, cfg.Queue.MaxRetry)

	jobs := service.NewJobs(repo, objects, dispatcher, cfg.Upload.MaxFileBytes, logger)
	review := service.NewReview(repo, logger)
	srv := api.New(cfg.Server, cfg.Upload.MaxFileBytes, jobs, review, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("api stopped", zap.Error(err))
		os.Exit(1)
	}
}
