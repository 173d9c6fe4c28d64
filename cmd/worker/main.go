package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/config"
	"github.com/dharsanguruparan/IngestDrop/internal/database"
	"github.com/dharsanguruparan/IngestDrop/internal/processing"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
	"github.com/dharsanguruparan/IngestDrop/internal/s3storage"
	"github.com/dharsanguruparan/IngestDrop/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("load config", zap.Error(err))
	}
	logger, err := config.NewLogger(cfg.Log, "worker")
	if err != nil {
		zap.L().Fatal("init logger", zap.Error(err))
	}
	defer logger.Sync()

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

	opts, err := processing.OptionsFromConfig(cfg.Pipeline)
	if err != nil {
		logger.Fatal("pipeline options", zap.Error(err))
	}
	pipeline := processing.NewPipeline(repo, objects, opts, logger)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Logger:      logger.Sugar(),
	})
	processor := worker.NewProcessor(pipeline, logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", zap.Int("concurrency", cfg.Queue.Concurrency))
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
