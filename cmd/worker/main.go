package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/app"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	jobmetrics "github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/jobs"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/products"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/suppliers"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/cache"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/db"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		_ = redisClient.Close()
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer jobClient.Close()

	metrics := jobmetrics.NewMetrics(nil)

	procurementService := procurement.NewService(
		procurement.NewRepository(pool), products.NewRepository(pool), suppliers.NewRepository(pool),
		nil, nil, logger, cfg.ConfirmationTokenTTL)
	inventoryService := inventory.NewService(inventory.NewRepository(pool))
	lowStockCache := inventory.NewLowStockCache(redisClient, 10*time.Minute)

	mailJob := jobs.NewSendEmailJob(jobs.SMTPConfig{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom}, logger)
	sweepJob := jobs.NewTokenSweepJob(procurementService, logger, metrics)
	alertJob := jobs.NewLowStockAlertJob(inventoryService, lowStockCache, jobClient, logger, metrics, cfg.LowStockAlertTo)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskTokenSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskLowStockAlert, Handler: alertJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.TokenSweepCron, Task: jobs.NewTokenSweepTask(), Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: cfg.LowStockCron, Task: jobs.NewLowStockAlertTask(), Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
