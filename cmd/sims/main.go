package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/app"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/products"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/suppliers"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/movements"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/observability"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/orderquery"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/cache"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/db"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/sales"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/jobs"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/migrations"
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

	if err := db.Migrate(cfg.PGDSN, migrations.FS); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The cache and the queue degrade gracefully; the core API works
		// without them.
		logger.Warn("redis unavailable", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	metrics := observability.NewMetrics()

	var jobClient *jobs.Client
	var mailer procurement.MailerPort
	var jobHandler *jobs.Handler
	if redisClient != nil {
		jobClient, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Warn("init job client", slog.Any("error", err))
		} else {
			defer jobClient.Close()
			mailer = jobs.NewConfirmationEnqueuer(jobClient, cfg.AppBaseURL)
		}
		jobHandler = jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)
	}

	productsRepo := products.NewRepository(pool)
	suppliersRepo := suppliers.NewRepository(pool)

	lowStockCache := inventory.NewLowStockCache(redisClient, 10*time.Minute)
	inventoryService := inventory.NewService(inventory.NewRepository(pool))
	movementsRepo := movements.NewRepository(pool)

	procurementService := procurement.NewService(
		procurement.NewRepository(pool), productsRepo, suppliersRepo,
		mailer, metrics, logger, cfg.ConfirmationTokenTTL)
	salesService := sales.NewService(sales.NewRepository(pool), productsRepo, metrics, logger)
	queryService := orderquery.NewService(orderquery.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		InventoryHandler:   inventory.NewHandler(logger, inventoryService, lowStockCache),
		MovementsHandler:   movements.NewHandler(logger, movementsRepo),
		ProductsHandler:    products.NewHandler(logger, productsRepo),
		SuppliersHandler:   suppliers.NewHandler(logger, suppliersRepo),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		SalesHandler:       sales.NewHandler(logger, salesService),
		QueryHandler:       orderquery.NewHandler(logger, queryService),
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
