package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/config"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/messaging/rabbitmq"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/repository/mongodb"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/repository/sheets"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/scheduler"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/server/handlers"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/server/router"
	inventorysvc "github.com/lomonchiapp/gallinapp-user-sub000/internal/service/inventory"
	pricingsvc "github.com/lomonchiapp/gallinapp-user-sub000/internal/service/pricing"
	reportingsvc "github.com/lomonchiapp/gallinapp-user-sub000/internal/service/reporting"
	salessvc "github.com/lomonchiapp/gallinapp-user-sub000/internal/service/sales"
	whatsappsvc "github.com/lomonchiapp/gallinapp-user-sub000/internal/service/whatsapp"
	whatsappclient "github.com/lomonchiapp/gallinapp-user-sub000/pkg/clients/whatsapp"
	"github.com/lomonchiapp/gallinapp-user-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.String("timezone", cfg.Reporting.Timezone), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB, baseLogger.Named("repo.mongodb"))
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		baseLogger.Warn("failed to ensure mongodb indexes", zap.Error(err))
	}

	defaults, err := pricingsvc.FromConfig(cfg.Pricing)
	if err != nil {
		baseLogger.Fatal("invalid price configuration", zap.Error(err))
	}
	priceStore := pricingsvc.NewStore(defaults)

	var (
		sheetsRepo  *sheets.GoogleSheetRepository
		priceLoader *pricingsvc.SheetLoader
	)
	if cfg.Sheets.Enabled() {
		sheetsRepo, err = sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		priceLoader = pricingsvc.NewSheetLoader(sheetsRepo, cfg.Pricing.SheetRange, defaults, priceStore, baseLogger.Named("svc.pricing"))
		if _, err := priceLoader.Refresh(ctx); err != nil {
			baseLogger.Warn("initial price sheet load failed, using environment prices", zap.Error(err))
		}
	} else {
		baseLogger.Warn("google sheets not configured, prices come from the environment only")
	}

	inventorySvc := inventorysvc.NewService(mongoRepo, mongoRepo, priceStore, inventorysvc.Options{
		LivestockTTL:     cfg.Inventory.LivestockTTL,
		EggsTTL:          cfg.Inventory.EggsTTL,
		PreloadTimeout:   cfg.Inventory.PreloadTimeout,
		FetchConcurrency: cfg.Inventory.FetchConcurrency,
		Metrics:          inventorysvc.NewMetrics(registry),
	}, baseLogger.Named("svc.inventory"))

	salesOpts := []salessvc.Option{salessvc.WithMetrics(registry)}
	if sheetsRepo != nil {
		salesOpts = append(salesOpts, salessvc.WithLedger(sheetsRepo, cfg.Sheets.SalesRange))
	}

	if cfg.RabbitMQ.Enabled() {
		conn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			baseLogger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()

		publisher, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQ.InventoryExchange, baseLogger.Named("messaging.rabbitmq"))
		if err != nil {
			baseLogger.Fatal("failed to init inventory event publisher", zap.Error(err))
		}
		defer func() { _ = publisher.Close() }()
		salesOpts = append(salesOpts, salessvc.WithPublisher(publisher))

		consumer, err := rabbitmq.NewConsumer(conn, cfg.RabbitMQ.InventoryExchange, inventorySvc, baseLogger.Named("messaging.rabbitmq"))
		if err != nil {
			baseLogger.Fatal("failed to init inventory event consumer", zap.Error(err))
		}
		defer func() { _ = consumer.Close() }()

		go func() {
			if err := consumer.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				baseLogger.Error("inventory event consumer stopped", zap.Error(err))
			}
		}()
	} else {
		baseLogger.Info("rabbitmq not configured, cache invalidation events disabled")
	}

	salesSvc := salessvc.NewService(inventorySvc, mongoRepo, mongoRepo, baseLogger.Named("svc.sales"), salesOpts...)

	jobs := scheduler.Jobs{
		WarmSchedule: cfg.Inventory.WarmSchedule,
		Warmer:       inventorySvc,
	}
	if priceLoader != nil {
		jobs.PriceSchedule = cfg.Pricing.RefreshSchedule
		jobs.Prices = priceLoader
		jobs.Cache = inventorySvc
	}
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		notifier := whatsappsvc.NewNotifier(cfg.WhatsApp, whatsClient, baseLogger.Named("svc.whatsapp"))
		jobs.ReportSchedule = cfg.Reporting.CronSchedule
		jobs.Reporter = reportingsvc.NewService(inventorySvc, notifier, location, baseLogger.Named("svc.reporting"))
	} else {
		baseLogger.Warn("whatsapp token missing, daily stock summary disabled")
	}

	sched := scheduler.NewScheduler(jobs, location, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer func() { <-sched.Stop().Done() }()

	inventorySvc.Preload(ctx)

	engine := router.New(router.Handlers{
		Inventory: handlers.NewInventoryHandler(inventorySvc, baseLogger.Named("handlers.inventory")),
		Sales:     handlers.NewSalesHandler(salesSvc, baseLogger.Named("handlers.sales")),
	}, registry, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
