package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/linemk/jersey-shop/internal/app"
	"github.com/linemk/jersey-shop/internal/config"
	"github.com/linemk/jersey-shop/internal/inventory"
	"github.com/linemk/jersey-shop/internal/lib/logger"
	"github.com/linemk/jersey-shop/internal/ordernumber"
	"github.com/linemk/jersey-shop/internal/rabbitmq"
	"github.com/linemk/jersey-shop/internal/service"
	"github.com/linemk/jersey-shop/internal/storage"
	"github.com/linemk/jersey-shop/internal/worker/outbox"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	calc, err := app.NewCalculator(cfg.Pricing)
	if err != nil {
		log.Error("invalid pricing config", slog.Any("error", err))
		panic(errors.Wrap(err, "invalid pricing config"))
	}

	// слои по работе с БД
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	variantRepo := storage.NewVariantRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	outboxRepo := storage.NewOutboxRepository(application.DB)
	txManager := storage.NewTxManager(application.DB)

	authService := service.NewAuthService(log, userRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.TokenTTL)*time.Minute)
	catalogService := service.NewCatalogService(log, productRepo, variantRepo)
	orderService := service.NewOrderService(
		log,
		txManager,
		orderRepo,
		inventory.NewLedger(log),
		calc,
		ordernumber.NewGenerator(),
		service.OrderServiceConfig{
			CreateTimeout:   cfg.Orders.CreateTimeout,
			NumberAttempts:  cfg.Orders.NumberAttempts,
			EventExchange:   cfg.RabbitMQ.Exchange,
			EventMaxRetries: cfg.Outbox.MaxRetries,
		},
	)

	router := app.NewRouter(log, cfg, app.Services{
		Auth:    authService,
		Orders:  orderService,
		Catalog: catalogService,
		DB:      application.DB,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// без RABBITMQ_URL события копятся в outbox до следующего запуска с брокером
	if cfg.RabbitMQ.URL != "" {
		mq, err := rabbitmq.NewClient(log, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Error("failed to connect to rabbitmq", slog.Any("error", err))
			panic(errors.Wrap(err, "failed to connect to rabbitmq"))
		}
		defer func() {
			if err := mq.Close(); err != nil {
				log.Error("failed to close rabbitmq client", slog.Any("error", err))
			}
		}()

		worker := outbox.NewWorker(log, outboxRepo, mq, outbox.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			Concurrency:  cfg.Outbox.PublishConcurrency,
			RetryBackoff: cfg.Outbox.RetryBackoff,
			ClaimLease:   cfg.Outbox.ClaimLease,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Start(workerCtx)
		}()
	} else {
		log.Warn("RABBITMQ_URL is not set, order events stay in outbox")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}

	stopWorker()
	wg.Wait()
	log.Info("server gracefully stopped")
}
