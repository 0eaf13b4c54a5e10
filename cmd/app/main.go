package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/asquebay/restaurant-order-service/internal/config"
	"github.com/asquebay/restaurant-order-service/internal/lib/logger"
	"github.com/asquebay/restaurant-order-service/internal/repository/cache"
	"github.com/asquebay/restaurant-order-service/internal/repository/postgres"
	"github.com/asquebay/restaurant-order-service/internal/service"
	httptransport "github.com/asquebay/restaurant-order-service/internal/transport/http"
	"github.com/asquebay/restaurant-order-service/internal/transport/kafka"
	"github.com/asquebay/restaurant-order-service/internal/transport/rabbitmq"
)

func main() {
	// 1. Инициализация конфигурации
	cfg := config.MustLoad(config.Path())

	// 2. Инициализация логгера
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting restaurant-order-service", slog.String("log_level", cfg.Logger.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Инициализация хранилища (БД) и схемы
	dbpool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbpool.Close()
	log.Info("successfully connected to postgres")

	if err := postgres.EnsureSchema(ctx, dbpool); err != nil {
		log.Error("failed to apply schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store := postgres.NewStore(dbpool)

	// 4. Инициализация кэша
	var appCache service.Cache
	switch cfg.Cache.Driver {
	case "memory":
		appCache = cache.NewMemory()
		log.Info("in-process cache initialized")
	default:
		client := cache.NewRedisClient(cfg.Redis)
		defer client.Close()
		rc := cache.NewRedis(client, cfg.Cache.Prefix)
		// без кэша сервис работает напрямую с БД, поэтому недоступность Redis не фатальна
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis is unavailable, reads go to postgres until it recovers",
				slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
		} else {
			log.Info("redis cache initialized", slog.String("addr", cfg.Redis.Addr))
		}
		appCache = rc
	}

	// 5. Уведомления о смене статуса (необязательно)
	var notifier service.Notifier
	if cfg.RabbitMQ.Enabled {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ, log)
		if err != nil {
			log.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = publisher
		log.Info("rabbitmq notifier initialized", slog.String("exchange", cfg.RabbitMQ.Exchange))
	}

	// 6. Инициализация сервисного слоя
	resolver := service.NewTableStatusResolver(store, appCache, log)
	refresher := service.NewCacheRefresher(store, appCache, log)
	lifecycle := service.NewOrderLifecycle(store, resolver, refresher, notifier, log)
	tables := service.NewTableService(store, appCache, log)

	var wg sync.WaitGroup

	// 7. Планировщик сразу прогревает кэш и затем обновляет его по таймеру
	scheduler := service.NewScheduler(refresher, cfg.Scheduler.RefreshInterval, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	// 8. Kafka-консьюмер команд смены статуса (необязательно)
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer = kafka.NewConsumer(cfg.Kafka, lifecycle, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	// 9. Инициализация и запуск HTTP-сервера
	handler := httptransport.NewHandler(lifecycle, refresher, tables, log)
	httpServer := httptransport.NewServer(cfg.HTTPServer.Port, handler, cfg.HTTPServer.Timeout)
	log.Info("starting http server", slog.String("port", cfg.HTTPServer.Port))

	go func() {
		if err := httpServer.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// 10. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down application")

	// создаем контекст с таймаутом для шатдауна сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	cancel() // сигнал планировщику и консьюмеру на завершение
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Error("error closing kafka consumer", slog.String("error", err.Error()))
		}
	}
	wg.Wait()

	log.Info("application stopped")
}
