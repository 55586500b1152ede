package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/internal/dispatch"
	"github.com/shenikar/truck_dispatch_system/internal/fleet"
	v1 "github.com/shenikar/truck_dispatch_system/internal/handler/http/v1"
	"github.com/shenikar/truck_dispatch_system/internal/metrics"
	"github.com/shenikar/truck_dispatch_system/internal/queue"
	"github.com/shenikar/truck_dispatch_system/internal/repository"
	"github.com/shenikar/truck_dispatch_system/internal/service"
	"github.com/shenikar/truck_dispatch_system/internal/webhook"
	"github.com/shenikar/truck_dispatch_system/pkg/postgres"
	redisclient "github.com/shenikar/truck_dispatch_system/pkg/redis"

	_ "github.com/shenikar/truck_dispatch_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the dispatch scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if err := serve(cmd.Context(), cfg, log); err != nil {
				log.WithError(err).Error("Service stopped with error")
				return err
			}
			log.Info("Server gracefully stopped")
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	// Redis необязателен: без него нет кэша и вебхуков
	var (
		redisClient *redis.Client
		publisher   webhook.WebhookPublisher = webhook.NopPublisher{}
	)
	if cfg.RedisAddr != "" {
		client, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPass,
			DB:           cfg.RedisDB,
			PingAttempts: 3,
			PingDelay:    500 * time.Millisecond,
		})
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, report cache and webhooks disabled")
		} else {
			defer client.Close()
			log.Info("Successfully connected to Redis")
			redisClient = client
			publisher = webhook.NewRedisWebhookPublisher(client)
		}
	}

	repo, closeStore, err := openStore(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Ядро диспетчеризации
	registry := fleet.NewRegistry(cfg.Fleet)
	engine := dispatch.NewEngine(registry)
	scheduler := dispatch.NewScheduler(queue.New(cfg.QueueCapacity), engine, registry, repo, publisher, m, log, cfg)
	reportService := service.NewReportService(repo, scheduler, registry, engine, publisher, m, log, cfg)

	if err := reportService.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to rebuild dispatch state: %w", err)
	}

	// Настройка Gin роутера
	handler := v1.NewHandler(reportService, log, cfg)
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)
	handler.RegisterLegacyRoutes(&router.RouterGroup)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("HTTP server started on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Received shutdown signal, shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	if redisClient != nil {
		worker := webhook.NewWebhookWorker(redisClient, log, cfg)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	return g.Wait()
}

// openStore выбирает хранилище по STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log *logrus.Logger) (service.ReportRepository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("Using in-memory store, reports are lost on restart")
		return repository.NewMemoryReportRepository(), func() {}, nil
	}

	if err := runMigrations(cfg, log); err != nil {
		return nil, nil, err
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Info("Successfully connected to PostgreSQL")

	return repository.NewReportRepository(dbpool, redisClient, cfg.ReportCacheTTL), dbpool.Close, nil
}
