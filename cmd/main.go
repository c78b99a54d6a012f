package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/shenikar/waste_incident_sync/internal/cache"
	"github.com/shenikar/waste_incident_sync/internal/classifier"
	"github.com/shenikar/waste_incident_sync/internal/config"
	"github.com/shenikar/waste_incident_sync/internal/coordinator"
	v1 "github.com/shenikar/waste_incident_sync/internal/handler/http/v1"
	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
	"github.com/shenikar/waste_incident_sync/internal/repository"
	"github.com/shenikar/waste_incident_sync/internal/service"
	"github.com/shenikar/waste_incident_sync/internal/storage"
	"github.com/shenikar/waste_incident_sync/internal/webhook"
	"github.com/shenikar/waste_incident_sync/pkg/logger"
	"github.com/shenikar/waste_incident_sync/pkg/postgres"
	redisclient "github.com/shenikar/waste_incident_sync/pkg/redis"

	_ "github.com/shenikar/waste_incident_sync/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Waste Incident Sync API
// @version 1.0
// @description Waste incident reporting, lifecycle management and live queries.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(cfg.MigrationsPath, migrationURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	envFile := flag.String("env-file", "", "path to .env file (default .env in the working directory)")
	httpPort := flag.String("http-port", "", "HTTP port, overrides HTTP_PORT")
	migrations := flag.String("migrations", "", "migrations source URL, overrides MIGRATIONS_PATH")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations and exit")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *httpPort != "" {
		cfg.HTTPPort = *httpPort
	}
	if *migrations != "" {
		cfg.MigrationsPath = *migrations
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	if *migrateOnly {
		return
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Подключение к Redis
	redisClient, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Локальный кеш
	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		log.Fatalf("Failed to open local cache: %v", err)
	}
	defer store.Close()

	// Удаленное хранилище и координатор синхронизации
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient, log, repository.FeedOptions{
		Channel:        cfg.FeedChannel,
		ResyncInterval: cfg.FeedResyncInterval,
	})
	coord := coordinator.New(incidentRepo, store, log, coordinator.Options{
		RetryBase: cfg.FeedRetryBase,
		RetryMax:  cfg.FeedRetryMax,
	})

	// Внешние сервисы
	if cfg.StorageURL == "" {
		log.Warn("STORAGE_URL is not set, proof image uploads will fail")
	}
	objectStorage := storage.NewClient(cfg.StorageURL, cfg.StorageToken, cfg.StorageTimeout, log)

	var incidentClassifier service.Classifier
	if cfg.ClassifierURL != "" {
		incidentClassifier = classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierModel, cfg.ClassifierTimeout, log)
	} else {
		log.Info("CLASSIFIER_URL is not set, category suggestions are disabled")
	}

	// Уведомления
	webhookPublisher := webhook.NewRedisWebhookPublisher(redisClient)
	webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
	webhookWorker.Start(ctx)

	// Инициализация сервисов
	incidentService := service.NewIncidentService(incidentRepo, coord, incidentClassifier, log)
	lifecycleService := service.NewLifecycleService(incidentRepo, objectStorage, webhookPublisher, log)

	// Инициализация хэндлеров
	openFeed := func(q models.QueryDescriptor) query.Feed {
		return coord.Subscribe(q)
	}
	handler := v1.NewHandler(incidentService, lifecycleService, openFeed, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	// Живые потоки закрываются вместе с подписками координатора
	coord.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	cancel()
	<-webhookWorker.Done()

	log.Info("Server gracefully stopped")
}
