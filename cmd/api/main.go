package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventpool/backend/internal/api"
	"github.com/eventpool/backend/internal/api/middleware"
	"github.com/eventpool/backend/internal/config"
	"github.com/eventpool/backend/internal/logger"
	"github.com/eventpool/backend/internal/repository"
	"github.com/eventpool/backend/internal/service"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger from environment
	logger.SetDefaultLogger(logger.NewFromEnv(logger.LoadFromEnv()))
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// Optional redis for ephemeral per-item job detail
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unreachable, per-item job detail disabled: %v", err)
			redisClient = nil
		}
	}

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	eventSourceRepo := repository.NewEventSourceRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	runRepo := repository.NewRunRepository(db)
	duplicateRepo := repository.NewDuplicateRepository(db)
	jobRepo := repository.NewJobRepository(db)
	jobDetailRepo := repository.NewJobDetailRepository(redisClient, cfg.Redis.ItemTTL)

	// Initialize services
	merger := service.NewMergeResolver(cfg.Merge.Priorities)
	dedupeService := service.NewDedupeService(eventRepo, eventSourceRepo, duplicateRepo, service.DedupeConfig{
		LikelyThreshold: cfg.Dedupe.LikelyThreshold,
		MaybeThreshold:  cfg.Dedupe.MaybeThreshold,
		TimeWindow:      cfg.Dedupe.TimeWindow,
	})
	ingestService := service.NewIngestService(
		eventRepo,
		eventSourceRepo,
		sourceRepo,
		runRepo,
		merger,
		dedupeService,
		service.IngestConfig{
			DegradedAfter: cfg.Ingest.DegradedAfter,
			FailingAfter:  cfg.Ingest.FailingAfter,
			DeadAfter:     cfg.Ingest.DeadAfter,
		},
	)
	eventService := service.NewEventService(eventRepo, eventSourceRepo)

	classifierService := service.NewClassifierService(&service.ClassifierConfig{
		BaseURL: cfg.Classifier.BaseURL,
		APIKey:  cfg.Classifier.APIKey,
		Model:   cfg.Classifier.Model,
		Timeout: cfg.Classifier.Timeout,
	})
	scorerService := service.NewScorerService(&service.ScorerConfig{
		BaseURL: cfg.Scorer.BaseURL,
		APIKey:  cfg.Scorer.APIKey,
		Model:   cfg.Scorer.Model,
		Timeout: cfg.Scorer.Timeout,
	})

	jobService := service.NewAIJobService(
		jobRepo,
		eventRepo,
		jobDetailRepo,
		classifierService,
		scorerService,
		service.AIJobConfig{
			BatchSize:             cfg.AI.BatchSize,
			CostPerItem:           cfg.AI.CostPerItem,
			StaleNoProgress:       cfg.AI.StaleNoProgress,
			StaleWithProgress:     cfg.AI.StaleWithProgress,
			MinFitScore:           cfg.AI.MinFitScore,
			AutoPublishFit:        cfg.AI.AutoPublishFit,
			AutoPublishConfidence: cfg.AI.AutoPublishConfidence,
			ExtractConfidence:     cfg.AI.ExtractConfidence,
			JobRetention:          cfg.AI.JobRetention,
		},
	)

	// Setup router
	router := api.SetupRouter(api.Services{
		Ingest:     ingestService,
		Events:     eventService,
		Dedupe:     dedupeService,
		Jobs:       jobService,
		SourceRepo: sourceRepo,
		RunRepo:    runRepo,
		DupRepo:    duplicateRepo,
	}, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}, cfg.Server.Mode)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting API server on port %d (mode=%s)", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown: %v", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("Server exited")
}
