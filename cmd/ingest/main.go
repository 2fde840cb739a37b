package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventpool/backend/internal/config"
	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/logger"
	"github.com/eventpool/backend/internal/repository"
	"github.com/eventpool/backend/internal/service"
)

// feedFile is the on-disk delivery format: a source's candidate batch dumped
// as JSON, typically produced by an external scraper or feed poller.
type feedFile struct {
	SourceID   string                `json:"source_id"`
	RunID      string                `json:"run_id"`
	Candidates []domain.RawCandidate `json:"candidates"`
}

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "eventpool-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	filePath := flag.String("file", "", "Path to feed file (JSON candidate batch)")
	sourceID := flag.String("source", "", "Source ID override")
	runID := flag.String("run", "", "Run ID to resume an interrupted delivery")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *filePath == "" {
		appLogger.Fatal("Missing required -file flag")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read feed file")
	}
	var feed feedFile
	if err := json.Unmarshal(raw, &feed); err != nil {
		appLogger.WithError(err).Fatal("Failed to parse feed file")
	}
	if *sourceID != "" {
		feed.SourceID = *sourceID
	}
	if *runID != "" {
		feed.RunID = *runID
	}
	if feed.SourceID == "" {
		appLogger.Fatal("Feed file has no source_id and no -source flag given")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldSource: feed.SourceID,
		logger.FieldCount:  len(feed.Candidates),
	}).Info("Starting file ingest")

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	eventRepo := repository.NewEventRepository(db)
	eventSourceRepo := repository.NewEventSourceRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	runRepo := repository.NewRunRepository(db)
	duplicateRepo := repository.NewDuplicateRepository(db)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Allow interruption; a rerun with the same run ID resumes idempotently.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		appLogger.Warn("Interrupted, aborting batch")
		cancel()
	}()

	result, err := ingestService.ProcessBatch(ctx, feed.SourceID, feed.RunID, feed.Candidates)
	if err != nil {
		appLogger.WithError(err).Fatal("Ingest failed")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldRunID:  result.Run.ID,
		logger.FieldStatus: string(result.Run.Status),
		"created":          result.Run.ItemsCreated,
		"updated":          result.Run.ItemsUpdated,
		"unchanged":        result.Run.ItemsUnchanged,
		"ignored":          result.Run.ItemsIgnored,
	}).Info("Ingest finished")
}
