package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetrecap/internal/acquire"
	"meetrecap/internal/blob"
	"meetrecap/internal/config"
	"meetrecap/internal/delivery"
	"meetrecap/internal/extract"
	"meetrecap/internal/identity"
	"meetrecap/internal/logging"
	"meetrecap/internal/pipeline"
	"meetrecap/internal/queue"
	"meetrecap/internal/redis"
	"meetrecap/internal/retry"
	"meetrecap/internal/storage"
	"meetrecap/internal/store"
	"meetrecap/internal/transcode"
	"meetrecap/internal/transcribe"
	"meetrecap/internal/worker"
	"meetrecap/pkg/executor"
)

// enqueueCommand reports whether args select the one-shot enqueue mode and
// validates its recording-id argument.
func enqueueCommand(args []string) (recordingID string, ok bool, err error) {
	if len(args) < 2 || args[1] != "enqueue" {
		return "", false, nil
	}
	if len(args) < 3 || args[2] == "" {
		return "", true, errors.New("usage: meetrecap enqueue <recording-id>")
	}
	return args[2], true, nil
}

func main() {
	recordingID, enqueueMode, err := enqueueCommand(os.Args)
	if err != nil {
		log.Fatal(err)
	}

	cfgPath := os.Getenv("MEETRECAP_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level)

	dbType := os.Getenv("MEETRECAP_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewClient(cfg)
	if err != nil {
		logger.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(db, dbType)
	if err != nil {
		logger.Fatalf("init store: %v", err)
	}

	blobs, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("init blob storage: %v", err)
	}

	refresher := identity.NewRefresher(cfg.OAuth)
	acquirer := acquire.New(st, blobs, refresher, logging.Component(logger, "acquire"))

	segmenter := transcode.NewSegmenter(executor.New(), cfg.Transcription.SegmentSeconds, logging.Component(logger, "transcode"))

	providers := transcribe.BuildProviders(cfg.Transcription)
	engine, err := transcribe.NewEngine(providers, retry.FromConfig(cfg.Transcription.Retry), logging.Component(logger, "transcribe"))
	if err != nil {
		logger.Fatalf("init transcription: %v", err)
	}

	extractor, err := extract.New(ctx, cfg.Extraction)
	if err != nil {
		logger.Fatalf("init extraction: %v", err)
	}

	mailer, err := delivery.NewMailer(cfg.Email)
	if err != nil {
		logger.Fatalf("init mailer: %v", err)
	}

	pipe := pipeline.New(st, acquirer, blobs, segmenter, engine, extractor, mailer, pipeline.Config{
		MaxAudioBytes: cfg.Transcription.MaxBytes,
		ClaimStale:    time.Duration(cfg.Queue.ClaimStaleSeconds) * time.Second,
	}, logging.Component(logger, "pipeline"))

	q, err := queue.New(rdb, cfg.Queue)
	if err != nil {
		logger.Fatalf("init queue: %v", err)
	}

	// `meetrecap enqueue <recording-id>` schedules one recording and exits;
	// the default mode runs the worker daemon.
	if enqueueMode {
		if err := q.Enqueue(ctx, recordingID); err != nil {
			logger.Fatalf("enqueue recording: %v", err)
		}
		logger.WithField("recording_id", recordingID).Info("recording enqueued")
		return
	}

	runner := worker.NewRunner(q, pipe, st, cfg.Queue.Workers, logging.Component(logger, "worker"))
	runner.Start(ctx)
	logger.WithField("workers", cfg.Queue.Workers).Info("workers started")

	<-ctx.Done()
	logger.Info("shutting down")
	runner.Wait()
}
