package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"flipscore/config"
	"flipscore/ingest"
	"flipscore/logging"
	"flipscore/metrics"
	"flipscore/pipeline"
	"flipscore/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	m := metrics.New()
	svc, err := pipeline.New(st, cfg, logger, m)
	if err != nil {
		logger.Fatal("init pipeline", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		logger.Fatal("create results dir", zap.Error(err))
	}
	watcher := ingest.NewWatcher(cfg.ResultsDir, st, logger, func(ctx context.Context, jurisdictions []string) {
		if _, err := svc.Run(ctx, pipeline.ModeMerge, jurisdictions); err != nil {
			logger.Error("merge run failed", zap.Error(err))
		}
	})
	if err := watcher.Backfill(ctx); err != nil {
		logger.Error("backfill failed", zap.Error(err))
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal("start watcher", zap.Error(err))
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RebuildSchedule, func() {
		if _, err := svc.RunAll(ctx, pipeline.ModeRebuild); err != nil {
			logger.Error("scheduled rebuild failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("bad rebuild schedule", zap.String("schedule", cfg.RebuildSchedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("flipscore started",
		zap.String("db", cfg.DBPath),
		zap.String("results_dir", cfg.ResultsDir),
		zap.String("rebuild_schedule", cfg.RebuildSchedule),
		zap.Int("workers", cfg.WorkerCount))

	<-ctx.Done()
	snap := m.Snapshot()
	logger.Info("shutting down",
		zap.Int64("rows_ingested", snap.RowsIngested),
		zap.Int64("rows_dropped", snap.RowsDropped),
		zap.Int64("races_written", snap.RacesWritten),
		zap.Int64("runs_succeeded", snap.RunsSucceeded),
		zap.Int64("runs_failed", snap.RunsFailed))
}
