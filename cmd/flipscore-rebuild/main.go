package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"flipscore/config"
	"flipscore/logging"
	"flipscore/metrics"
	"flipscore/pipeline"
	"flipscore/store"
)

func main() {
	mode := flag.String("mode", "rebuild", "publish mode: rebuild or merge")
	jurisdiction := flag.String("jurisdiction", "", "score a single jurisdiction instead of all")
	flag.Parse()

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

	svc, err := pipeline.New(st, cfg, logger, metrics.New())
	if err != nil {
		logger.Fatal("init pipeline", zap.Error(err))
	}

	var runMode pipeline.Mode
	switch *mode {
	case "rebuild":
		runMode = pipeline.ModeRebuild
	case "merge":
		runMode = pipeline.ModeMerge
	default:
		logger.Fatal("unknown mode", zap.String("mode", *mode))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var result pipeline.RunResult
	if *jurisdiction != "" {
		result, err = svc.Run(ctx, runMode, []string{*jurisdiction})
	} else {
		result, err = svc.RunAll(ctx, runMode)
	}
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
	logger.Info("run complete",
		zap.String("mode", string(runMode)),
		zap.Int("jurisdictions", result.Jurisdictions),
		zap.Int("races_written", result.RacesWritten),
		zap.Int("failed", result.Failed))
}
