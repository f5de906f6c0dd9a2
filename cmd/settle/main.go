package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/oddsline/internal/app"
	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/usecase"
)

func main() {
	matchID := flag.Int64("match", 0, "settle a single finished match; 0 sweeps every finished match with pending bets")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.NewJSON(cfg.LogLevel).Named("settle")
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *matchID, logger); err != nil {
		logger.Error("settlement failed", "match_id", *matchID, "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, cfg config.Config, matchID int64, logger *logging.Logger) error {
	if matchID < 0 {
		return fmt.Errorf("%w: -match must be >= 0", usecase.ErrInvalidInput)
	}
	if cfg.StorageDriver != config.StoragePostgres {
		logger.Warn("settling against in-memory storage has nothing to do", "driver", cfg.StorageDriver)
	}

	repos, err := app.OpenRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logger.Warn("close storage", "error", err)
		}
	}()

	services := app.NewServices(cfg, repos, usecase.NewNoopPipelineMetrics(), logger)

	var out any
	if matchID > 0 {
		out, err = services.Settlement.SettleMatch(ctx, matchID)
	} else {
		out, err = services.Settlement.Sweep(ctx)
	}
	if err != nil {
		return err
	}

	payload, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}
