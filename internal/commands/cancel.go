package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dwsmith1983/cancel-workflow/internal/config"
	"github.com/dwsmith1983/cancel-workflow/internal/engine"
	"github.com/dwsmith1983/cancel-workflow/internal/metrics"
	"github.com/dwsmith1983/cancel-workflow/internal/telemetry"
	"github.com/dwsmith1983/cancel-workflow/internal/trigger"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

const telemetryFlushTimeout = 5 * time.Second

func runCancel(cmd *cobra.Command, v *viper.Viper, factory ControlPlaneFactory, plan bool) error {
	cfg, err := config.Load(v, os.Getenv)
	if err != nil {
		return err
	}
	if plan {
		cfg.DryRun = true
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	tc, err := trigger.LoadContext(os.Getenv)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	shutdown, err := telemetry.Setup(ctx, os.Getenv, cmd.Root().Version)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("flushing telemetry", "error", err)
		}
	}()

	eng, err := buildEngine(cfg, tc, logger, factory)
	if err != nil {
		return err
	}

	report, err := eng.Run(ctx, tc)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report, cfg.DryRun)
	if path := os.Getenv("GITHUB_STEP_SUMMARY"); path != "" {
		if err := appendStepSummary(path, report, cfg.DryRun); err != nil {
			logger.Warn("writing step summary", "error", err)
		}
	}
	return nil
}

func buildEngine(cfg *types.Config, tc trigger.Context, logger *slog.Logger, factory ControlPlaneFactory) (*engine.Engine, error) {
	cp, err := factory(cfg, tc, logger)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	rec, err := metrics.Default()
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}
	return engine.New(cp, *cfg,
		engine.WithLogger(logger),
		engine.WithMetrics(rec),
	), nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, &types.ConfigError{Field: config.KeyLogLevel, Reason: err.Error()}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
