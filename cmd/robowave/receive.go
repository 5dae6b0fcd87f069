package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/receiver"
	"github.com/ayusman/robowave/internal/store"
)

const watermarkName = "receiver"

type ReceiveCommand struct {
	DryRun         bool   `long:"dry-run" description:"Log robot calls instead of moving the robot"`
	State          string `long:"state" description:"SQLite file keeping the watermark across restarts (overrides receiver.state_path)"`
	ResetWatermark bool   `long:"reset-watermark" description:"Forget the stored watermark before starting"`
}

func (c *ReceiveCommand) Execute(args []string) error {
	cfg, logger, err := setup("robowave-receive")
	if err != nil {
		return err
	}
	defer logger.Sync()

	if c.State != "" {
		cfg.Receiver.StatePath = c.State
	}

	ctx, stop := signalContext()
	defer stop()

	source, err := newSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	defer closeQuietly(logger, "source", source)

	driver, err := newDriver(ctx, cfg, c.DryRun, logger)
	if err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	defer closeQuietly(logger, "driver", driver)

	opts := receiver.DefaultOptions()
	opts.PollInterval = cfg.Receiver.PollInterval
	if cfg.Receiver.ErrorBackoff > 0 {
		opts.ErrorBackoff = cfg.Receiver.ErrorBackoff
	}
	opts.MaxFutureSkew = cfg.Receiver.MaxFutureSkew
	opts.Volume = cfg.Robot.Volume
	opts.StreamResolution = cfg.Robot.StreamResolution
	opts.Wave = receiver.WaveConfig{
		Runtime:  cfg.Receiver.ServoRuntime,
		Settle:   cfg.Receiver.Settle,
		Repeats:  cfg.Receiver.WaveRepeats,
		Greeting: cfg.Receiver.Greeting,
	}

	if cfg.Receiver.StatePath != "" {
		st, err := store.New(cfg.Receiver.StatePath)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer st.Close()
		if c.ResetWatermark {
			if err := resetWatermark(st, logger); err != nil {
				return err
			}
		}
		opts.Watermarks = st.WatermarkStore(watermarkName)
	} else if c.ResetWatermark {
		logger.Warn("--reset-watermark has no effect without a state file")
	}

	r := receiver.New(source, driver, opts, logger.Named("receiver"))
	r.Prepare(ctx)

	logger.Info("receiving commands",
		zap.String("source", cfg.Receiver.Source),
		zap.String("driver", cfg.Robot.Driver),
		zap.Bool("dry_run", c.DryRun),
		zap.Float64("watermark", r.LastProcessed()),
	)

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("receiver stopped", zap.Float64("watermark", r.LastProcessed()))
	return nil
}

// resetWatermark deletes the receiver's stored watermark. A missing one is
// not an error.
func resetWatermark(st *store.Store, logger *zap.Logger) error {
	err := st.Watermarks().Delete(watermarkName)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logger.Info("no stored watermark to reset")
	case err != nil:
		return fmt.Errorf("reset watermark: %w", err)
	default:
		logger.Info("stored watermark reset")
	}
	return nil
}
