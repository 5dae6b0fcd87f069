package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/app"
	"github.com/ayusman/robowave/internal/capture"
	"github.com/ayusman/robowave/internal/command"
	"github.com/ayusman/robowave/internal/detector"
	"github.com/ayusman/robowave/internal/gesture"
	"github.com/ayusman/robowave/internal/server"
	"github.com/ayusman/robowave/internal/tray"
)

type WatchCommand struct {
	Source string `long:"source" description:"Camera device index or stream URL (overrides camera.source)"`
	Addr   string `long:"addr" description:"Status API address (overrides server.addr)"`
	NoTray bool   `long:"no-tray" description:"Do not show the system tray menu"`
}

func (c *WatchCommand) Execute(args []string) error {
	cfg, logger, err := setup("robowave-watch")
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateSender(); err != nil {
		return err
	}

	if c.Source != "" {
		cfg.Camera.Source = c.Source
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	ctx, stop := signalContext()
	defer stop()

	t, err := newTransport(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	defer closeQuietly(logger, "transport", t)

	det, err := detector.NewMediaPipeDetector(detector.Config{
		Python:          cfg.Detector.Python,
		Script:          cfg.Detector.Script,
		MaxHands:        cfg.Detector.MaxHands,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinTrackingConf,
	}, logger.Named("detector"))
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}

	camera := capture.NewCamera(capture.Options{
		Source:         cfg.Camera.Source,
		FallbackDevice: cfg.Camera.FallbackDevice,
		Width:          cfg.Camera.Width,
		Height:         cfg.Camera.Height,
		Mirror:         cfg.Camera.Mirror,
	}, logger.Named("camera"))

	channel := command.NewChannel(cfg.Channel.RecordPath, t, logger.Named("channel"))
	dispatcher := command.NewDispatcher(command.NewArbiter(cfg.Arbiter.Cooldown), channel)

	a := app.New(app.Config{
		Camera:      camera,
		Detector:    det,
		Classifier:  gesture.NewClassifier(cfg.Classifier.Window, cfg.Classifier.ThresholdPx),
		Dispatcher:  dispatcher,
		FrameWidth:  cfg.Camera.Width,
		FrameHeight: cfg.Camera.Height,
		Logger:      logger,
	})
	defer a.Close()

	errs := make(chan error, 2)
	go func() {
		err := a.Run(ctx)
		errs <- err
		if err != nil {
			stop()
		}
	}()

	if cfg.Server.Addr != "" {
		srv := server.New(server.Config{
			StaticDir: cfg.Server.StaticDir,
			App:       a,
			Logger:    logger.Named("server"),
		})
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				errs <- fmt.Errorf("status server: %w", err)
				stop()
			}
		}()
	}

	logger.Info("watching for gestures",
		zap.String("source", cfg.Camera.Source),
		zap.String("transport", cfg.Channel.Transport),
		zap.Duration("cooldown", cfg.Arbiter.Cooldown),
	)

	if cfg.Tray && !c.NoTray {
		tr := tray.New()
		tr.Bind(a)
		tr.OnQuit(stop)
		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
		tr.Run()
		stop()
	}

	<-ctx.Done()
	if err := firstError(errs); err != nil {
		return err
	}

	logger.Info("shutting down")
	return nil
}

// firstError returns the first non-nil error already queued on errs
// without waiting for more. Workers queue their error before cancelling
// the shared context, so a failure that caused the shutdown is always
// visible here.
func firstError(errs <-chan error) error {
	for {
		select {
		case err := <-errs:
			if err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
