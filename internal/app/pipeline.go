package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Run opens the camera and processes frames until ctx is cancelled. Each
// frame is fully classified and dispatched before the next one is read, so
// the loop runs as fast as detection allows.
//
// A failed read is logged and retried after ReadBackoff. A failed detection
// skips the frame. Neither stops the loop.
func (a *App) Run(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	a.setRunning(true)
	defer a.setRunning(false)
	a.logger.Info("detection pipeline started")

	for {
		if err := ctx.Err(); err != nil {
			a.logger.Info("detection pipeline stopped")
			return nil
		}

		if !a.IsEnabled() {
			wait(ctx, PausedPoll)
			continue
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			a.logger.Warn("error reading frame", zap.Error(err))
			wait(ctx, ReadBackoff)
			continue
		}

		obs, err := a.detector.Detect(frame)
		frame.Close()
		if err != nil {
			a.logger.Warn("error detecting landmarks", zap.Error(err))
			continue
		}

		a.Process(ctx, obs, a.now())
	}
}

func (a *App) setRunning(running bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = running
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
