package robot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/logging"
)

// LogDriver logs every call and moves nothing. Used for dry runs.
type LogDriver struct {
	logger *zap.Logger
}

// NewLogDriver creates a dry-run driver.
func NewLogDriver(logger *zap.Logger) *LogDriver {
	return &LogDriver{logger: logging.OrNop(logger).Named("dry-run")}
}

func (d *LogDriver) PlayNamedMotion(ctx context.Context, m Motion) error {
	d.logger.Info("play motion",
		zap.String("name", m.Name),
		zap.String("direction", m.Direction),
		zap.String("speed", m.Speed),
		zap.Int("repeat", m.Repeat),
		zap.Int64("token", m.Token),
	)
	return nil
}

func (d *LogDriver) SetJointAngles(ctx context.Context, angles map[Joint]float64, runtime time.Duration) error {
	fields := make([]zap.Field, 0, len(angles)+1)
	for j, deg := range angles {
		fields = append(fields, zap.Float64(string(j), deg))
	}
	fields = append(fields, zap.Duration("runtime", runtime))
	d.logger.Info("set joint angles", fields...)
	return nil
}

func (d *LogDriver) Speak(ctx context.Context, text string, interrupt bool, token int64) error {
	d.logger.Info("speak", zap.String("text", text), zap.Bool("interrupt", interrupt))
	return nil
}

func (d *LogDriver) ReturnToHome(ctx context.Context) error {
	d.logger.Info("return to home")
	return nil
}

func (d *LogDriver) SetVolume(ctx context.Context, level int) error {
	d.logger.Info("set volume", zap.Int("level", level))
	return nil
}

func (d *LogDriver) OpenVideoStream(ctx context.Context, resolution string) error {
	d.logger.Info("open video stream", zap.String("resolution", resolution))
	return nil
}
