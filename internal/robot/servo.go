package robot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/logging"
)

// Raw STS position range covering one full turn.
const (
	servoResolution = 4096
	servoMaxRaw     = servoResolution - 1
)

// ServoOptions configures a feetech bus-servo humanoid.
type ServoOptions struct {
	Port     string
	BaudRate int
	// IDs maps joints onto servo IDs on the bus.
	IDs map[Joint]int
	// Home holds the joint angles of the neutral pose.
	Home map[Joint]float64
}

// positionWriter is the part of feetech.ServoGroup the driver needs.
type positionWriter interface {
	SetPositions(ctx context.Context, positions feetech.PositionMap) error
	EnableAll(ctx context.Context) error
}

// ServoDriver drives a robot built from feetech STS serial servos. It only
// knows joint angles: the reset motion maps to the home pose, and speech,
// volume and video are not available.
type ServoDriver struct {
	bus    *feetech.Bus
	group  positionWriter
	ids    map[Joint]int
	home   map[Joint]float64
	logger *zap.Logger
}

// NewServoDriver opens the serial bus and enables torque on the mapped servos.
func NewServoDriver(ctx context.Context, opts ServoOptions, logger *zap.Logger) (*ServoDriver, error) {
	if len(opts.IDs) == 0 {
		return nil, fmt.Errorf("servo driver: no joint ids configured")
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = 1_000_000
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     opts.Port,
		BaudRate: opts.BaudRate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	ids := make([]int, 0, len(opts.IDs))
	for _, id := range opts.IDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	group := feetech.NewServoGroupByIDs(bus, ids...)

	d := newServoDriver(group, opts, logger)
	d.bus = bus

	if err := group.EnableAll(ctx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("enable torque: %w", err)
	}
	return d, nil
}

func newServoDriver(group positionWriter, opts ServoOptions, logger *zap.Logger) *ServoDriver {
	return &ServoDriver{
		group:  group,
		ids:    opts.IDs,
		home:   opts.Home,
		logger: logging.OrNop(logger),
	}
}

// Close releases the serial port.
func (d *ServoDriver) Close() error {
	if d.bus == nil {
		return nil
	}
	return d.bus.Close()
}

// DegreesToRaw converts a joint angle to an STS goal position.
func DegreesToRaw(deg float64) int {
	raw := int(math.Round(deg * servoResolution / 360))
	if raw < 0 {
		return 0
	}
	if raw > servoMaxRaw {
		return servoMaxRaw
	}
	return raw
}

// SetJointAngles writes goal positions for the mapped joints. Unmapped joints
// are skipped. The servos move at their configured speed; runtime is advisory.
func (d *ServoDriver) SetJointAngles(ctx context.Context, angles map[Joint]float64, runtime time.Duration) error {
	positions := make(feetech.PositionMap, len(angles))
	for joint, deg := range angles {
		id, ok := d.ids[joint]
		if !ok {
			d.logger.Debug("joint not mapped to a servo", zap.String("joint", string(joint)))
			continue
		}
		positions[id] = DegreesToRaw(deg)
	}
	if len(positions) == 0 {
		return nil
	}

	if err := d.group.SetPositions(ctx, positions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// PlayNamedMotion supports only the reset motion.
func (d *ServoDriver) PlayNamedMotion(ctx context.Context, m Motion) error {
	if m.Name != MotionReset {
		return fmt.Errorf("%w: %q", ErrUnsupportedMotion, m.Name)
	}
	return d.ReturnToHome(ctx)
}

// ReturnToHome moves every joint with a home angle back to it.
func (d *ServoDriver) ReturnToHome(ctx context.Context) error {
	if len(d.home) == 0 {
		return nil
	}
	return d.SetJointAngles(ctx, d.home, 0)
}

// Speak logs the text; the servo robot has no speaker.
func (d *ServoDriver) Speak(ctx context.Context, text string, interrupt bool, token int64) error {
	d.logger.Info("speech not available on servo robot", zap.String("text", text))
	return nil
}

// SetVolume is a no-op.
func (d *ServoDriver) SetVolume(ctx context.Context, level int) error {
	return nil
}

// OpenVideoStream is a no-op.
func (d *ServoDriver) OpenVideoStream(ctx context.Context, resolution string) error {
	return nil
}
