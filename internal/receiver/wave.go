package receiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/command"
	"github.com/ayusman/robowave/internal/logging"
	"github.com/ayusman/robowave/internal/robot"
)

// Wave joint targets for the right arm. Left arm targets are mirrored.
const (
	ShoulderRaised = 20.0
	ElbowFolded    = 20.0
	ElbowExtended  = 100.0
)

// WaveConfig tunes the wave sequence.
type WaveConfig struct {
	Runtime  time.Duration
	Settle   time.Duration
	Repeats  int
	Greeting string
}

// DefaultWaveConfig returns the reference timing.
func DefaultWaveConfig() WaveConfig {
	return WaveConfig{
		Runtime:  300 * time.Millisecond,
		Settle:   300 * time.Millisecond,
		Repeats:  1,
		Greeting: "Hello, my name is Yanshee.",
	}
}

// WaveState is a step of the wave sequence.
type WaveState int

const (
	WavePrepare WaveState = iota
	WaveSpeakRaise
	WaveLower
	WaveDone
)

func (s WaveState) String() string {
	switch s {
	case WavePrepare:
		return "prepare"
	case WaveSpeakRaise:
		return "speak-raise"
	case WaveLower:
		return "lower"
	case WaveDone:
		return "done"
	}
	return fmt.Sprintf("WaveState(%d)", int(s))
}

// WaveSequence raises the requested arms, greets, waves the forearms and
// returns home.
type WaveSequence struct {
	driver robot.Driver
	config WaveConfig
	sleep  Sleeper
	logger *zap.Logger
}

// NewWaveSequence creates a wave sequence on driver.
func NewWaveSequence(driver robot.Driver, config WaveConfig, sleep Sleeper, logger *zap.Logger) *WaveSequence {
	if sleep == nil {
		sleep = SleepContext
	}
	return &WaveSequence{driver: driver, config: config, sleep: sleep, logger: logging.OrNop(logger)}
}

// sides reports which arms a direction selects. An unknown direction selects
// neither; the greeting and the return home still run.
func sides(direction string) (left, right bool) {
	switch direction {
	case command.DirectionLeft:
		return true, false
	case command.DirectionRight:
		return false, true
	case command.DirectionBoth:
		return true, true
	}
	return false, false
}

// pose builds the joint targets for the selected arms from a right-arm angle.
func pose(left, right bool, rightJoint, leftJoint robot.Joint, deg float64) map[robot.Joint]float64 {
	angles := make(map[robot.Joint]float64, 2)
	if right {
		angles[rightJoint] = deg
	}
	if left {
		angles[leftJoint] = robot.Mirror(deg)
	}
	return angles
}

// Run executes the sequence. If a step before Lower fails, Lower still runs
// so the robot is not left with its arms up.
func (w *WaveSequence) Run(ctx context.Context, direction string, token int64) error {
	left, right := sides(direction)
	if !left && !right {
		w.logger.Warn("unknown wave direction; no arm will move", zap.String("direction", direction))
	}

	var failed error
	state := WavePrepare
	for state != WaveDone {
		w.logger.Debug("wave step", zap.Stringer("state", state), zap.String("direction", direction))

		next := state + 1
		err := w.step(ctx, state, left, right, token)

		if err != nil {
			failed = errors.Join(failed, fmt.Errorf("wave %s: %w", state, err))
			if state < WaveLower {
				next = WaveLower
			}
		}
		state = next
	}

	return failed
}

// step runs one state. A driver panic becomes the step's error so that
// Lower still runs.
func (w *WaveSequence) step(ctx context.Context, state WaveState, left, right bool, token int64) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("driver panic: %v", p)
		}
	}()

	switch state {
	case WavePrepare:
		return w.move(ctx, pose(left, right, robot.RightShoulderFlex, robot.LeftShoulderFlex, ShoulderRaised))
	case WaveSpeakRaise:
		return w.speakRaise(ctx, left, right, token)
	case WaveLower:
		return w.driver.ReturnToHome(ctx)
	}
	return nil
}

func (w *WaveSequence) speakRaise(ctx context.Context, left, right bool, token int64) error {
	if w.config.Greeting != "" {
		if err := w.driver.Speak(ctx, w.config.Greeting, false, token); err != nil {
			return err
		}
	}

	for i := 0; i < w.config.Repeats; i++ {
		if err := w.move(ctx, pose(left, right, robot.RightElbowFlex, robot.LeftElbowFlex, ElbowFolded)); err != nil {
			return err
		}
		if err := w.move(ctx, pose(left, right, robot.RightElbowFlex, robot.LeftElbowFlex, ElbowExtended)); err != nil {
			return err
		}
	}
	return nil
}

// move sets the angles and waits for the servos to settle. An empty target
// is skipped.
func (w *WaveSequence) move(ctx context.Context, angles map[robot.Joint]float64) error {
	if len(angles) == 0 {
		return nil
	}
	if err := w.driver.SetJointAngles(ctx, angles, w.config.Runtime); err != nil {
		return err
	}
	return w.sleep(ctx, w.config.Settle)
}
