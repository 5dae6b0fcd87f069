// Package robot defines the actuator boundary of the receiver.
//
// The interfaces are small so that a consumer depends only on what it uses:
// the receiver needs every capability, a one-shot motion player needs only
// MotionPlayer. Driver composes them all.
package robot

import (
	"context"
	"errors"
	"time"
)

// Joint names a controllable joint.
type Joint string

// Joints used by the wave sequence.
const (
	RightShoulderFlex Joint = "RightShoulderFlex"
	LeftShoulderFlex  Joint = "LeftShoulderFlex"
	RightElbowFlex    Joint = "RightElbowFlex"
	LeftElbowFlex     Joint = "LeftElbowFlex"
)

// Motion speeds accepted by PlayNamedMotion.
const (
	SpeedSlow   = "slow"
	SpeedNormal = "normal"
	SpeedFast   = "fast"
)

// MotionReset is the built-in motion that brings the robot to its neutral pose.
const MotionReset = "reset"

// ErrUnsupportedMotion is returned by drivers that cannot play a named motion.
var ErrUnsupportedMotion = errors.New("unsupported motion")

// Motion is a request to play one of the robot's built-in motions.
type Motion struct {
	Name      string
	Direction string
	Speed     string
	Repeat    int
	// Token is an opaque request id. The receiver passes the record's
	// timestamp truncated to whole seconds.
	Token int64
}

// MotionPlayer plays named motions.
type MotionPlayer interface {
	PlayNamedMotion(ctx context.Context, m Motion) error
}

// JointController sets joint angles in degrees, reached over runtime.
type JointController interface {
	SetJointAngles(ctx context.Context, angles map[Joint]float64, runtime time.Duration) error
}

// Speaker speaks text. A non-interrupting request queues behind current speech.
type Speaker interface {
	Speak(ctx context.Context, text string, interrupt bool, token int64) error
}

// Homer returns the robot to its home pose and blocks until it gets there.
type Homer interface {
	ReturnToHome(ctx context.Context) error
}

// VolumeController sets the speaker volume in percent.
type VolumeController interface {
	SetVolume(ctx context.Context, level int) error
}

// Streamer starts the robot's on-board video stream.
type Streamer interface {
	OpenVideoStream(ctx context.Context, resolution string) error
}

// Driver is the full actuator surface used by the receiver.
type Driver interface {
	MotionPlayer
	JointController
	Speaker
	Homer
	VolumeController
	Streamer
}

var (
	_ Driver = (*YansheeDriver)(nil)
	_ Driver = (*ServoDriver)(nil)
	_ Driver = (*LogDriver)(nil)
	_ Driver = (*Recorder)(nil)
)

// Mirror converts a right-side joint angle to the equivalent left-side angle.
func Mirror(deg float64) float64 {
	return 180 - deg
}
