package gesture

import (
	"github.com/ayusman/robowave/internal/detector"
)

// Reference classifier parameters.
const (
	// DefaultWindow is the number of samples a wave must span.
	DefaultWindow = 15
	// DefaultThresholdPx is the horizontal excursion, in pixels of the source
	// frame, above which a raised arm counts as waving.
	DefaultThresholdPx = 25.0
)

// Result is the classification of one frame.
type Result struct {
	Symbol      Symbol
	EnergyLeft  float64
	EnergyRight float64
}

// Classifier turns landmark observations into gesture symbols. It keeps one
// MotionWindow per arm and is not safe for concurrent use.
type Classifier struct {
	threshold float64
	left      *MotionWindow
	right     *MotionWindow
}

// NewClassifier creates a classifier whose wave windows hold window samples
// and fire above thresholdPx pixels of excursion.
func NewClassifier(window int, thresholdPx float64) *Classifier {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Classifier{
		threshold: thresholdPx,
		left:      NewMotionWindow(window),
		right:     NewMotionWindow(window),
	}
}

// Windows returns the left and right motion windows.
func (c *Classifier) Windows() (left, right *MotionWindow) {
	return c.left, c.right
}

// Classify produces at most one symbol for the frame. A like pose on any
// hand wins over arm motion and leaves the wave windows untouched.
func (c *Classifier) Classify(obs detector.Observation) Result {
	for i := range obs.Hands {
		if IsLike(&obs.Hands[i]) {
			return Result{Symbol: Reset}
		}
	}

	if obs.Pose == nil {
		return Result{}
	}

	energyL := c.track(c.left, obs, detector.LeftWrist, detector.LeftElbow, detector.LeftIndex)
	energyR := c.track(c.right, obs, detector.RightWrist, detector.RightElbow, detector.RightIndex)

	res := Result{EnergyLeft: energyL, EnergyRight: energyR}
	wavingL := energyL > c.threshold
	wavingR := energyR > c.threshold

	switch {
	case wavingL && wavingR:
		res.Symbol = WaveBoth
	case wavingL:
		res.Symbol = WaveLeft
	case wavingR:
		res.Symbol = WaveRight
	}

	return res
}

// track updates one arm's window and returns its energy. The arm is raised
// when the wrist is above the elbow in pixel rows; a lowered arm clears the
// window so a wave has to start over.
func (c *Classifier) track(w *MotionWindow, obs detector.Observation, wrist, elbow, index int) float64 {
	pts := obs.Pose.Points
	_, wristY := pts[wrist].Pixel(obs.Width, obs.Height)
	_, elbowY := pts[elbow].Pixel(obs.Width, obs.Height)

	if wristY >= elbowY {
		w.Clear()
		return 0
	}

	indexX, _ := pts[index].Pixel(obs.Width, obs.Height)
	w.Push(float64(indexX))
	return w.Energy()
}

// IsLike reports whether a hand shows the like pose: the thumb tip above its
// IP joint while the index and middle fingertips sit below their knuckles.
func IsLike(hand *detector.HandLandmarks) bool {
	if hand == nil {
		return false
	}
	p := hand.Points

	thumbUp := p[detector.ThumbTip].Y < p[detector.ThumbIP].Y
	indexFolded := p[detector.IndexTip].Y > p[detector.IndexMCP].Y
	middleFolded := p[detector.MiddleTip].Y > p[detector.MiddleMCP].Y

	return thumbUp && indexFolded && middleFolded
}
