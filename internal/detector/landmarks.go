// Package detector defines the landmark types produced by the external
// pose/hand estimator and the Detector boundary that yields them.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Pose landmark indices following MediaPipe convention. Only the arm points
// used by the wave detector are named.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	LeftShoulder     = 11
	RightShoulder    = 12
	LeftElbow        = 13
	RightElbow       = 14
	LeftWrist        = 15
	RightWrist       = 16
	LeftIndex        = 19
	RightIndex       = 20
	NumPoseLandmarks = 33
)

// Point3D is a landmark in normalized image coordinates: X grows to the
// right, Y grows downward, both in [0, 1]. Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// PoseLandmarks represents the 33 body landmarks detected by MediaPipe.
type PoseLandmarks struct {
	Points [NumPoseLandmarks]Point3D `json:"points"`
	Score  float64                   `json:"score"`
}

// Pixel converts a normalized point to integer pixel coordinates of a
// width x height frame, truncating toward zero.
func (p Point3D) Pixel(width, height int) (x, y int) {
	return int(p.X * float64(width)), int(p.Y * float64(height))
}

// Observation is everything the estimator saw in one frame.
type Observation struct {
	Hands []HandLandmarks `json:"hands"`
	// Pose is nil when no body was detected.
	Pose   *PoseLandmarks `json:"pose,omitempty"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
}
