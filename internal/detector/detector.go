package detector

import "gocv.io/x/gocv"

// Detector defines the interface for landmark estimation implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the hand and body landmarks.
	// An Observation with no hands and a nil Pose means nothing was found.
	Detect(frame *gocv.Mat) (Observation, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// Python is the interpreter used to run the service (default: venv or python3).
	Python string

	// Script is the path of the landmark service script. Empty means search
	// the usual locations.
	Script string

	// MaxHands is the maximum number of hands to keep (default: 2).
	MaxHands int

	// MinConfidence is the minimum hand detection confidence (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with the reference values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.7,
		MinTrackingConf: 0.5,
	}
}
