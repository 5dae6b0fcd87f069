// Package capture reads video frames with GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/robowave/internal/logging"
)

// Default camera settings
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// NoFallback disables the fallback device.
const NoFallback = -1

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEmptyFrame is returned when the source produced no image.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// Options describes a frame source.
type Options struct {
	// Source is a device index such as "0" or a stream URL.
	Source string
	// FallbackDevice is opened when Source cannot be; NoFallback disables it.
	FallbackDevice int
	Width          int
	Height         int
	// Mirror flips each frame horizontally so the image matches the
	// operator's own left and right.
	Mirror bool
}

// cameraImpl manages video capture from a device or stream using GoCV.
type cameraImpl struct {
	opts    Options
	capture *gocv.VideoCapture
	active  string
	mu      sync.Mutex
	running bool
	logger  *zap.Logger
}

// NewCamera creates a camera for the given source. Nothing is opened until Open.
func NewCamera(opts Options, logger *zap.Logger) Camera {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	return &cameraImpl{
		opts:   opts,
		logger: logging.OrNop(logger),
	}
}

// deviceIndex reports whether source names a local device.
func deviceIndex(source string) (int, bool) {
	id, err := strconv.Atoi(source)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func (c *cameraImpl) openSource(source string) (*gocv.VideoCapture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	id, isDevice := deviceIndex(source)
	if isDevice {
		vc, err = gocv.OpenVideoCapture(id)
	} else {
		vc, err = gocv.OpenVideoCapture(source)
	}
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video source %q did not open", source)
	}

	if isDevice {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	}
	return vc, nil
}

// Open opens the configured source, falling back to the local device when
// the source is unreachable.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	source := c.opts.Source
	vc, err := c.openSource(source)
	if err != nil {
		if c.opts.FallbackDevice == NoFallback {
			return fmt.Errorf("open %s: %w", source, err)
		}
		c.logger.Warn("video source unavailable, using fallback device",
			zap.String("source", source),
			zap.Int("device", c.opts.FallbackDevice),
			zap.Error(err),
		)
		source = strconv.Itoa(c.opts.FallbackDevice)
		vc, err = c.openSource(source)
		if err != nil {
			return fmt.Errorf("open fallback device %s: %w", source, err)
		}
	}

	c.capture = vc
	c.active = source
	c.running = true
	c.logger.Info("camera opened", zap.String("source", source), zap.Bool("mirror", c.opts.Mirror))

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame, mirrored if configured.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("failed to read frame from %s", c.active)
	}

	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	if c.opts.Mirror {
		gocv.Flip(mat, &mat, 1)
	}

	return &mat, nil
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
