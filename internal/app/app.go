// Package app runs the camera-side pipeline: frames in, gesture commands out.
package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/capture"
	"github.com/ayusman/robowave/internal/command"
	"github.com/ayusman/robowave/internal/detector"
	"github.com/ayusman/robowave/internal/gesture"
	"github.com/ayusman/robowave/internal/logging"
)

// Pipeline timing constants.
const (
	// ReadBackoff is the pause after a failed frame read.
	ReadBackoff = 500 * time.Millisecond
	// PausedPoll is how often a disabled pipeline checks whether it was re-enabled.
	PausedPoll = 100 * time.Millisecond
)

// Config holds the pipeline components.
type Config struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier *gesture.Classifier
	Dispatcher *command.Dispatcher
	// FrameWidth and FrameHeight are used when an observation does not
	// carry the frame size.
	FrameWidth  int
	FrameHeight int
	Logger      *zap.Logger
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Event is published for every recognised gesture and manual trigger.
type Event struct {
	Time        time.Time       `json:"time"`
	Gesture     string          `json:"gesture"`
	Outcome     string          `json:"outcome"`
	Manual      bool            `json:"manual,omitempty"`
	Record      *command.Record `json:"record,omitempty"`
	Error       string          `json:"error,omitempty"`
	EnergyLeft  float64         `json:"energy_left"`
	EnergyRight float64         `json:"energy_right"`
}

// Status is a snapshot of the pipeline.
type Status struct {
	Enabled           bool            `json:"enabled"`
	Running           bool            `json:"running"`
	Frames            uint64          `json:"frames"`
	LastGesture       string          `json:"last_gesture"`
	LastGestureAt     time.Time       `json:"last_gesture_at"`
	LastSent          *command.Record `json:"last_sent,omitempty"`
	CooldownRemaining time.Duration   `json:"cooldown_remaining_ns"`
	EnergyLeft        float64         `json:"energy_left"`
	EnergyRight       float64         `json:"energy_right"`
}

// App is the camera-side application. Process and Trigger are serialised
// on sendMu so the HTTP API and the frame loop can share the arbiter. mu
// guards the status fields only and is never held across a delivery.
type App struct {
	config     Config
	camera     capture.Camera
	detector   detector.Detector
	classifier *gesture.Classifier
	dispatcher *command.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	sendMu sync.Mutex

	mu          sync.Mutex
	enabled     bool
	running     bool
	frames      uint64
	lastGesture gesture.Symbol
	lastAt      time.Time
	lastSent    *command.Record
	energyL     float64
	energyR     float64
	listeners   []func(Event)
}

// New creates an enabled App from the given components.
func New(config Config) *App {
	if config.Classifier == nil {
		config.Classifier = gesture.NewClassifier(gesture.DefaultWindow, gesture.DefaultThresholdPx)
	}
	if config.FrameWidth <= 0 {
		config.FrameWidth = capture.DefaultWidth
	}
	if config.FrameHeight <= 0 {
		config.FrameHeight = capture.DefaultHeight
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &App{
		config:     config,
		camera:     config.Camera,
		detector:   config.Detector,
		classifier: config.Classifier,
		dispatcher: config.Dispatcher,
		logger:     logging.OrNop(config.Logger),
		now:        config.Now,
		enabled:    true,
	}
}

// SetEnabled enables or disables gesture detection. Disabling drops the
// motion history so a re-enabled pipeline starts from empty windows.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled != enabled {
		a.logger.Info("gesture detection toggled", zap.Bool("enabled", enabled))
	}
	a.enabled = enabled
	if !enabled {
		left, right := a.classifier.Windows()
		left.Clear()
		right.Clear()
		a.energyL, a.energyR = 0, 0
	}
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// OnEvent registers fn to be called for every published event. Listeners
// run on the publishing goroutine and must not block.
func (a *App) OnEvent(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Process classifies one observation and sends the resulting command.
func (a *App) Process(ctx context.Context, obs detector.Observation, now time.Time) command.Dispatch {
	if obs.Width == 0 || obs.Height == 0 {
		obs.Width, obs.Height = a.config.FrameWidth, a.config.FrameHeight
	}

	a.mu.Lock()
	a.frames++
	res := a.classifier.Classify(obs)
	a.energyL, a.energyR = res.EnergyLeft, res.EnergyRight
	a.mu.Unlock()

	if res.Symbol == gesture.None {
		return command.Dispatch{Outcome: command.Skipped}
	}
	return a.send(ctx, res.Symbol, now, false)
}

// Trigger sends sym as if it had been recognised, subject to the same cooldown.
func (a *App) Trigger(ctx context.Context, sym gesture.Symbol, now time.Time) command.Dispatch {
	return a.send(ctx, sym, now, true)
}

func (a *App) send(ctx context.Context, sym gesture.Symbol, now time.Time, manual bool) command.Dispatch {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	d := a.dispatcher.Handle(ctx, sym, now)

	a.mu.Lock()
	a.record(sym, d, now)
	ev := a.event(sym, d, now, manual)
	listeners := a.listeners
	a.mu.Unlock()

	a.publish(listeners, ev)
	return d
}

// record must be called with a.mu held.
func (a *App) record(sym gesture.Symbol, d command.Dispatch, now time.Time) {
	a.lastGesture = sym
	a.lastAt = now

	switch d.Outcome {
	case command.Sent:
		rec := d.Record
		a.lastSent = &rec
		a.logger.Info("gesture sent", zap.Stringer("gesture", sym), zap.Float64("timestamp_sent", rec.TimestampSent))
	case command.Cooldown:
		a.logger.Debug("gesture suppressed by cooldown", zap.Stringer("gesture", sym))
	case command.Failed:
		a.logger.Error("gesture not sent", zap.Stringer("gesture", sym), zap.Error(d.Err))
	}
}

func (a *App) event(sym gesture.Symbol, d command.Dispatch, now time.Time, manual bool) Event {
	ev := Event{
		Time:        now,
		Gesture:     sym.String(),
		Outcome:     d.Outcome.String(),
		Manual:      manual,
		EnergyLeft:  a.energyL,
		EnergyRight: a.energyR,
	}
	if d.Outcome == command.Sent || d.Outcome == command.Failed {
		rec := d.Record
		ev.Record = &rec
	}
	if d.Err != nil {
		ev.Error = d.Err.Error()
	}
	return ev
}

func (a *App) publish(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

// Status returns a snapshot of the pipeline state at now.
func (a *App) Status(now time.Time) Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Status{
		Enabled:           a.enabled,
		Running:           a.running,
		Frames:            a.frames,
		LastGesture:       a.lastGesture.String(),
		LastGestureAt:     a.lastAt,
		CooldownRemaining: a.dispatcher.Arbiter().Remaining(now),
		EnergyLeft:        a.energyL,
		EnergyRight:       a.energyR,
	}
	if a.lastSent != nil {
		rec := *a.lastSent
		st.LastSent = &rec
	}
	return st
}

// Now returns the app's clock reading.
func (a *App) Now() time.Time {
	return a.now()
}

// Close releases the camera and the detector.
func (a *App) Close() error {
	var firstErr error
	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.logger.Warn("error closing camera", zap.Error(err))
			firstErr = err
		}
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.logger.Warn("error closing detector", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
