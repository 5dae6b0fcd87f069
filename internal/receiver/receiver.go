// Package receiver runs on the robot. It polls the command slot, drops
// records it has already acted on, and turns new ones into robot motions.
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
	"github.com/ayusman/robowave/internal/transport"
)

// Status is the outcome of one poll.
type Status int

const (
	// NoRecord means the slot was empty or could not be read.
	NoRecord Status = iota
	// Malformed means the slot held a document that is not a record.
	Malformed
	// Stale means the record was already processed.
	Stale
	// Dispatched means the record was new and handed to the driver.
	Dispatched
	// Future means the record is stamped too far ahead of the local clock
	// and was ignored.
	Future
)

func (s Status) String() string {
	switch s {
	case NoRecord:
		return "no-record"
	case Malformed:
		return "malformed"
	case Stale:
		return "stale"
	case Dispatched:
		return "dispatched"
	case Future:
		return "future"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ErrFutureRecord is reported for a record stamped beyond MaxFutureSkew.
var ErrFutureRecord = errors.New("record timestamp is ahead of the local clock")

// Result describes one poll. Err carries a read failure for NoRecord, the
// decode error for Malformed, ErrFutureRecord for Future, and the actuator
// error for Dispatched.
type Result struct {
	Status Status
	Record command.Record
	Err    error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WatermarkStore persists the last processed timestamp across restarts.
type WatermarkStore interface {
	// Load returns the stored watermark, or ok=false if none is stored.
	Load(ctx context.Context) (value float64, ok bool, err error)
	Save(ctx context.Context, value float64) error
}

// WatermarkReplacer is implemented by stores whose Save only moves forward
// but which can also overwrite the value outright.
type WatermarkReplacer interface {
	Replace(ctx context.Context, value float64) error
}

// Options configures a Receiver.
type Options struct {
	PollInterval     time.Duration
	ErrorBackoff     time.Duration
	Volume           int
	StreamResolution string
	Wave             WaveConfig
	Watermarks       WatermarkStore
	Sleep            Sleeper

	// MaxFutureSkew bounds how far a restored watermark may sit ahead of
	// the local clock. A watermark beyond it is clamped to now so a bad
	// clock on a previous run cannot hold every later record as stale.
	// Zero disables the check.
	MaxFutureSkew time.Duration
	Now           func() time.Time
}

// DefaultOptions returns the reference polling and wave timing.
func DefaultOptions() Options {
	return Options{
		PollInterval:     50 * time.Millisecond,
		ErrorBackoff:     500 * time.Millisecond,
		Volume:           90,
		StreamResolution: "640x480",
		Wave:             DefaultWaveConfig(),
		MaxFutureSkew:    time.Hour,
	}
}

// Receiver turns command records into robot actions, each at most once.
// It is driven by a single goroutine.
type Receiver struct {
	source transport.Source
	driver robot.Driver
	wave   *WaveSequence
	opts   Options
	logger *zap.Logger

	lastProcessed float64
	lastMalformed string
}

// New creates a receiver reading from source and acting through driver.
func New(source transport.Source, driver robot.Driver, opts Options, logger *zap.Logger) *Receiver {
	logger = logging.OrNop(logger)
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Receiver{
		source: source,
		driver: driver,
		wave:   NewWaveSequence(driver, opts.Wave, opts.Sleep, logger.Named("wave")),
		opts:   opts,
		logger: logger,
	}
}

// LastProcessed returns the watermark: the timestamp of the newest record
// acted on, or 0 before the first one.
func (r *Receiver) LastProcessed() float64 {
	return r.lastProcessed
}

// Prepare restores the watermark, starts the robot's video stream and sets
// the speaker volume. Failures are logged; the receiver works without them.
func (r *Receiver) Prepare(ctx context.Context) {
	if r.opts.Watermarks != nil {
		v, ok, err := r.opts.Watermarks.Load(ctx)
		switch {
		case err != nil:
			r.logger.Warn("failed to load watermark", zap.Error(err))
		case ok:
			r.lastProcessed = r.clampWatermark(ctx, v)
			r.logger.Info("watermark restored", zap.Float64("timestamp", r.lastProcessed))
		}
	}

	if r.opts.StreamResolution != "" {
		if err := r.safely(func() error { return r.driver.OpenVideoStream(ctx, r.opts.StreamResolution) }); err != nil {
			r.logger.Warn("failed to open video stream", zap.Error(err))
		}
	}
	if r.opts.Volume > 0 {
		if err := r.safely(func() error { return r.driver.SetVolume(ctx, r.opts.Volume) }); err != nil {
			r.logger.Warn("failed to set volume", zap.Error(err))
		}
	}
}

func (r *Receiver) clampWatermark(ctx context.Context, v float64) float64 {
	if r.opts.MaxFutureSkew <= 0 {
		return v
	}
	now := r.opts.Now()
	if v <= command.Seconds(now.Add(r.opts.MaxFutureSkew)) {
		return v
	}

	clamped := command.Seconds(now)
	r.logger.Warn("stored watermark is ahead of the local clock, clamping to now",
		zap.Float64("stored", v),
		zap.Float64("now", clamped),
	)
	save := r.opts.Watermarks.Save
	if rp, ok := r.opts.Watermarks.(WatermarkReplacer); ok {
		save = rp.Replace
	}
	if err := save(ctx, clamped); err != nil {
		r.logger.Warn("failed to save clamped watermark", zap.Error(err))
	}
	return clamped
}

// Poll reads the slot once and dispatches the record if it is new.
func (r *Receiver) Poll(ctx context.Context) Result {
	data, err := r.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrNoRecord) {
			return Result{Status: NoRecord}
		}
		return Result{Status: NoRecord, Err: err}
	}

	rec, err := command.ParseRecord(data)
	if err != nil {
		if string(data) != r.lastMalformed {
			r.lastMalformed = string(data)
			r.logger.Warn("ignoring malformed record", zap.Error(err))
		}
		return Result{Status: Malformed, Err: err}
	}

	if rec.TimestampSent <= r.lastProcessed {
		return Result{Status: Stale, Record: rec}
	}

	if r.opts.MaxFutureSkew > 0 {
		now := r.opts.Now()
		if rec.TimestampSent > command.Seconds(now.Add(r.opts.MaxFutureSkew)) {
			if string(data) != r.lastMalformed {
				r.lastMalformed = string(data)
				r.logger.Warn("ignoring record stamped in the future",
					zap.Float64("timestamp", rec.TimestampSent),
					zap.Float64("now", command.Seconds(now)),
				)
			}
			return Result{Status: Future, Record: rec, Err: ErrFutureRecord}
		}
	}

	r.logger.Info("command received",
		zap.String("name", rec.Name),
		zap.String("direction", rec.Direction),
		zap.Float64("timestamp", rec.TimestampSent),
	)

	dispatchErr := r.safely(func() error { return r.dispatch(ctx, rec) })

	// The watermark advances whether or not the robot completed the action:
	// a failed motion is not retried.
	r.advance(ctx, rec.TimestampSent)

	return Result{Status: Dispatched, Record: rec, Err: dispatchErr}
}

func (r *Receiver) dispatch(ctx context.Context, rec command.Record) error {
	token := int64(rec.TimestampSent)

	switch rec.Name {
	case command.NameReset:
		return r.driver.PlayNamedMotion(ctx, robot.Motion{
			Name:   robot.MotionReset,
			Speed:  robot.SpeedNormal,
			Repeat: 1,
			Token:  token,
		})
	case command.NameWaveServo:
		return r.wave.Run(ctx, rec.Direction, token)
	default:
		return r.driver.PlayNamedMotion(ctx, robot.Motion{
			Name:      rec.Name,
			Direction: rec.Direction,
			Speed:     robot.SpeedNormal,
			Repeat:    1,
			Token:     token,
		})
	}
}

func (r *Receiver) advance(ctx context.Context, ts float64) {
	r.lastProcessed = ts
	if r.opts.Watermarks == nil {
		return
	}
	if err := r.opts.Watermarks.Save(ctx, ts); err != nil {
		r.logger.Warn("failed to persist watermark", zap.Float64("timestamp", ts), zap.Error(err))
	}
}

// safely runs fn and converts a panic into an error.
func (r *Receiver) safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("driver panic: %v", p)
		}
	}()
	return fn()
}

// Run polls until ctx is cancelled. Read and actuator failures are logged
// and followed by a longer pause; they never stop the loop.
func (r *Receiver) Run(ctx context.Context) error {
	r.logger.Info("receiver started",
		zap.Duration("poll_interval", r.opts.PollInterval),
		zap.Float64("watermark", r.lastProcessed),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := r.Poll(ctx)
		wait := r.opts.PollInterval

		if res.Err != nil {
			switch res.Status {
			case Dispatched:
				r.logger.Error("command failed",
					zap.String("name", res.Record.Name),
					zap.Float64("timestamp", res.Record.TimestampSent),
					zap.Error(res.Err),
				)
				wait = r.opts.ErrorBackoff
			case NoRecord:
				r.logger.Warn("failed to read command slot", zap.Error(res.Err))
				wait = r.opts.ErrorBackoff
			}
		}

		if err := r.opts.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
