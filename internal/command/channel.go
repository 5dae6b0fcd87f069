package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/gesture"
	"github.com/ayusman/robowave/internal/logging"
	"github.com/ayusman/robowave/internal/transport"
)

var (
	// ErrUnknownGesture is returned for a symbol without a mapping.
	ErrUnknownGesture = errors.New("unknown gesture")
	// ErrPersist is returned when the local record could not be written.
	// Nothing was delivered.
	ErrPersist = errors.New("persist record")
	// ErrDelivery is returned when the transport failed. The record is
	// still committed locally.
	ErrDelivery = errors.New("deliver record")
)

// minStep keeps successive timestamps distinct at float64 precision.
const minStep = time.Microsecond

// Channel turns gestures into records, keeps the latest one in a local file
// and hands it to the transport.
type Channel struct {
	path      string
	transport transport.Transport
	logger    *zap.Logger
	last      time.Time
}

// NewChannel creates a channel writing the local slot at path. A nil
// transport keeps records local only.
func NewChannel(path string, t transport.Transport, logger *zap.Logger) *Channel {
	return &Channel{
		path:      path,
		transport: t,
		logger:    logging.OrNop(logger),
	}
}

// Send builds the record for sym stamped with now and delivers it.
func (c *Channel) Send(ctx context.Context, sym gesture.Symbol, now time.Time) (Record, error) {
	name, direction, ok := Lookup(sym)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownGesture, sym)
	}
	return c.SendRecord(ctx, name, direction, now)
}

// SendRecord sends a record with a free-form name and direction.
func (c *Channel) SendRecord(ctx context.Context, name, direction string, now time.Time) (Record, error) {
	stamp := now
	if !c.last.IsZero() && !stamp.After(c.last) {
		stamp = c.last.Add(minStep)
	}

	rec := Record{
		Name:          name,
		Direction:     direction,
		TimestampSent: Seconds(stamp),
	}

	data, err := rec.Encode()
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	if c.path != "" {
		if err := transport.WriteAtomic(c.path, data); err != nil {
			c.logger.Error("local record write failed", zap.String("path", c.path), zap.Error(err))
			return rec, fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	c.last = stamp

	c.logger.Info("sending command",
		zap.String("name", rec.Name),
		zap.String("direction", rec.Direction),
		zap.Float64("timestamp_sent", rec.TimestampSent),
	)

	if c.transport == nil {
		return rec, nil
	}
	if err := c.transport.Deliver(ctx, data); err != nil {
		c.logger.Warn("command delivery failed", zap.String("name", rec.Name), zap.Error(err))
		return rec, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	c.logger.Info("command delivered", zap.String("name", rec.Name), zap.String("direction", rec.Direction))
	return rec, nil
}
