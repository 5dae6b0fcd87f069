package command

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/robowave/internal/gesture"
)

// Outcome describes what happened to one classified gesture.
type Outcome int

const (
	// Skipped means there was nothing to send.
	Skipped Outcome = iota
	// Cooldown means the gesture arrived inside the cooldown window.
	Cooldown
	// Sent means the record was committed; delivery may still have failed.
	Sent
	// Failed means the record could not be written locally.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Cooldown:
		return "cooldown"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// Dispatch is the result of Dispatcher.Handle.
type Dispatch struct {
	Outcome Outcome
	Record  Record
	// Err is the persist or delivery error, if any.
	Err error
}

// Dispatcher applies the arbiter policy in front of a channel.
type Dispatcher struct {
	arbiter *Arbiter
	channel *Channel
}

// NewDispatcher combines an arbiter and a channel.
func NewDispatcher(a *Arbiter, c *Channel) *Dispatcher {
	return &Dispatcher{arbiter: a, channel: c}
}

// Arbiter returns the dispatcher's arbiter.
func (d *Dispatcher) Arbiter() *Arbiter {
	return d.arbiter
}

// Handle sends sym if the arbiter allows it. The cooldown clock moves as
// soon as the record is committed locally, whether or not the transport
// succeeded; a failed local write leaves it untouched.
func (d *Dispatcher) Handle(ctx context.Context, sym gesture.Symbol, now time.Time) Dispatch {
	if sym == gesture.None {
		return Dispatch{Outcome: Skipped}
	}
	if _, _, ok := Lookup(sym); !ok {
		return Dispatch{Outcome: Skipped}
	}
	if !d.arbiter.Ready(sym, now) {
		return Dispatch{Outcome: Cooldown}
	}

	rec, err := d.channel.Send(ctx, sym, now)
	if errors.Is(err, ErrPersist) {
		return Dispatch{Outcome: Failed, Record: rec, Err: err}
	}

	d.arbiter.MarkSent(now)
	return Dispatch{Outcome: Sent, Record: rec, Err: err}
}
