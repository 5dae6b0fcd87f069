package robot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Call is one driver invocation captured by Recorder.
type Call struct {
	Method    string
	Motion    Motion
	Angles    map[Joint]float64
	Runtime   time.Duration
	Text      string
	Interrupt bool
	Level     int
}

// String renders the call compactly, e.g. "SetJointAngles(RightShoulderFlex=20)".
func (c Call) String() string {
	switch c.Method {
	case "PlayNamedMotion":
		return fmt.Sprintf("PlayNamedMotion(%s,%s)", c.Motion.Name, c.Motion.Direction)
	case "SetJointAngles":
		return fmt.Sprintf("SetJointAngles(%v)", c.Angles)
	case "Speak":
		return fmt.Sprintf("Speak(%q)", c.Text)
	case "SetVolume":
		return fmt.Sprintf("SetVolume(%d)", c.Level)
	case "OpenVideoStream":
		return fmt.Sprintf("OpenVideoStream(%s)", c.Text)
	}
	return c.Method + "()"
}

// Recorder is an in-memory Driver for tests. It records every call and
// returns the error configured for the method, if any.
type Recorder struct {
	mu     sync.Mutex
	calls  []Call
	errs   map[string]error
	panics map[string]any
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{errs: make(map[string]error), panics: make(map[string]any)}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (r *Recorder) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.errs, method)
		return
	}
	r.errs[method] = err
}

// PanicOn makes every later call to method panic with v.
func (r *Recorder) PanicOn(method string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics[method] = v
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Methods returns the method names in call order.
func (r *Recorder) Methods() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	p, panicking := r.panics[c.Method]
	err := r.errs[c.Method]
	r.mu.Unlock()

	if panicking {
		panic(p)
	}
	return err
}

func (r *Recorder) PlayNamedMotion(ctx context.Context, m Motion) error {
	return r.record(Call{Method: "PlayNamedMotion", Motion: m})
}

func (r *Recorder) SetJointAngles(ctx context.Context, angles map[Joint]float64, runtime time.Duration) error {
	cp := make(map[Joint]float64, len(angles))
	for k, v := range angles {
		cp[k] = v
	}
	return r.record(Call{Method: "SetJointAngles", Angles: cp, Runtime: runtime})
}

func (r *Recorder) Speak(ctx context.Context, text string, interrupt bool, token int64) error {
	return r.record(Call{Method: "Speak", Text: text, Interrupt: interrupt})
}

func (r *Recorder) ReturnToHome(ctx context.Context) error {
	return r.record(Call{Method: "ReturnToHome"})
}

func (r *Recorder) SetVolume(ctx context.Context, level int) error {
	return r.record(Call{Method: "SetVolume", Level: level})
}

func (r *Recorder) OpenVideoStream(ctx context.Context, resolution string) error {
	return r.record(Call{Method: "OpenVideoStream", Text: resolution})
}
