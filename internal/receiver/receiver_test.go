package receiver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/robowave/internal/robot"
	"github.com/ayusman/robowave/internal/transport"
)

// slot is an in-memory transport.Source.
type slot struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (s *slot) set(doc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = []byte(doc)
}

func (s *slot) Fetch(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.data) == 0 {
		return nil, transport.ErrNoRecord
	}
	return s.data, nil
}

// sleeps records requested waits without waiting.
type sleeps struct {
	waits  []time.Duration
	cancel context.CancelFunc
	limit  int
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	if s.limit > 0 && len(s.waits) >= s.limit && s.cancel != nil {
		s.cancel()
	}
	return ctx.Err()
}

type memWatermarks struct {
	value float64
	ok    bool
	saved []float64
	err   error
}

func (m *memWatermarks) Load(ctx context.Context) (float64, bool, error) {
	return m.value, m.ok, m.err
}

func (m *memWatermarks) Save(ctx context.Context, v float64) error {
	m.saved = append(m.saved, v)
	return m.err
}

func newTestReceiver(src transport.Source, driver robot.Driver, opts Options) (*Receiver, *sleeps) {
	s := &sleeps{}
	opts.Sleep = s.sleep
	return New(src, driver, opts, nil), s
}

const waveBoth = `{"name": "wave_servo", "direction": "both", "timestamp_sent": 5.0}`

func TestReceiver_ReplayIsIgnored(t *testing.T) {
	ctx := context.Background()
	src := &slot{}
	src.set(waveBoth)
	rec := robot.NewRecorder()
	r, _ := newTestReceiver(src, rec, DefaultOptions())

	first := r.Poll(ctx)
	if first.Status != Dispatched || first.Err != nil {
		t.Fatalf("first poll = %v (%v), want dispatched", first.Status, first.Err)
	}
	calls := len(rec.Calls())

	for i := 0; i < 3; i++ {
		if res := r.Poll(ctx); res.Status != Stale {
			t.Errorf("poll %d = %v, want stale", i+2, res.Status)
		}
	}
	if got := len(rec.Calls()); got != calls {
		t.Errorf("driver calls grew from %d to %d on replay", calls, got)
	}
	if r.LastProcessed() != 5.0 {
		t.Errorf("LastProcessed() = %v, want 5.0", r.LastProcessed())
	}
}

func TestReceiver_WatermarkNeverDecreases(t *testing.T) {
	ctx := context.Background()
	src := &slot{}
	rec := robot.NewRecorder()
	r, _ := newTestReceiver(src, rec, DefaultOptions())

	src.set(`{"name":"reset","direction":"","timestamp_sent":10.0}`)
	r.Poll(ctx)

	src.set(`{"name":"reset","direction":"","timestamp_sent":3.0}`)
	if res := r.Poll(ctx); res.Status != Stale {
		t.Errorf("older record = %v, want stale", res.Status)
	}
	if r.LastProcessed() != 10.0 {
		t.Errorf("LastProcessed() = %v, want 10.0", r.LastProcessed())
	}

	src.set(`{"name":"reset","direction":"","timestamp_sent":10.5}`)
	if res := r.Poll(ctx); res.Status != Dispatched {
		t.Errorf("newer record = %v, want dispatched", res.Status)
	}
	if r.LastProcessed() != 10.5 {
		t.Errorf("LastProcessed() = %v, want 10.5", r.LastProcessed())
	}
}

func TestReceiver_MalformedLeavesWatermark(t *testing.T) {
	ctx := context.Background()
	src := &slot{}
	rec := robot.NewRecorder()
	r, _ := newTestReceiver(src, rec, DefaultOptions())

	tests := []struct {
		name string
		doc  string
	}{
		{name: "truncated", doc: `{"name": "reset", "timest`},
		{name: "not json", doc: `hello`},
		{name: "wrong type", doc: `{"name":"reset","timestamp_sent":"soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src.set(tt.doc)
			res := r.Poll(ctx)
			if res.Status != Malformed || res.Err == nil {
				t.Errorf("Poll() = %v (%v), want malformed with error", res.Status, res.Err)
			}
			if r.LastProcessed() != 0 {
				t.Errorf("LastProcessed() = %v, want 0", r.LastProcessed())
			}
		})
	}

	if len(rec.Calls()) != 0 {
		t.Errorf("malformed records must not reach the driver: %v", rec.Methods())
	}

	src.set(`{"name":"reset","direction":"","timestamp_sent":1.0}`)
	if res := r.Poll(ctx); res.Status != Dispatched {
		t.Errorf("valid record after malformed = %v, want dispatched", res.Status)
	}
}

func TestReceiver_EmptySlot(t *testing.T) {
	r, _ := newTestReceiver(&slot{}, robot.NewRecorder(), DefaultOptions())
	res := r.Poll(context.Background())
	if res.Status != NoRecord || res.Err != nil {
		t.Errorf("Poll() = %v (%v), want no-record without error", res.Status, res.Err)
	}
}

func TestReceiver_ResetMotion(t *testing.T) {
	src := &slot{}
	src.set(`{"name":"reset","direction":"","timestamp_sent":1700000000.75}`)
	rec := robot.NewRecorder()
	r, _ := newTestReceiver(src, rec, DefaultOptions())

	r.Poll(context.Background())

	calls := rec.Calls()
	if len(calls) != 1 || calls[0].Method != "PlayNamedMotion" {
		t.Fatalf("calls = %v, want one PlayNamedMotion", calls)
	}
	want := robot.Motion{Name: "reset", Direction: "", Speed: "normal", Repeat: 1, Token: 1700000000}
	if calls[0].Motion != want {
		t.Errorf("motion = %+v, want %+v", calls[0].Motion, want)
	}
}

func TestReceiver_FallbackMotion(t *testing.T) {
	src := &slot{}
	src.set(`{"name":"raise","direction":"left","timestamp_sent":7.9}`)
	rec := robot.NewRecorder()
	r, _ := newTestReceiver(src, rec, DefaultOptions())

	r.Poll(context.Background())

	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %v, want one", calls)
	}
	want := robot.Motion{Name: "raise", Direction: "left", Speed: "normal", Repeat: 1, Token: 7}
	if calls[0].Motion != want {
		t.Errorf("motion = %+v, want %+v", calls[0].Motion, want)
	}
}

func TestReceiver_FailedWaveStillAdvances(t *testing.T) {
	src := &slot{}
	src.set(waveBoth)
	rec := robot.NewRecorder()
	rec.FailOn("SetJointAngles", errors.New("servo timeout"))
	wm := &memWatermarks{}
	opts := DefaultOptions()
	opts.Watermarks = wm
	r, _ := newTestReceiver(src, rec, opts)

	res := r.Poll(context.Background())
	if res.Status != Dispatched || res.Err == nil {
		t.Fatalf("Poll() = %v (%v), want dispatched with error", res.Status, res.Err)
	}
	if r.LastProcessed() != 5.0 {
		t.Errorf("LastProcessed() = %v, want 5.0", r.LastProcessed())
	}
	if len(wm.saved) != 1 || wm.saved[0] != 5.0 {
		t.Errorf("saved watermarks = %v, want [5]", wm.saved)
	}

	methods := rec.Methods()
	if methods[len(methods)-1] != "ReturnToHome" {
		t.Errorf("robot should still return home after a failed step: %v", methods)
	}

	if res := r.Poll(context.Background()); res.Status != Stale {
		t.Errorf("failed wave must not be retried, got %v", res.Status)
	}
}

func TestReceiver_DriverPanicIsContained(t *testing.T) {
	src := &slot{}
	src.set(`{"name":"reset","direction":"","timestamp_sent":2.0}`)
	rec := robot.NewRecorder()
	rec.PanicOn("PlayNamedMotion", "serial port gone")
	r, _ := newTestReceiver(src, rec, DefaultOptions())

	res := r.Poll(context.Background())
	if res.Status != Dispatched || res.Err == nil {
		t.Fatalf("Poll() = %v (%v), want dispatched with error", res.Status, res.Err)
	}
	if r.LastProcessed() != 2.0 {
		t.Errorf("LastProcessed() = %v, want 2.0", r.LastProcessed())
	}
}

func TestReceiver_PanicMidWaveReturnsHome(t *testing.T) {
	src := &slot{}
	src.set(waveBoth)
	rec := robot.NewRecorder()
	rec.PanicOn("Speak", "speech engine crashed")
	r, _ := newTestReceiver(src, rec, DefaultOptions())

	res := r.Poll(context.Background())
	if res.Status != Dispatched || res.Err == nil {
		t.Fatalf("Poll() = %v (%v), want dispatched with error", res.Status, res.Err)
	}

	methods := rec.Methods()
	if len(methods) == 0 || methods[len(methods)-1] != "ReturnToHome" {
		t.Errorf("methods = %v, want the arms lowered after the panic", methods)
	}
	if r.LastProcessed() != 5.0 {
		t.Errorf("LastProcessed() = %v, want 5.0", r.LastProcessed())
	}
}

func TestReceiver_Prepare(t *testing.T) {
	t.Run("restores watermark and configures robot", func(t *testing.T) {
		src := &slot{}
		src.set(waveBoth)
		rec := robot.NewRecorder()
		opts := DefaultOptions()
		opts.Watermarks = &memWatermarks{value: 5.0, ok: true}
		r, _ := newTestReceiver(src, rec, opts)

		r.Prepare(context.Background())

		if r.LastProcessed() != 5.0 {
			t.Errorf("LastProcessed() = %v, want 5.0", r.LastProcessed())
		}
		calls := rec.Calls()
		if len(calls) != 2 || calls[0].Text != "640x480" || calls[1].Level != 90 {
			t.Errorf("calls = %v, want stream then volume", calls)
		}

		if res := r.Poll(context.Background()); res.Status != Stale {
			t.Errorf("record at the restored watermark = %v, want stale", res.Status)
		}
	})

	t.Run("failures are not fatal", func(t *testing.T) {
		rec := robot.NewRecorder()
		rec.FailOn("OpenVideoStream", errors.New("camera busy"))
		rec.PanicOn("SetVolume", "audio fault")
		opts := DefaultOptions()
		opts.Watermarks = &memWatermarks{err: errors.New("locked")}
		r, _ := newTestReceiver(&slot{}, rec, opts)

		r.Prepare(context.Background())

		if r.LastProcessed() != 0 {
			t.Errorf("LastProcessed() = %v, want 0", r.LastProcessed())
		}
	})
}

func TestReceiver_FutureWatermarkIsClamped(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name      string
		stored    float64
		skew      time.Duration
		want      float64
		wantSaved []float64
	}{
		{name: "within skew", stored: 1_700_000_600, skew: time.Hour, want: 1_700_000_600},
		{name: "a year ahead", stored: 1_731_536_000, skew: time.Hour, want: 1_700_000_000, wantSaved: []float64{1_700_000_000}},
		{name: "check disabled", stored: 1_731_536_000, want: 1_731_536_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wm := &memWatermarks{value: tt.stored, ok: true}
			opts := DefaultOptions()
			opts.StreamResolution = ""
			opts.Volume = 0
			opts.Watermarks = wm
			opts.MaxFutureSkew = tt.skew
			opts.Now = func() time.Time { return now }
			r, _ := newTestReceiver(&slot{}, robot.NewRecorder(), opts)

			r.Prepare(context.Background())

			if r.LastProcessed() != tt.want {
				t.Errorf("LastProcessed() = %v, want %v", r.LastProcessed(), tt.want)
			}
			if len(wm.saved) != len(tt.wantSaved) || (len(wm.saved) > 0 && wm.saved[0] != tt.wantSaved[0]) {
				t.Errorf("saved = %v, want %v", wm.saved, tt.wantSaved)
			}
		})
	}
}

type replacingWatermarks struct {
	memWatermarks
	replaced []float64
}

func (m *replacingWatermarks) Replace(ctx context.Context, v float64) error {
	m.replaced = append(m.replaced, v)
	return nil
}

func TestReceiver_ClampUsesReplace(t *testing.T) {
	wm := &replacingWatermarks{memWatermarks: memWatermarks{value: 1_731_536_000, ok: true}}
	opts := DefaultOptions()
	opts.Watermarks = wm
	opts.Now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	r, _ := newTestReceiver(&slot{}, robot.NewRecorder(), opts)

	r.Prepare(context.Background())

	if len(wm.replaced) != 1 || wm.replaced[0] != 1_700_000_000 {
		t.Errorf("replaced = %v, want [1.7e9]", wm.replaced)
	}
	if len(wm.saved) != 0 {
		t.Errorf("saved = %v, want the clamp to bypass Save", wm.saved)
	}
}

func TestReceiver_ClampedWatermarkAcceptsNewRecords(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &slot{}
	rec := robot.NewRecorder()
	opts := DefaultOptions()
	opts.Watermarks = &memWatermarks{value: 1_731_536_000, ok: true}
	opts.Now = func() time.Time { return now }
	r, _ := newTestReceiver(src, rec, opts)
	r.Prepare(context.Background())

	src.set(`{"name": "reset", "direction": "", "timestamp_sent": 1700000005.0}`)
	if res := r.Poll(context.Background()); res.Status != Dispatched {
		t.Errorf("Poll() = %v, want dispatched after clamping", res.Status)
	}
}

func TestReceiver_FutureRecordIsIgnored(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &slot{}
	rec := robot.NewRecorder()
	wm := &memWatermarks{}
	opts := DefaultOptions()
	opts.Watermarks = wm
	opts.Now = func() time.Time { return now }
	r, _ := newTestReceiver(src, rec, opts)

	src.set(`{"name": "reset", "direction": "", "timestamp_sent": 4102444800.0}`)
	res := r.Poll(context.Background())
	if res.Status != Future || !errors.Is(res.Err, ErrFutureRecord) {
		t.Fatalf("Poll() = %v (%v), want future", res.Status, res.Err)
	}
	if len(rec.Calls()) != 0 || r.LastProcessed() != 0 || len(wm.saved) != 0 {
		t.Errorf("a future record moved the robot or the watermark: calls %v, watermark %v", rec.Methods(), r.LastProcessed())
	}

	src.set(`{"name": "reset", "direction": "", "timestamp_sent": 1700000030.0}`)
	if res := r.Poll(context.Background()); res.Status != Dispatched {
		t.Errorf("Poll() of a current record = %v, want dispatched", res.Status)
	}
}

func TestReceiver_Run(t *testing.T) {
	t.Run("polls until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := &slot{}
		src.set(waveBoth)
		rec := robot.NewRecorder()
		opts := DefaultOptions()
		opts.Wave.Settle = 0
		s := &sleeps{cancel: cancel, limit: 5}
		opts.Sleep = s.sleep
		r := New(src, rec, opts, nil)

		err := r.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
		if r.LastProcessed() != 5.0 {
			t.Errorf("LastProcessed() = %v, want 5.0", r.LastProcessed())
		}

		homes := 0
		for _, m := range rec.Methods() {
			if m == "ReturnToHome" {
				homes++
			}
		}
		if homes != 1 {
			t.Errorf("wave ran %d times, want 1", homes)
		}
	})

	t.Run("backs off after failures", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := &slot{err: errors.New("permission denied")}
		s := &sleeps{cancel: cancel, limit: 3}
		opts := DefaultOptions()
		opts.Sleep = s.sleep
		r := New(src, robot.NewRecorder(), opts, nil)

		r.Run(ctx)

		for i, w := range s.waits {
			if w != 500*time.Millisecond {
				t.Errorf("wait %d = %v, want 500ms", i, w)
			}
		}
	})

	t.Run("normal polling interval", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := &sleeps{cancel: cancel, limit: 3}
		opts := DefaultOptions()
		opts.Sleep = s.sleep
		r := New(&slot{}, robot.NewRecorder(), opts, nil)

		r.Run(ctx)

		if len(s.waits) != 3 {
			t.Fatalf("waits = %v, want 3", s.waits)
		}
		for i, w := range s.waits {
			if w != 50*time.Millisecond {
				t.Errorf("wait %d = %v, want 50ms", i, w)
			}
		}
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext() = %v, want context.Canceled", err)
	}
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("SleepContext() = %v, want nil", err)
	}
}
