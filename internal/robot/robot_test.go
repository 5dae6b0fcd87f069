package robot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

type apiCall struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeYanshee serves the robot HTTP API and records requests.
type fakeYanshee struct {
	mu         sync.Mutex
	calls      []apiCall
	code       int
	runningFor int
}

func (f *fakeYanshee) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: r.Method, Path: r.URL.Path, Body: body})
	code := f.code
	data := any(nil)
	if r.Method == http.MethodGet && r.URL.Path == "/v1/motions" {
		status := "idle"
		if f.runningFor > 0 {
			f.runningFor--
			status = "run"
		}
		data = map[string]string{"name": "reset", "status": status}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": "fail", "data": data})
}

func (f *fakeYanshee) recorded() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestYanshee(t *testing.T, fake *fakeYanshee) *YansheeDriver {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	return NewYansheeDriver(YansheeOptions{
		Address:     host,
		Port:        port,
		Timeout:     time.Second,
		HomePoll:    time.Millisecond,
		HomeTimeout: time.Second,
	}, nil)
}

func TestYansheeDriver_Requests(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func(d *YansheeDriver) error
		method   string
		path     string
		checkKey string
		want     any
	}{
		{
			name:     "play motion",
			call:     func(d *YansheeDriver) error { return d.PlayNamedMotion(ctx, Motion{Name: "reset", Token: 12}) },
			method:   http.MethodPut,
			path:     "/v1/motions",
			checkKey: "timestamp",
			want:     float64(12),
		},
		{
			name: "joint angles",
			call: func(d *YansheeDriver) error {
				return d.SetJointAngles(ctx, map[Joint]float64{RightShoulderFlex: 20}, 300*time.Millisecond)
			},
			method:   http.MethodPut,
			path:     "/v1/servos/angles",
			checkKey: "runtime",
			want:     float64(300),
		},
		{
			name:     "speak",
			call:     func(d *YansheeDriver) error { return d.Speak(ctx, "hello", false, 1) },
			method:   http.MethodPut,
			path:     "/v1/voice/tts",
			checkKey: "tts",
			want:     "hello",
		},
		{
			name:     "volume",
			call:     func(d *YansheeDriver) error { return d.SetVolume(ctx, 90) },
			method:   http.MethodPut,
			path:     "/v1/devices/volume",
			checkKey: "volume",
			want:     float64(90),
		},
		{
			name:     "video stream",
			call:     func(d *YansheeDriver) error { return d.OpenVideoStream(ctx, "640x480") },
			method:   http.MethodPost,
			path:     "/v1/visions/streams",
			checkKey: "resolution",
			want:     "640x480",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeYanshee{}
			d := newTestYanshee(t, fake)

			if err := tt.call(d); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			calls := fake.recorded()
			if len(calls) != 1 {
				t.Fatalf("expected 1 request, got %d", len(calls))
			}
			if calls[0].Method != tt.method || calls[0].Path != tt.path {
				t.Errorf("request = %s %s, want %s %s", calls[0].Method, calls[0].Path, tt.method, tt.path)
			}
			if got := calls[0].Body[tt.checkKey]; got != tt.want {
				t.Errorf("body[%q] = %v, want %v", tt.checkKey, got, tt.want)
			}
		})
	}
}

func TestYansheeDriver_PlayMotionBody(t *testing.T) {
	fake := &fakeYanshee{}
	d := newTestYanshee(t, fake)

	if err := d.PlayNamedMotion(context.Background(), Motion{Name: "raise", Direction: "left"}); err != nil {
		t.Fatal(err)
	}

	body := fake.recorded()[0].Body
	if body["operation"] != "start" {
		t.Errorf("operation = %v, want start", body["operation"])
	}
	motion, _ := body["motion"].(map[string]any)
	if motion["name"] != "raise" || motion["direction"] != "left" {
		t.Errorf("motion = %v", motion)
	}
	if motion["speed"] != SpeedNormal || motion["repeat"] != float64(1) {
		t.Errorf("defaults not applied: %v", motion)
	}
}

func TestYansheeDriver_ErrorCode(t *testing.T) {
	fake := &fakeYanshee{code: 3}
	d := newTestYanshee(t, fake)

	if err := d.SetVolume(context.Background(), 50); err == nil {
		t.Error("expected error for non-zero response code")
	}
}

func TestYansheeDriver_ReturnToHomeWaits(t *testing.T) {
	fake := &fakeYanshee{runningFor: 3}
	d := newTestYanshee(t, fake)

	if err := d.ReturnToHome(context.Background()); err != nil {
		t.Fatalf("ReturnToHome() error = %v", err)
	}

	calls := fake.recorded()
	if calls[0].Method != http.MethodPut {
		t.Errorf("first request should start the reset motion, got %s", calls[0].Method)
	}
	gets := 0
	for _, c := range calls {
		if c.Method == http.MethodGet {
			gets++
		}
	}
	if gets != 4 {
		t.Errorf("status polls = %d, want 4", gets)
	}
}

type fakeGroup struct {
	writes []feetech.PositionMap
	err    error
}

func (g *fakeGroup) SetPositions(ctx context.Context, p feetech.PositionMap) error {
	if g.err != nil {
		return g.err
	}
	g.writes = append(g.writes, p)
	return nil
}

func (g *fakeGroup) EnableAll(ctx context.Context) error { return nil }

func TestServoDriver(t *testing.T) {
	ctx := context.Background()
	opts := ServoOptions{
		IDs:  map[Joint]int{RightShoulderFlex: 1, LeftShoulderFlex: 2},
		Home: map[Joint]float64{RightShoulderFlex: 90, LeftShoulderFlex: 90},
	}

	t.Run("maps joints to ids", func(t *testing.T) {
		g := &fakeGroup{}
		d := newServoDriver(g, opts, nil)

		err := d.SetJointAngles(ctx, map[Joint]float64{RightShoulderFlex: 180, RightElbowFlex: 20}, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(g.writes) != 1 {
			t.Fatalf("writes = %d, want 1", len(g.writes))
		}
		if got := g.writes[0][1]; got != 2048 {
			t.Errorf("servo 1 raw = %d, want 2048", got)
		}
		if len(g.writes[0]) != 1 {
			t.Errorf("unmapped joint should be skipped: %v", g.writes[0])
		}
	})

	t.Run("reset goes home", func(t *testing.T) {
		g := &fakeGroup{}
		d := newServoDriver(g, opts, nil)

		if err := d.PlayNamedMotion(ctx, Motion{Name: MotionReset}); err != nil {
			t.Fatal(err)
		}
		if len(g.writes) != 1 || g.writes[0][1] != 1024 || g.writes[0][2] != 1024 {
			t.Errorf("home write = %v", g.writes)
		}
	})

	t.Run("other motions unsupported", func(t *testing.T) {
		d := newServoDriver(&fakeGroup{}, opts, nil)
		err := d.PlayNamedMotion(ctx, Motion{Name: "raise"})
		if !errors.Is(err, ErrUnsupportedMotion) {
			t.Errorf("error = %v, want ErrUnsupportedMotion", err)
		}
	})

	t.Run("bus error", func(t *testing.T) {
		d := newServoDriver(&fakeGroup{err: errors.New("timeout")}, opts, nil)
		if err := d.ReturnToHome(ctx); err == nil {
			t.Error("expected error")
		}
	})
}

func TestDegreesToRaw(t *testing.T) {
	tests := []struct {
		deg  float64
		want int
	}{
		{0, 0},
		{90, 1024},
		{-10, 0},
		{360, servoMaxRaw},
	}
	for _, tt := range tests {
		if got := DegreesToRaw(tt.deg); got != tt.want {
			t.Errorf("DegreesToRaw(%v) = %d, want %d", tt.deg, got, tt.want)
		}
	}
}

func TestMirror(t *testing.T) {
	if Mirror(20) != 160 || Mirror(100) != 80 {
		t.Error("mirror should reflect around 90 degrees")
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	r.FailOn("Speak", errors.New("busy"))
	if err := r.Speak(ctx, "hi", false, 0); err == nil {
		t.Error("expected configured error")
	}
	r.FailOn("Speak", nil)
	if err := r.Speak(ctx, "hi", false, 0); err != nil {
		t.Errorf("unexpected error after clearing: %v", err)
	}

	r.PanicOn("ReturnToHome", "servo fault")
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		r.ReturnToHome(ctx)
	}()

	if got := r.Methods(); len(got) != 3 || got[2] != "ReturnToHome" {
		t.Errorf("methods = %v", got)
	}
}
