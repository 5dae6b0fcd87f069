package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/logging"
)

// YansheeOptions configures the REST client of a Yanshee robot.
type YansheeOptions struct {
	Address string
	Port    int
	Timeout time.Duration
	// HomePoll is the interval between motion status checks in ReturnToHome.
	HomePoll time.Duration
	// HomeTimeout bounds how long ReturnToHome waits for the reset motion.
	HomeTimeout time.Duration
}

// YansheeDriver drives a Yanshee humanoid through its on-board HTTP API.
type YansheeDriver struct {
	client *resty.Client
	opts   YansheeOptions
	logger *zap.Logger
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type motionRequest struct {
	Operation string     `json:"operation"`
	Motion    motionBody `json:"motion"`
	Timestamp int64      `json:"timestamp"`
}

type motionBody struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Speed     string `json:"speed"`
	Repeat    int    `json:"repeat"`
}

type motionStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type anglesRequest struct {
	Angles  map[Joint]float64 `json:"angles"`
	Runtime int64             `json:"runtime"`
}

type ttsRequest struct {
	TTS       string `json:"tts"`
	Interrupt bool   `json:"interrupt"`
	Timestamp int64  `json:"timestamp"`
}

// NewYansheeDriver creates a driver for the robot at opts.Address.
func NewYansheeDriver(opts YansheeOptions, logger *zap.Logger) *YansheeDriver {
	if opts.Port == 0 {
		opts.Port = 9090
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.HomePoll == 0 {
		opts.HomePoll = 200 * time.Millisecond
	}
	if opts.HomeTimeout == 0 {
		opts.HomeTimeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(fmt.Sprintf("http://%s:%d/v1", opts.Address, opts.Port)).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &YansheeDriver{
		client: client,
		opts:   opts,
		logger: logging.OrNop(logger),
	}
}

func (d *YansheeDriver) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var env envelope
	req := d.client.R().SetContext(ctx).SetResult(&env)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s %s: http status %d", method, path, resp.StatusCode())
	}
	if env.Code != 0 {
		d.logger.Warn("robot API returned error",
			zap.String("path", path),
			zap.Int("code", env.Code),
			zap.String("msg", env.Msg),
		)
		return nil, fmt.Errorf("%s %s: robot error %d: %s", method, path, env.Code, env.Msg)
	}
	return env.Data, nil
}

// PlayNamedMotion starts a built-in motion and returns without waiting for it.
func (d *YansheeDriver) PlayNamedMotion(ctx context.Context, m Motion) error {
	if m.Speed == "" {
		m.Speed = SpeedNormal
	}
	if m.Repeat == 0 {
		m.Repeat = 1
	}

	_, err := d.call(ctx, resty.MethodPut, "/motions", motionRequest{
		Operation: "start",
		Motion: motionBody{
			Name:      m.Name,
			Direction: m.Direction,
			Speed:     m.Speed,
			Repeat:    m.Repeat,
		},
		Timestamp: m.Token,
	})
	return err
}

// SetJointAngles moves the given servos to their target angles over runtime.
func (d *YansheeDriver) SetJointAngles(ctx context.Context, angles map[Joint]float64, runtime time.Duration) error {
	_, err := d.call(ctx, resty.MethodPut, "/servos/angles", anglesRequest{
		Angles:  angles,
		Runtime: runtime.Milliseconds(),
	})
	return err
}

// Speak queues text on the robot's speech engine.
func (d *YansheeDriver) Speak(ctx context.Context, text string, interrupt bool, token int64) error {
	_, err := d.call(ctx, resty.MethodPut, "/voice/tts", ttsRequest{
		TTS:       text,
		Interrupt: interrupt,
		Timestamp: token,
	})
	return err
}

// ReturnToHome plays the reset motion and waits until the robot reports it
// is no longer moving.
func (d *YansheeDriver) ReturnToHome(ctx context.Context) error {
	token := time.Now().Unix()
	if err := d.PlayNamedMotion(ctx, Motion{Name: MotionReset, Speed: SpeedNormal, Repeat: 1, Token: token}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.HomeTimeout)
	defer cancel()

	ticker := time.NewTicker(d.opts.HomePoll)
	defer ticker.Stop()

	for {
		data, err := d.call(ctx, resty.MethodGet, "/motions", nil)
		if err != nil {
			return fmt.Errorf("motion status: %w", err)
		}

		var st motionStatus
		if len(data) > 0 {
			if err := json.Unmarshal(data, &st); err != nil {
				return fmt.Errorf("decode motion status: %w", err)
			}
		}
		if st.Status != "run" {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for home pose: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// SetVolume sets the speaker volume in percent.
func (d *YansheeDriver) SetVolume(ctx context.Context, level int) error {
	_, err := d.call(ctx, resty.MethodPut, "/devices/volume", map[string]int{"volume": level})
	return err
}

// OpenVideoStream starts the on-board MJPEG stream that the camera side reads.
func (d *YansheeDriver) OpenVideoStream(ctx context.Context, resolution string) error {
	_, err := d.call(ctx, resty.MethodPost, "/visions/streams", map[string]string{"resolution": resolution})
	return err
}
