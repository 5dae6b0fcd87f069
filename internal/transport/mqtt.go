package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

func (o MQTTOptions) client(onConnect mqtt.OnConnectHandler) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if o.Timeout > 0 {
		opts.SetConnectTimeout(o.Timeout)
	}
	if onConnect != nil {
		opts.SetOnConnectHandler(onConnect)
	}
	return mqtt.NewClient(opts)
}

// waitToken waits for an MQTT token or the context, whichever ends first.
func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MQTTTransport publishes each document as the retained message of one
// topic, so the broker always holds only the latest command.
type MQTTTransport struct {
	client mqtt.Client
	opts   MQTTOptions
}

// NewMQTTTransport connects to the broker.
func NewMQTTTransport(ctx context.Context, opts MQTTOptions) (*MQTTTransport, error) {
	client := opts.client(nil)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", opts.Broker, err)
	}
	return &MQTTTransport{client: client, opts: opts}, nil
}

// Deliver publishes data as the retained message.
func (t *MQTTTransport) Deliver(ctx context.Context, data []byte) error {
	if err := waitToken(ctx, t.client.Publish(t.opts.Topic, t.opts.QoS, true, data)); err != nil {
		return fmt.Errorf("publish to %s: %w", t.opts.Topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() error {
	t.client.Disconnect(250)
	return nil
}

// MQTTSource subscribes to the command topic and keeps the latest payload.
type MQTTSource struct {
	client mqtt.Client
	opts   MQTTOptions

	mu     sync.Mutex
	latest []byte
}

// NewMQTTSource connects and subscribes. The subscription is renewed on
// every reconnect; the broker then replays the retained command.
func NewMQTTSource(ctx context.Context, opts MQTTOptions) (*MQTTSource, error) {
	s := &MQTTSource{opts: opts}
	s.client = opts.client(func(c mqtt.Client) {
		c.Subscribe(opts.Topic, opts.QoS, s.onMessage)
	})

	if err := waitToken(ctx, s.client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", opts.Broker, err)
	}
	return s, nil
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.store(msg.Payload())
}

func (s *MQTTSource) store(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = append(s.latest[:0], payload...)
}

// Fetch returns the latest payload, or ErrNoRecord before the first one.
func (s *MQTTSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latest) == 0 {
		return nil, ErrNoRecord
	}
	out := make([]byte, len(s.latest))
	copy(out, s.latest)
	return out, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}
