package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/config"
	"github.com/ayusman/robowave/internal/logging"
	"github.com/ayusman/robowave/internal/robot"
	"github.com/ayusman/robowave/internal/transport"
)

func setup(service string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, service)
	if err != nil {
		return cfg, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func mqttOptions(cfg config.Config, role string) transport.MQTTOptions {
	return transport.MQTTOptions{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID + "-" + role,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
		QoS:      cfg.MQTT.QoS,
		Timeout:  cfg.MQTT.Timeout,
	}
}

// newTransport builds the camera-side delivery for channel.transport.
func newTransport(ctx context.Context, cfg config.Config, logger *zap.Logger) (transport.Transport, error) {
	switch cfg.Channel.Transport {
	case "scp":
		return transport.NewSCPTransport(transport.SCPOptions{
			Host:       cfg.SCP.Host,
			Port:       cfg.SCP.Port,
			User:       cfg.SCP.User,
			Password:   cfg.SCP.Password,
			KeyFile:    cfg.SCP.KeyFile,
			KnownHosts: cfg.SCP.KnownHosts,
			RemotePath: cfg.SCP.RemotePath,
			Timeout:    cfg.SCP.Timeout,
		}, logger.Named("scp"))
	case "file":
		if cfg.Channel.RemotePath == "" {
			return nil, nil
		}
		return transport.NewFileTransport(cfg.Channel.RemotePath), nil
	case "redis":
		return transport.NewRedisSlot(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key), nil
	case "mqtt":
		return transport.NewMQTTTransport(ctx, mqttOptions(cfg, "camera"))
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Channel.Transport)
}

// newSource builds the robot-side reader for receiver.source.
func newSource(ctx context.Context, cfg config.Config) (transport.Source, error) {
	switch cfg.Receiver.Source {
	case "file":
		return transport.NewFileSource(cfg.Receiver.RecordPath), nil
	case "redis":
		return transport.NewRedisSlot(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key), nil
	case "mqtt":
		return transport.NewMQTTSource(ctx, mqttOptions(cfg, "robot"))
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Receiver.Source)
}

// newDriver builds the actuator driver. dryRun forces the logging driver.
func newDriver(ctx context.Context, cfg config.Config, dryRun bool, logger *zap.Logger) (robot.Driver, error) {
	driver := cfg.Robot.Driver
	if dryRun {
		driver = "log"
	}

	switch driver {
	case "yanshee":
		return robot.NewYansheeDriver(robot.YansheeOptions{
			Address: cfg.Robot.Address,
			Port:    cfg.Robot.Port,
			Timeout: cfg.Robot.Timeout,
		}, logger.Named("yanshee")), nil
	case "servo":
		ids := make(map[robot.Joint]int, len(cfg.Robot.Servo.IDs))
		for name, id := range cfg.Robot.Servo.IDs {
			ids[robot.Joint(name)] = id
		}
		home := make(map[robot.Joint]float64, len(cfg.Robot.Servo.Home))
		for name, deg := range cfg.Robot.Servo.Home {
			home[robot.Joint(name)] = deg
		}
		return robot.NewServoDriver(ctx, robot.ServoOptions{
			Port:     cfg.Robot.Servo.Port,
			BaudRate: cfg.Robot.Servo.BaudRate,
			IDs:      ids,
			Home:     home,
		}, logger.Named("servo"))
	case "log":
		return robot.NewLogDriver(logger), nil
	}
	return nil, fmt.Errorf("unknown driver %q", driver)
}

func closeQuietly(logger *zap.Logger, what string, v any) {
	if err := transport.Close(v); err != nil {
		logger.Warn("close failed", zap.String("what", what), zap.Error(err))
	}
}
