package main

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/command"
	"github.com/ayusman/robowave/internal/gesture"
)

type SendCommand struct {
	Gesture   string `short:"g" long:"gesture" description:"Gesture to send (WAVE_LEFT, WAVE_RIGHT, WAVE_BOTH, RESET)"`
	Name      string `long:"name" description:"Raw command name, sent as-is"`
	Direction string `long:"direction" description:"Raw command direction, used with --name"`
}

func (c *SendCommand) Execute(args []string) error {
	if (c.Gesture == "") == (c.Name == "") {
		return errors.New("exactly one of --gesture or --name is required")
	}

	cfg, logger, err := setup("robowave-send")
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateSender(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	t, err := newTransport(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	defer closeQuietly(logger, "transport", t)

	channel := command.NewChannel(cfg.Channel.RecordPath, t, logger.Named("channel"))

	var rec command.Record
	if c.Gesture != "" {
		sym, ok := gesture.ParseSymbol(c.Gesture)
		if !ok {
			return fmt.Errorf("unknown gesture %q", c.Gesture)
		}
		rec, err = channel.Send(ctx, sym, time.Now())
		if err != nil {
			return err
		}
	} else {
		rec, err = channel.SendRecord(ctx, c.Name, c.Direction, time.Now())
		if err != nil {
			return err
		}
	}

	fmt.Printf("sent %s %s at %.6f\n", rec.Name, rec.Direction, rec.TimestampSent)
	logger.Debug("send complete", zap.String("name", rec.Name))
	return nil
}
