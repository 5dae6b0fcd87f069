package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" default:"robowave.yaml" description:"Path to the YAML configuration"`

	Watch   WatchCommand   `command:"watch" description:"Run the camera side: detect gestures and send commands"`
	Receive ReceiveCommand `command:"receive" description:"Run the robot side: poll the command slot and move the robot"`
	Send    SendCommand    `command:"send" description:"Send one command record through the configured channel"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Robowave - gesture control for a humanoid robot"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
