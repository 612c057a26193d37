// Command runtrack captures training run provenance and routes metrics to a
// tracking backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/runtrack/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, nil, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}
