package memory

import (
	"context"

	"github.com/YuminosukeSato/runtrack/backend"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// Kind is the backend kind of the in-memory sink.
const Kind = "memory"

func init() {
	backend.Register(Kind, func(context.Context, backend.Config) (tracking.Sink, error) {
		return New(), nil
	})
}
