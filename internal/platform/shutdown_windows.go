package platform

import (
	"context"
	"os"
	"os/signal"
)

// NewShutdownContext returns a context cancelled on Ctrl+C.
// Console apps on Windows do not reliably receive SIGTERM.
func NewShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
