// Package shutdown centralizes process exit paths so every daemon stops
// the same way.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Context returns a context cancelled by SIGINT or SIGTERM. Control loops
// select on it so they stop at a tick boundary, never mid-tick.
func Context() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

// WithError logs a fatal startup failure and exits.
func WithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	os.Exit(1)
}
