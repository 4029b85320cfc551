// Package shutdown coordinates cooperative cancellation of every
// Acquisition Loop when the operator sends an interrupt. A second signal
// forces an immediate exit instead of waiting for the grace window.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// GracePeriod is how long Coordinator waits for every loop to report
// TERMINATED after the first signal before giving up and returning anyway.
const GracePeriod = 2 * time.Second

// ExitInterrupted is the process exit code an operator-initiated shutdown
// must produce, whether every loop drained inside the grace window or a
// second signal forced an immediate exit.
const ExitInterrupted = 130

// Coordinator wires os/signal into a context.CancelFunc, turning SIGINT and
// SIGTERM into cooperative cancellation of the whole acquisition tree.
type Coordinator struct {
	logger   zerolog.Logger
	cancel   context.CancelFunc
	sigs     chan os.Signal
	signaled atomic.Bool
}

// New derives a cancellable context from parent and returns a Coordinator
// watching it. Call Watch to start listening for signals.
func New(parent context.Context, logger zerolog.Logger) (context.Context, *Coordinator) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, &Coordinator{
		logger: logger.With().Str("component", "shutdown").Logger(),
		cancel: cancel,
		sigs:   make(chan os.Signal, 2),
	}
}

// Watch blocks until the first SIGINT/SIGTERM arrives or done closes. If
// done closes first (every loop drained without a signal), Watch returns
// at once. On a signal it cancels the context, then waits up to
// GracePeriod for done to close (signalling every loop reached
// TERMINATED). A second signal during the grace window calls os.Exit(130)
// immediately rather than waiting further.
func (c *Coordinator) Watch(done <-chan struct{}) {
	signal.Notify(c.sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c.sigs)

	select {
	case <-c.sigs:
	case <-done:
		// A signal already queued when done closed still counts.
		select {
		case <-c.sigs:
		default:
			return
		}
	}
	c.signaled.Store(true)
	c.logger.Info().Msg("shutdown requested, cancelling acquisition loops")
	c.cancel()

	timer := time.NewTimer(GracePeriod)
	defer timer.Stop()

	select {
	case <-done:
		c.logger.Info().Msg("all loops terminated cleanly")
	case <-c.sigs:
		c.logger.Warn().Msg("second interrupt received, forcing exit")
		os.Exit(ExitInterrupted)
	case <-timer.C:
		c.logger.Warn().Msg("grace period elapsed, some loops did not terminate in time")
	}
}

// Interrupted reports whether an operator signal initiated this shutdown,
// as opposed to the caller cancelling the context itself (e.g. a fatal
// startup error). The caller uses this to decide whether the process exit
// code must be overridden to ExitInterrupted.
func (c *Coordinator) Interrupted() bool {
	return c.signaled.Load()
}

// Cancel triggers cancellation without waiting for a signal. Exposed for
// callers (and tests) that need to unwind the acquisition tree
// programmatically, e.g. after a fatal startup error.
func (c *Coordinator) Cancel() {
	c.cancel()
}
