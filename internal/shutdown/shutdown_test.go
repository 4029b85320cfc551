package shutdown

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCoordinator_SignalCancelsContextAndReturnsOnDone(t *testing.T) {
	ctx, coord := New(context.Background(), zerolog.Nop())

	done := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		coord.Watch(done)
		close(watchDone)
	}()

	coord.sigs <- syscall.SIGINT

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after signal")
	}

	close(done)

	select {
	case <-watchDone:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after done closed")
	}
}

func TestCoordinator_CancelWithoutSignal(t *testing.T) {
	ctx, coord := New(context.Background(), zerolog.Nop())
	coord.Cancel()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected context to be cancelled")
	}

	if coord.Interrupted() {
		t.Error("Interrupted() should be false when shutdown was triggered by Cancel, not a signal")
	}
}

func TestCoordinator_InterruptedAfterSignal(t *testing.T) {
	_, coord := New(context.Background(), zerolog.Nop())

	done := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		coord.Watch(done)
		close(watchDone)
	}()

	coord.sigs <- syscall.SIGINT
	close(done)

	select {
	case <-watchDone:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after done closed")
	}

	if !coord.Interrupted() {
		t.Error("Interrupted() should be true after a signal initiated shutdown")
	}
}
