package main

import (
	"testing"

	"github.com/plantdata/finsbridge/internal/shutdown"
	"github.com/plantdata/finsbridge/internal/supervisor"
)

func TestFinalExitCode_InterruptedOverridesCleanExit(t *testing.T) {
	got := finalExitCode(supervisor.ExitOK, true)
	if got != shutdown.ExitInterrupted {
		t.Errorf("finalExitCode(ExitOK, true) = %d, want %d", got, shutdown.ExitInterrupted)
	}
}

func TestFinalExitCode_InterruptedOverridesThresholdBreach(t *testing.T) {
	got := finalExitCode(supervisor.ExitThresholdBreach, true)
	if got != shutdown.ExitInterrupted {
		t.Errorf("finalExitCode(ExitThresholdBreach, true) = %d, want %d", got, shutdown.ExitInterrupted)
	}
}

func TestFinalExitCode_NotInterruptedPassesThrough(t *testing.T) {
	for _, code := range []int{supervisor.ExitOK, supervisor.ExitFinsUnreachable, supervisor.ExitThresholdBreach} {
		if got := finalExitCode(code, false); got != code {
			t.Errorf("finalExitCode(%d, false) = %d, want %d", code, got, code)
		}
	}
}
