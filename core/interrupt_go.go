//go:build !tinygo

package core

// State stands in for runtime/interrupt.State when built with the
// standard toolchain. Host builds run the firmware loop on one goroutine,
// so masking is a no-op.
type State uintptr

func disableInterrupts() State {
	return 0
}

func restoreInterrupts(State) {}
