//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so timer handlers and GPIO edge
// handlers see consistent encoder state.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
