//go:build tinygo

package core

import "sync/atomic"

// The target clock loop stores the hardware tick count here while the
// main loop and handlers read it.
var systemTicksValue uint32

func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicksValue)
}

func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicksValue, ticks)
}
