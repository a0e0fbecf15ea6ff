//go:build !tinygo

package core

// Host builds drive the clock from tests through SetTime.
func getSystemTicks() uint32 {
	return systemTicks
}

func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}
