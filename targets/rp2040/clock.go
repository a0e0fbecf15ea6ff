//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"quadtrack/core"
)

// RP2040 TIMER peripheral, a free-running 1MHz 64-bit counter
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08
	timerTIMERAWL = timerBase + 0x0C
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// InitClock registers the clock constants the host converts with
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.RegisterConstant("CLOCK_FREQ", uint32(core.TimerFreq))
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full 64-bit counter, retrying across a
// carry into the high word.
func GetHardwareUptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		if timerRAWH.Get() == high1 {
			return uint64(high1)<<32 | uint64(low)
		}
	}
}

// UpdateSystemTime copies hardware time into the core clock
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
