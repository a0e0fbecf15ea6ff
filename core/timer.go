package core

// TimerFreq is the system tick rate: the RP2040 microsecond timer.
const TimerFreq = 1000000

var (
	systemTicks uint32
	bootTime    uint32 // Tick count when TimerInit ran
	uptimeHigh  uint32 // Rollovers of systemTicks seen by GetUptime
	uptimeLast  uint32

	// Set by targets with a 64-bit hardware counter
	uptimeSource func() uint64
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// SetUptimeSource makes GetUptime read a 64-bit hardware counter instead
// of extending the 32-bit clock. nil restores the software extension.
func SetUptimeSource(src func() uint64) {
	uptimeSource = src
}

// GetUptime returns ticks since power-on as 64 bits. Without an uptime
// source it extends the 32-bit clock, which needs a call at least once per
// rollover (~71 minutes at 1MHz); ProcessTimers makes one every main loop
// iteration.
func GetUptime() uint64 {
	if uptimeSource != nil {
		return uptimeSource()
	}
	return extendUptime()
}

func extendUptime() uint64 {
	now := GetTime()
	if now < uptimeLast {
		uptimeHigh++
	}
	uptimeLast = now
	return uint64(uptimeHigh)<<32 | uint64(now)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerInit initializes the system timer
func TimerInit() {
	bootTime = GetTime()
	uptimeLast = bootTime
	uptimeHigh = 0
}

// ProcessTimers runs every timer that is due at the current time
func ProcessTimers() {
	currentTime = GetTime()
	if uptimeSource == nil {
		extendUptime()
	}
	TimerDispatch()
}
