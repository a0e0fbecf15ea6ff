package core

import "testing"

func recordingTimer(wake uint32, order *[]uint32) *Timer {
	return &Timer{
		WakeTime: wake,
		Handler: func(t *Timer) uint8 {
			*order = append(*order, t.WakeTime)
			return SF_DONE
		},
	}
}

func TestTimerDispatchOrder(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	var order []uint32
	for _, wake := range []uint32{300, 100, 200, 100} {
		ScheduleTimer(recordingTimer(wake, &order))
	}

	SetTime(150)
	ProcessTimers()
	if len(order) != 2 || order[0] != 100 || order[1] != 100 {
		t.Errorf("Expected two timers at 100, got %v", order)
	}

	SetTime(1000)
	ProcessTimers()
	expected := []uint32{100, 100, 200, 300}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, order)
			break
		}
	}
}

func TestTimerReschedule(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	fired := 0
	timer := &Timer{WakeTime: 10, Handler: func(t *Timer) uint8 {
		fired++
		t.WakeTime += 10
		return SF_RESCHEDULE
	}}
	ScheduleTimer(timer)

	SetTime(45)
	ProcessTimers()
	// Fires at 10, 20, 30, 40
	if fired != 4 {
		t.Errorf("Expected 4 firings, got %d", fired)
	}
	if timer.WakeTime != 50 {
		t.Errorf("Expected next wake at 50, got %d", timer.WakeTime)
	}
}

func TestCancelTimer(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	var order []uint32
	a := recordingTimer(10, &order)
	b := recordingTimer(20, &order)
	c := recordingTimer(30, &order)
	ScheduleTimer(a)
	ScheduleTimer(b)
	ScheduleTimer(c)

	CancelTimer(b)
	CancelTimer(b) // Not queued any more
	CancelTimer(a)

	SetTime(100)
	ProcessTimers()
	if len(order) != 1 || order[0] != 30 {
		t.Errorf("Expected only timer 30 to fire, got %v", order)
	}
}

func TestTimerClockRollover(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	var order []uint32
	ScheduleTimer(recordingTimer(0x00000010, &order))
	ScheduleTimer(recordingTimer(0xFFFFFFF0, &order))

	SetTime(0xFFFFFF00)
	ProcessTimers()
	if len(order) != 0 {
		t.Errorf("Expected nothing due before rollover, got %v", order)
	}

	SetTime(0x00000020)
	ProcessTimers()
	if len(order) != 2 || order[0] != 0xFFFFFFF0 || order[1] != 0x10 {
		t.Errorf("Expected pre-rollover timer first, got %v", order)
	}
}

func TestGetUptimeRollover(t *testing.T) {
	SetTime(0xFFFFFFF0)
	TimerInit()
	if GetUptime() != 0xFFFFFFF0 {
		t.Errorf("Expected uptime 0xFFFFFFF0, got 0x%x", GetUptime())
	}

	SetTime(0x10)
	if up := GetUptime(); up != 1<<32|0x10 {
		t.Errorf("Expected uptime 0x100000010, got 0x%x", up)
	}
	SetTime(0)
	TimerInit()
}

func TestProcessTimersTracksUptimeRollover(t *testing.T) {
	t.Cleanup(func() {
		SetTime(0)
		TimerInit()
	})
	SetTime(0xFFFFFFF0)
	TimerInit()

	// Two rollovers with only the main loop running
	for _, now := range []uint32{0x10, 0x80000000, 0xFFFFFFF0, 0x20} {
		SetTime(now)
		ProcessTimers()
	}
	if up := GetUptime(); up != 2<<32|0x20 {
		t.Errorf("Expected uptime 0x200000020, got 0x%x", up)
	}
}

func TestUptimeSource(t *testing.T) {
	t.Cleanup(func() { SetUptimeSource(nil) })

	hw := uint64(5<<32 | 1234)
	SetUptimeSource(func() uint64 { return hw })
	if up := GetUptime(); up != hw {
		t.Errorf("Expected uptime 0x%x, got 0x%x", hw, up)
	}
	hw += 10
	if up := GetUptime(); up != hw {
		t.Errorf("Expected uptime 0x%x, got 0x%x", hw, up)
	}
}

func TestTimerConversions(t *testing.T) {
	if TimerFromUS(1500) != 1500 {
		t.Errorf("Expected 1500 ticks, got %d", TimerFromUS(1500))
	}
	if TimerToUS(TimerFromUS(4000000000)) != 4000000000 {
		t.Errorf("Expected round trip of 4000000000 us, got %d", TimerToUS(TimerFromUS(4000000000)))
	}
}
