package core

import "errors"

// CounterID identifies a hardware counting source registered by the target.
type CounterID uint8

// MaxCounters is the number of counter slots a target can register.
const MaxCounters = 8

// CounterSource is a free-running counter in encoder mode, or anything that
// behaves like one.
type CounterSource interface {
	// Counter returns the current raw count in [0, period).
	Counter() uint32
}

// CounterFunc adapts a plain function to CounterSource.
type CounterFunc func() uint32

func (f CounterFunc) Counter() uint32 {
	return f()
}

var (
	ErrCounterInUse   = errors.New("counter already registered")
	ErrUnknownCounter = errors.New("counter not registered")
)

type counterSlot struct {
	src    CounterSource
	period uint32
}

var counters [MaxCounters]counterSlot

// RegisterCounter is called by target-specific code to expose a counter.
// period is the counter modulus, e.g. CounterPeriod16.
func RegisterCounter(id CounterID, src CounterSource, period uint32) error {
	if int(id) >= MaxCounters {
		return ErrUnknownCounter
	}
	if period == 0 {
		return ErrInvalidPeriod
	}
	if counters[id].src != nil {
		return ErrCounterInUse
	}
	counters[id] = counterSlot{src: src, period: period}
	return nil
}

// LookupCounter returns a registered counter and its period.
func LookupCounter(id CounterID) (CounterSource, uint32, bool) {
	if int(id) >= MaxCounters || counters[id].src == nil {
		return nil, 0, false
	}
	return counters[id].src, counters[id].period, true
}

// ResetCounters clears all registrations (for testing)
func ResetCounters() {
	counters = [MaxCounters]counterSlot{}
}

// UnregisterCounter frees a counter slot
func UnregisterCounter(id CounterID) {
	if int(id) < MaxCounters {
		counters[id] = counterSlot{}
	}
}
