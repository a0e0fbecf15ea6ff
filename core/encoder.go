package core

// Quadrature encoder position tracking.
// A hardware counter in encoder mode wraps modulo its period; the tracker
// unwraps consecutive samples into an unbounded signed position.

import "errors"

// CounterPeriod16 is the modulus of a 16-bit hardware counter.
const CounterPeriod16 = 1 << 16

var ErrInvalidPeriod = errors.New("encoder: counter period must be > 0")

// Tracker converts raw samples of a wrapping counter into a logical position.
//
// Read must be called often enough that the shaft moves less than half a
// counter period between two samples. Faster motion aliases into a wrong
// delta and cannot be detected here.
type Tracker struct {
	period   int64 // Counter modulus, fixed at construction
	lastRaw  uint32
	newRaw   uint32
	delta    int64 // Last corrected delta, in (-period/2, period/2]
	position int64 // Sum of corrected deltas since the last Zero
}

// NewTracker creates a tracker for a counter running in [0, period).
func NewTracker(period uint32) (*Tracker, error) {
	if period == 0 {
		return nil, ErrInvalidPeriod
	}
	return &Tracker{period: int64(period)}, nil
}

// Read records a new raw sample and returns the updated position.
func (t *Tracker) Read(raw uint32) int64 {
	t.lastRaw = t.newRaw
	t.newRaw = raw

	t.delta = int64(t.newRaw) - int64(t.lastRaw)
	// Compare doubled values so odd periods need no rounding.
	// +period/2 stays forward, -period/2 wraps to +period/2.
	if 2*t.delta > t.period {
		t.delta -= t.period
	} else if 2*t.delta <= -t.period {
		t.delta += t.period
	}

	t.position += t.delta
	return t.position
}

// Zero discards the accumulated position. Raw history is kept so the next
// delta is still measured against the real counter value.
func (t *Tracker) Zero() {
	t.position = 0
}

// Position returns the position computed by the last Read.
func (t *Tracker) Position() int64 {
	return t.position
}

// Delta returns the corrected delta computed by the last Read.
func (t *Tracker) Delta() int64 {
	return t.delta
}

// Raw returns the last raw sample.
func (t *Tracker) Raw() uint32 {
	return t.newRaw
}

// Period returns the counter modulus.
func (t *Tracker) Period() uint32 {
	return uint32(t.period)
}
