package core

// Software quadrature decoding for boards without a timer in encoder mode.
// Every edge on either phase moves the count by one (x4 decoding).

// quadStep maps prev<<2|cur of the two-bit AB state to a count change.
// A leading B counts up. Entries where both phases changed at once are
// invalid and also map to 0; they are counted separately.
var quadStep = [16]int8{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

// QuadratureDecoder turns phase transitions into a wrapping counter of a
// fixed bit width, the same thing a hardware timer in encoder mode produces.
type QuadratureDecoder struct {
	PinA, PinB GPIOPin
	state      uint8  // Last AB state, A in bit 1
	count      uint32 // Masked to the counter width
	mask       uint32
	errors     uint32 // Transitions where both phases changed
}

// NewQuadratureDecoder creates a decoder whose counter wraps at 1<<bits.
// bits outside 1..32 selects a 16-bit counter.
func NewQuadratureDecoder(pinA, pinB GPIOPin, bits uint8) *QuadratureDecoder {
	if bits == 0 || bits > 32 {
		bits = 16
	}
	mask := uint32(0xFFFFFFFF)
	if bits < 32 {
		mask = (uint32(1) << bits) - 1
	}
	return &QuadratureDecoder{PinA: pinA, PinB: pinB, mask: mask}
}

// Period returns the counter modulus. A 32-bit decoder reports 0, which is
// not a valid tracker period; use 16 bits or fewer with a Tracker.
func (q *QuadratureDecoder) Period() uint32 {
	return q.mask + 1
}

// Init latches the current phase levels without counting.
func (q *QuadratureDecoder) Init(a, b bool) {
	q.state = quadState(a, b)
}

// Update applies a new phase sample.
func (q *QuadratureDecoder) Update(a, b bool) {
	cur := quadState(a, b)
	idx := q.state<<2 | cur
	q.state = cur

	step := quadStep[idx]
	if step == 0 {
		if idx == 3 || idx == 6 || idx == 9 || idx == 12 {
			q.errors++
		}
		return
	}
	q.count = (q.count + uint32(int32(step))) & q.mask
}

// Sample reads both phase pins through the GPIO driver and applies them.
func (q *QuadratureDecoder) Sample(gpio GPIODriver) {
	q.Update(gpio.ReadPin(q.PinA), gpio.ReadPin(q.PinB))
}

// Counter implements CounterSource.
func (q *QuadratureDecoder) Counter() uint32 {
	state := disableInterrupts()
	c := q.count
	restoreInterrupts(state)
	return c
}

// Errors returns the number of invalid transitions seen, a sign that edges
// arrive faster than they are sampled.
func (q *QuadratureDecoder) Errors() uint32 {
	return q.errors
}

func quadState(a, b bool) uint8 {
	var s uint8
	if a {
		s |= 2
	}
	if b {
		s |= 1
	}
	return s
}
