// Quadrature encoder objects.
// Implements config_encoder/query_encoder so the host can read unbounded
// shaft positions from wrapping hardware counters.
package core

import (
	"errors"

	"quadtrack/protocol"
)

var (
	ErrUnknownEncoder = errors.New("encoder: oid not configured")
	ErrPeriodMismatch = errors.New("encoder: period differs from counter modulus")
)

// EncoderReport is one position sample waiting to be sent to the host
type EncoderReport struct {
	OID      uint8
	Clock    uint32 // System time the counter was read
	Position int64
	Delta    int64
}

// Encoder binds an oid to a counter and tracks its position
type Encoder struct {
	OID     uint8
	Counter CounterID

	source  CounterSource
	tracker *Tracker
	latest  *Share[int64] // Position after the most recent sample

	timer     Timer
	restTicks uint32
	sampling  bool
}

var (
	encoders = make(map[uint8]*Encoder)

	// Filled by timer handlers, drained by EncoderTask
	encoderReports Queue[EncoderReport]
	encoderWake    bool

	// Counters created by config_quadrature, released on config_reset
	quadratureCounters []CounterID
)

// InitEncoderCommands registers encoder commands with the command registry
func InitEncoderCommands() {
	RegisterCommand("config_encoder", "oid=%c counter=%c period=%u", handleConfigEncoder)
	RegisterCommand("query_encoder", "oid=%c clock=%u rest_ticks=%u", handleQueryEncoder)
	RegisterCommand("encoder_zero", "oid=%c", handleEncoderZero)
	RegisterCommand("get_encoder_position", "oid=%c", handleGetEncoderPosition)
	RegisterCommand("config_quadrature", "counter=%c pin_a=%u pin_b=%u", handleConfigQuadrature)

	RegisterResponse("encoder_position", "oid=%c clock=%u position_hi=%i position_lo=%u delta=%i")

	RegisterConstant("ENCODER_MAX_COUNTERS", uint32(MaxCounters))
}

// ConfigureEncoder creates or replaces the encoder at oid. period 0 uses
// the period the counter was registered with; any other value must match it.
func ConfigureEncoder(oid uint8, counter CounterID, period uint32) (*Encoder, error) {
	src, registered, ok := LookupCounter(counter)
	if !ok {
		return nil, ErrUnknownCounter
	}
	if period == 0 {
		period = registered
	} else if period != registered {
		return nil, ErrPeriodMismatch
	}
	tracker, err := NewTracker(period)
	if err != nil {
		return nil, err
	}

	if old, exists := encoders[oid]; exists {
		old.stop()
	}

	// Prime with the current count so the first report is not a jump from 0.
	tracker.Read(src.Counter())
	tracker.Zero()

	enc := &Encoder{
		OID:     oid,
		Counter: counter,
		source:  src,
		tracker: tracker,
		latest:  NewShare[int64](0),
	}
	enc.timer.Handler = enc.timerHandler
	encoders[oid] = enc
	return enc, nil
}

// LookupEncoder returns the encoder configured at oid
func LookupEncoder(oid uint8) (*Encoder, error) {
	enc, ok := encoders[oid]
	if !ok {
		return nil, ErrUnknownEncoder
	}
	return enc, nil
}

// Sample reads the counter and returns the updated report
func (e *Encoder) Sample() EncoderReport {
	state := disableInterrupts()
	raw := e.source.Counter()
	clock := GetTime()
	pos := e.tracker.Read(raw)
	e.latest.Write(pos)
	restoreInterrupts(state)

	return EncoderReport{OID: e.OID, Clock: clock, Position: pos, Delta: e.tracker.Delta()}
}

// Zero makes the current shaft angle position 0
func (e *Encoder) Zero() {
	state := disableInterrupts()
	e.tracker.Zero()
	e.latest.Write(0)
	restoreInterrupts(state)
}

// Position returns the position from the most recent sample
func (e *Encoder) Position() int64 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return e.latest.Read()
}

// Sampling reports whether periodic sampling is active
func (e *Encoder) Sampling() bool {
	return e.sampling
}

// StartSampling samples at clock and every restTicks after. restTicks 0
// stops sampling.
func (e *Encoder) StartSampling(clock, restTicks uint32) {
	e.stop()
	if restTicks == 0 {
		return
	}
	e.restTicks = restTicks
	e.sampling = true
	e.timer.WakeTime = clock
	ScheduleTimer(&e.timer)
}

func (e *Encoder) stop() {
	CancelTimer(&e.timer)
	e.sampling = false
}

// timerHandler runs in timer context: sample and queue the report for
// EncoderTask.
func (e *Encoder) timerHandler(t *Timer) uint8 {
	if !e.sampling {
		return SF_DONE
	}

	report := e.Sample()
	encoderReports.Put(report)
	encoderWake = true

	t.WakeTime += e.restTicks
	// Skip missed periods instead of sampling back to back to catch up.
	if !timerBefore(report.Clock, t.WakeTime) {
		t.WakeTime = report.Clock + e.restTicks
		DebugAsync("[ENC] oid=" + itoa(int(e.OID)) + " missed sample periods")
	}
	return SF_RESCHEDULE
}

// EncoderTask sends queued reports. Call it from the main loop. Reports
// that do not fit in the output buffer stay queued for the next call.
func EncoderTask() {
	state := disableInterrupts()
	if !encoderWake {
		restoreInterrupts(state)
		return
	}
	encoderWake = false
	restoreInterrupts(state)

	for {
		state = disableInterrupts()
		if encoderReports.Len() == 0 {
			restoreInterrupts(state)
			return
		}
		report, _ := encoderReports.Peek()
		restoreInterrupts(state)

		if err := sendEncoderPosition(report); errors.Is(err, protocol.ErrOutputFull) {
			state = disableInterrupts()
			encoderWake = true
			restoreInterrupts(state)
			return
		}

		state = disableInterrupts()
		encoderReports.Get()
		restoreInterrupts(state)
	}
}

func sendEncoderPosition(r EncoderReport) error {
	return SendResponse("encoder_position", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(r.OID))
		protocol.EncodeVLQUint(output, r.Clock)
		protocol.EncodeVLQInt64(output, r.Position)
		protocol.EncodeVLQInt(output, int32(r.Delta))
	})
}

// ShutdownAllEncoders stops sampling and drops unsent reports. Positions
// are kept so they can still be queried.
func ShutdownAllEncoders() {
	for _, enc := range encoders {
		enc.stop()
	}
	state := disableInterrupts()
	encoderReports.Reset()
	encoderWake = false
	restoreInterrupts(state)
}

// ResetEncoders removes every encoder and the counters config_quadrature
// registered.
func ResetEncoders() {
	ShutdownAllEncoders()
	encoders = make(map[uint8]*Encoder)
	for _, id := range quadratureCounters {
		UnregisterCounter(id)
	}
	quadratureCounters = nil
}

func decodeOID(data *[]byte) (uint8, error) {
	oid, err := protocol.DecodeVLQUint(data)
	return uint8(oid), err
}

func handleConfigEncoder(data *[]byte) error {
	oid, err := decodeOID(data)
	if err != nil {
		return err
	}
	counter, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	period, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if _, err := ConfigureEncoder(oid, CounterID(counter), period); err != nil {
		DebugPrintln("[ENC] config_encoder oid=" + itoa(int(oid)) + ": " + err.Error())
		return err
	}
	return nil
}

func handleQueryEncoder(data *[]byte) error {
	oid, err := decodeOID(data)
	if err != nil {
		return err
	}
	clock, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	restTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	enc, err := LookupEncoder(oid)
	if err != nil {
		return err
	}
	if IsShutdown() {
		return nil
	}
	enc.StartSampling(clock, restTicks)
	return nil
}

func handleEncoderZero(data *[]byte) error {
	oid, err := decodeOID(data)
	if err != nil {
		return err
	}
	enc, err := LookupEncoder(oid)
	if err != nil {
		return err
	}
	enc.Zero()
	return nil
}

func handleGetEncoderPosition(data *[]byte) error {
	oid, err := decodeOID(data)
	if err != nil {
		return err
	}
	enc, err := LookupEncoder(oid)
	if err != nil {
		return err
	}
	return sendEncoderPosition(enc.Sample())
}

// handleConfigQuadrature decodes phase pins in software and exposes the
// count as a 16-bit counter.
func handleConfigQuadrature(data *[]byte) error {
	counter, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	pinA, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	pinB, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	_, err = ConfigureQuadrature(CounterID(counter), GPIOPin(pinA), GPIOPin(pinB))
	return err
}

// ConfigureQuadrature attaches a QuadratureDecoder to two GPIO inputs and
// registers it as counter id.
func ConfigureQuadrature(id CounterID, pinA, pinB GPIOPin) (*QuadratureDecoder, error) {
	gpio := MustGPIO()
	if err := gpio.ConfigureInputPullUp(pinA); err != nil {
		return nil, err
	}
	if err := gpio.ConfigureInputPullUp(pinB); err != nil {
		return nil, err
	}

	dec := NewQuadratureDecoder(pinA, pinB, 16)
	dec.Init(gpio.ReadPin(pinA), gpio.ReadPin(pinB))
	if err := RegisterCounter(id, dec, dec.Period()); err != nil {
		return nil, err
	}
	quadratureCounters = append(quadratureCounters, id)

	onEdge := func(GPIOPin) { dec.Sample(gpio) }
	if err := gpio.SetEdgeHandler(pinA, onEdge); err != nil {
		return nil, err
	}
	if err := gpio.SetEdgeHandler(pinB, onEdge); err != nil {
		return nil, err
	}
	return dec, nil
}
