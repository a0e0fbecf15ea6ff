package mcu

import (
	"quadtrack/core"
	"quadtrack/protocol"
)

// DecodeEncoderPosition decodes encoder_position arguments
func DecodeEncoderPosition(data *[]byte) (core.EncoderReport, error) {
	var r core.EncoderReport
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return r, err
	}
	clock, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return r, err
	}
	pos, err := protocol.DecodeVLQInt64(data)
	if err != nil {
		return r, err
	}
	delta, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return r, err
	}
	r.OID = uint8(oid)
	r.Clock = clock
	r.Position = pos
	r.Delta = int64(delta)
	return r, nil
}

func (m *MCU) storeReport(r core.EncoderReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	share, ok := m.positions[r.OID]
	if !ok {
		share = core.NewShare[int64](0)
		m.positions[r.OID] = share
	}
	share.Write(r.Position)
	m.reports.Put(r)
}

// Position returns the last reported position of oid
func (m *MCU) Position(oid uint8) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	share, ok := m.positions[oid]
	if !ok {
		return 0, false
	}
	return share.Read(), true
}

// DrainReports removes and returns every queued report, oldest first
func (m *MCU) DrainReports() []core.EncoderReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.EncoderReport, 0, m.reports.Len())
	for m.reports.Len() > 0 {
		r, _ := m.reports.Get()
		out = append(out, r)
	}
	return out
}

// ConfigEncoder binds oid to a firmware counter. period 0 uses the
// counter's own period.
func (m *MCU) ConfigEncoder(oid, counter uint8, period uint32) error {
	err := m.SendCommand("config_encoder", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, uint32(counter))
		protocol.EncodeVLQUint(output, period)
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.positions[oid] = core.NewShare[int64](0)
	m.mu.Unlock()
	return nil
}

// QueryEncoder starts periodic reports at clock. restTicks 0 stops them.
func (m *MCU) QueryEncoder(oid uint8, clock, restTicks uint32) error {
	return m.SendCommand("query_encoder", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
		protocol.EncodeVLQUint(output, clock)
		protocol.EncodeVLQUint(output, restTicks)
	})
}

// ZeroEncoder makes the current shaft angle position 0
func (m *MCU) ZeroEncoder(oid uint8) error {
	err := m.SendCommand("encoder_zero", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	if share, ok := m.positions[oid]; ok {
		share.Write(0)
	}
	m.mu.Unlock()
	return nil
}

// RequestPosition asks for an immediate encoder_position report. The
// reply arrives asynchronously; read it with Position or DrainReports.
func (m *MCU) RequestPosition(oid uint8) error {
	return m.SendCommand("get_encoder_position", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(oid))
	})
}
