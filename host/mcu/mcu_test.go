package mcu

import (
	"bytes"
	"errors"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"testing"

	"quadtrack/core"
	"quadtrack/protocol"
)

// startFirmware runs the core command set on the far end of a pipe.
// The counter reads raw.
func startFirmware(t *testing.T, raw *atomic.Uint32, period uint32) *MCU {
	t.Helper()

	core.InitCoreCommands()
	core.ResetFirmwareState()
	core.ResetCounters()
	if err := core.RegisterCounter(0, core.CounterFunc(raw.Load), period); err != nil {
		t.Fatalf("RegisterCounter failed: %v", err)
	}

	hostConn, devConn := net.Pipe()
	go func() {
		out := protocol.NewScratchOutput()
		tr := protocol.NewTransport(out, core.DispatchCommand)
		core.SetGlobalTransport(tr)

		var pending []byte
		buf := make([]byte, 64)
		for {
			n, err := devConn.Read(buf)
			if err != nil {
				return
			}
			pending = append(pending, buf[:n]...)
			in := protocol.NewSliceInputBuffer(pending)
			tr.Receive(in)
			pending = append([]byte(nil), in.Data()...)
			core.EncoderTask()

			if len(out.Result()) > 0 {
				if _, err := devConn.Write(out.Result()); err != nil {
					return
				}
				out.Reset()
			}
		}
	}()

	m := NewMCU()
	m.ConnectPort(hostConn)
	t.Cleanup(func() {
		m.Close()
		devConn.Close()
	})
	return m
}

func TestRetrieveDictionary(t *testing.T) {
	var raw atomic.Uint32
	m := startFirmware(t, &raw, core.CounterPeriod16)

	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	dict := m.GetDictionary()
	if _, ok := dict.Commands["config_encoder oid=%c counter=%c period=%u"]; !ok {
		t.Errorf("config_encoder missing from dictionary: %v", dict.Commands)
	}
	if id, ok := dict.Responses["identify_response offset=%u data=%*s"]; !ok || id != 0 {
		t.Errorf("Expected identify_response at ID 0, got %d (%v)", id, ok)
	}
	if string(m.GetDictionaryRaw()) != string(core.GetGlobalDictionary().Generate()) {
		t.Error("Retrieved dictionary differs from firmware dictionary")
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	var raw atomic.Uint32
	raw.Store(65500)
	m := startFirmware(t, &raw, core.CounterPeriod16)

	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	if err := m.ConfigEncoder(4, 0, 0); err != nil {
		t.Fatalf("ConfigEncoder failed: %v", err)
	}
	if pos, ok := m.Position(4); !ok || pos != 0 {
		t.Errorf("Expected position 0 after config, got %d (%v)", pos, ok)
	}

	// Forward through the counter wrap
	raw.Store(100)
	if err := m.RequestPosition(4); err != nil {
		t.Fatalf("RequestPosition failed: %v", err)
	}
	if pos, _ := m.Position(4); pos != 136 {
		t.Errorf("Expected position 136, got %d", pos)
	}

	// Backward far enough to need the high position word
	for i := 0; i < 4; i++ {
		raw.Store((raw.Load() + 65536 - 30000) % 65536)
		if err := m.RequestPosition(4); err != nil {
			t.Fatalf("RequestPosition failed: %v", err)
		}
	}
	if pos, _ := m.Position(4); pos != 136-120000 {
		t.Errorf("Expected position %d, got %d", 136-120000, pos)
	}

	reports := m.DrainReports()
	if len(reports) != 5 {
		t.Fatalf("Expected 5 reports, got %d", len(reports))
	}
	if reports[0].Delta != 136 || reports[4].Delta != -30000 {
		t.Errorf("Unexpected deltas %d, %d", reports[0].Delta, reports[4].Delta)
	}
	if len(m.DrainReports()) != 0 {
		t.Error("Expected queue empty after drain")
	}

	if err := m.ZeroEncoder(4); err != nil {
		t.Fatalf("ZeroEncoder failed: %v", err)
	}
	if pos, _ := m.Position(4); pos != 0 {
		t.Errorf("Expected position 0 after zero, got %d", pos)
	}
}

func TestGetClock(t *testing.T) {
	var raw atomic.Uint32
	m := startFirmware(t, &raw, core.CounterPeriod16)
	core.SetTime(123456)

	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	clock, err := m.GetClock()
	if err != nil {
		t.Fatalf("GetClock failed: %v", err)
	}
	if clock != 123456 {
		t.Errorf("Expected clock 123456, got %d", clock)
	}
}

func TestCommandsNeedDictionary(t *testing.T) {
	m := NewMCU()
	if err := m.RequestPosition(0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	var raw atomic.Uint32
	m = startFirmware(t, &raw, core.CounterPeriod16)
	if err := m.ZeroEncoder(0); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Expected ErrNoDictionary, got %v", err)
	}
	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	if err := m.SendCommand("no_such_command", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestDecodeEncoderPosition(t *testing.T) {
	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 2)
	protocol.EncodeVLQUint(output, 4000000000)
	protocol.EncodeVLQInt64(output, -1<<40)
	protocol.EncodeVLQInt(output, -7)
	data := output.Result()

	r, err := DecodeEncoderPosition(&data)
	if err != nil {
		t.Fatalf("DecodeEncoderPosition failed: %v", err)
	}
	if r.OID != 2 || r.Clock != 4000000000 || r.Position != -1<<40 || r.Delta != -7 {
		t.Errorf("Unexpected report %+v", r)
	}

	short := []byte{1}
	if _, err := DecodeEncoderPosition(&short); err == nil {
		t.Error("Expected error for truncated payload")
	}
}

func TestHandleShutdownResponse(t *testing.T) {
	var logged bytes.Buffer
	m := NewMCU()
	m.SetLogger(log.New(&logged, "", 0))
	m.responseNames = map[uint16]string{7: "shutdown"}

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 1234)
	protocol.EncodeVLQString(output, "emergency stop")
	data := append([]byte(nil), output.Result()...)
	if err := m.handleResponse(7, &data); err != nil {
		t.Fatalf("handleResponse failed: %v", err)
	}
	if !strings.Contains(logged.String(), "clock 1234: emergency stop") {
		t.Errorf("Expected shutdown logged, got %q", logged.String())
	}

	// Reason length says 10 bytes but only 2 follow
	logged.Reset()
	truncated := []byte{0x05, 10, 'a', 'b'}
	if err := m.handleResponse(7, &truncated); err == nil {
		t.Error("Expected error for truncated shutdown")
	}
	if !strings.Contains(logged.String(), "bad shutdown") {
		t.Errorf("Expected decode error logged, got %q", logged.String())
	}
}
