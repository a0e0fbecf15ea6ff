// Package mcu talks to the encoder firmware over the framed serial protocol.
package mcu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"quadtrack/core"
	"quadtrack/host/serial"
	"quadtrack/protocol"
)

// Bootstrap IDs fixed before the dictionary is known
const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunk      = 40
)

var (
	ErrNotConnected    = errors.New("mcu: not connected")
	ErrNoDictionary    = errors.New("mcu: dictionary not loaded")
	ErrUnknownCommand  = errors.New("mcu: command not in dictionary")
	ErrUnknownResponse = errors.New("mcu: response not in dictionary")
)

// Dictionary is the firmware's JSON data dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// MCU is a connection to one encoder firmware instance
type MCU struct {
	transport *protocol.HostTransport
	logger    *log.Logger

	dictionary     *Dictionary
	dictionaryData []byte
	commandIDs     map[string]uint16 // Command name without its format
	responseNames  map[uint16]string

	// Guards the encoder state below. Responses arrive on the transport's
	// reader goroutine.
	mu        sync.Mutex
	positions map[uint8]*core.Share[int64]
	reports   core.Queue[core.EncoderReport]

	connected bool
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{
		logger:    log.New(io.Discard, "[mcu] ", log.LstdFlags),
		positions: make(map[uint8]*core.Share[int64]),
	}
}

// SetLogger sets where protocol events are logged
func (m *MCU) SetLogger(l *log.Logger) {
	m.logger = l
}

// Connect connects to an MCU via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.ConnectPort(port)
	return nil
}

// ConnectPort runs the protocol over an already open stream
func (m *MCU) ConnectPort(port io.ReadWriteCloser) {
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetResponseHandler(m.handleResponse)
	m.connected = true
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.transport.Close()
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// RetrieveDictionary reads the dictionary in identify chunks until the
// firmware returns a short chunk.
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	var buf bytes.Buffer
	for {
		chunk, err := m.sendIdentify(uint32(buf.Len()), identifyChunk)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", buf.Len(), err)
		}
		buf.Write(chunk)
		if len(chunk) < identifyChunk {
			break
		}
	}
	m.logger.Printf("dictionary retrieved: %d bytes", buf.Len())

	dict := &Dictionary{}
	if err := json.Unmarshal(buf.Bytes(), dict); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	m.setDictionary(buf.Bytes(), dict)
	return nil
}

func (m *MCU) setDictionary(raw []byte, dict *Dictionary) {
	commandIDs := make(map[string]uint16, len(dict.Commands))
	for sig, id := range dict.Commands {
		commandIDs[signatureName(sig)] = uint16(id)
	}
	responseNames := make(map[uint16]string, len(dict.Responses))
	for sig, id := range dict.Responses {
		responseNames[uint16(id)] = signatureName(sig)
	}

	m.mu.Lock()
	m.dictionaryData = raw
	m.dictionary = dict
	m.commandIDs = commandIDs
	m.responseNames = responseNames
	m.mu.Unlock()
}

// signatureName strips the argument format from a dictionary key
func signatureName(sig string) string {
	name, _, _ := strings.Cut(sig, " ")
	return name
}

func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, err
	}

	payload, err := m.waitResponse(identifyResponseID, time.Second)
	if err != nil {
		return nil, err
	}
	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, err
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}
	return protocol.DecodeVLQBytes(&payload)
}

// waitResponse returns the arguments of the next response with id,
// skipping unrelated ones.
func (m *MCU) waitResponse(id uint16, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w waiting for response %d", protocol.ErrResponseTimeout, id)
		}
		resp, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}
		payload := resp.Payload
		got, err := protocol.DecodeVLQUint(&payload)
		if err == nil && uint16(got) == id {
			return payload, nil
		}
	}
}

// GetDictionary returns the parsed dictionary
func (m *MCU) GetDictionary() *Dictionary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionary
}

// GetDictionaryRaw returns the raw dictionary data
func (m *MCU) GetDictionaryRaw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionaryData
}

func (m *MCU) commandID(name string) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dictionary == nil {
		return 0, ErrNoDictionary
	}
	id, ok := m.commandIDs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return id, nil
}

func (m *MCU) responseID(name string) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.responseNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownResponse, name)
}

// SendCommand sends a command by name and waits for its ack
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if !m.connected {
		return ErrNotConnected
	}
	id, err := m.commandID(name)
	if err != nil {
		return err
	}
	return m.transport.SendCommand(id, args)
}

// GetClock returns the firmware's current clock
func (m *MCU) GetClock() (uint32, error) {
	respID, err := m.responseID("clock")
	if err != nil {
		return 0, err
	}
	if err := m.SendCommand("get_clock", nil); err != nil {
		return 0, err
	}
	payload, err := m.waitResponse(respID, time.Second)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQUint(&payload)
}

// handleResponse runs on the transport's reader goroutine
func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	m.mu.Lock()
	name := m.responseNames[cmdID]
	m.mu.Unlock()

	switch name {
	case "encoder_position":
		report, err := DecodeEncoderPosition(data)
		if err != nil {
			m.logger.Printf("bad encoder_position: %v", err)
			return err
		}
		m.storeReport(report)
	case "shutdown":
		clock, err := protocol.DecodeVLQUint(data)
		if err != nil {
			m.logger.Printf("bad shutdown: %v", err)
			return err
		}
		reason, err := protocol.DecodeVLQString(data)
		if err != nil {
			m.logger.Printf("bad shutdown: %v", err)
			return err
		}
		m.logger.Printf("firmware shutdown at clock %d: %s", clock, reason)
	}
	return nil
}
