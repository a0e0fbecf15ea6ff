package protocol

import (
	"bytes"
	"sync/atomic"
)

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device side of the link: it parses blocks from the host,
// dispatches their commands and acknowledges them.
type Transport struct {
	isSynchronized uint32 // atomic bool
	// Next sequence expected from the host. Acks and responses carry the
	// same value.
	nextSequence  uint32
	output        OutputBuffer
	handler       CommandHandler
	resetCallback func() // Called when host reset is detected
	flushCallback func() // Called to push acks out immediately
	frame         frameBuilder
}

// outputSpace is implemented by output buffers of fixed size
type outputSpace interface {
	Free() int
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		isSynchronized: 1,
		nextSequence:   MessageDest,
		output:         output,
		handler:        handler,
	}
}

// Receive consumes complete blocks from input. Partial blocks stay in the
// buffer until more data arrives.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			syncPos := bytes.IndexByte(data, MessageValueSync)
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			t.setSynchronized(true)
			t.encodeAckNak()
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		msgLen, ok, need := frameOK(data)
		if need {
			break
		}
		if !ok {
			t.setSynchronized(false)
			continue
		}

		seq := data[MessagePositionSeq]
		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		// Sequence back at MessageDest means the host restarted.
		expected := uint8(atomic.LoadUint32(&t.nextSequence))
		if seq == MessageDest && expected != MessageDest {
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if seq == expected {
			atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(seq)))
			_ = t.parseFrame(frame)
		}
		// Sent for every block. On a sequence mismatch it is a nak carrying
		// the expected sequence.
		t.encodeAckNak()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame decodes and dispatches every command in a block
func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynchronized(false)
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.setSynchronized(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		// Handler errors stop this block but do not desync the link.
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			return err
		}
	}
	return nil
}

// encodeAckNak writes an empty block carrying the next expected sequence
func (t *Transport) encodeAckNak() {
	ns := uint8(atomic.LoadUint32(&t.nextSequence))
	if out, ok := t.output.(outputSpace); ok && out.Free() < MessageLengthMin && t.flushCallback != nil {
		t.flushCallback()
	}
	t.output.Output(appendTrailer([]byte{MessageLengthMin, ns}))

	// The host waits for the ack before it accepts responses.
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one block whose payload is produced by frameData.
// Nothing is written when the block would exceed MessageLengthMax or not
// fit in the output buffer.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) error {
	f := &t.frame
	f.reset()
	f.Output([]byte{0, uint8(atomic.LoadUint32(&t.nextSequence))})
	frameData(f)

	msgLen := f.pos + MessageTrailerSize
	if f.overflow || msgLen > MessageLengthMax {
		return ErrMessageTooLong
	}
	if out, ok := t.output.(outputSpace); ok && out.Free() < msgLen {
		return ErrOutputFull
	}
	f.buf[MessagePositionLen] = uint8(msgLen)

	crc := CRC16(f.buf[:f.pos])
	t.output.Output(f.buf[:f.pos])
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	return nil
}

// SendCommand sends a command with arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)

	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback to be called when host reset is detected
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that pushes pending output to the wire
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

func (t *Transport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	var v uint32
	if val {
		v = 1
	}
	atomic.StoreUint32(&t.isSynchronized, v)
}
