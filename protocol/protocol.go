// Package protocol implements the Klipper-style framed serial protocol used
// between the encoder firmware and the host.
//
// A message block is: length, sequence, VLQ-encoded commands, CRC16 (2 bytes)
// and a trailing sync byte.
package protocol

import "errors"

var (
	ErrMessageTooLong = errors.New("message too long")
	ErrOutputFull     = errors.New("output buffer full")
)

// Version is the protocol implementation version reported in the dictionary
const Version = "0.1.0"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F

	// ScratchMax bounds one main-loop batch of outgoing frames.
	ScratchMax = 512
)

// nextSeq advances a sequence byte, keeping the destination bits.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// frameOK validates the block at the start of data.
// It returns the block length, or 0 and false when the block is not valid.
// need is true when data holds only part of a plausible block.
func frameOK(data []byte) (msgLen int, ok bool, need bool) {
	if len(data) < MessageLengthMin {
		return 0, false, true
	}
	msgLen = int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return 0, false, false
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, false, false
	}
	if len(data) < msgLen {
		return 0, false, true
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return 0, false, false
	}
	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return 0, false, false
	}
	return msgLen, true, false
}

// appendTrailer appends CRC and sync to a block whose header is already
// filled in.
func appendTrailer(block []byte) []byte {
	crc := CRC16(block)
	return append(block, uint8(crc>>8), uint8(crc), MessageValueSync)
}
