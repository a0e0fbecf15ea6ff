package protocol

import (
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0,
		1,
		-1,
		127,
		-127,
		128,
		-128,
		255,
		-255,
		1000,
		-1000,
		65535,
		-65535,
		1000000,
		-1000000,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}

		if len(data) != 0 {
			t.Errorf("VLQ decode didn't consume all bytes for value %d: %d bytes remaining", expected, len(data))
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []uint32{
		0,
		1,
		127,
		128,
		255,
		1000,
		65535,
		1000000,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
	}
}

func TestVLQBytes(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01},
		{0x01, 0x02, 0x03},
		{0xFF, 0xFE, 0xFD},
		make([]byte, 50), // Moderate array (within 64-byte message limit)
	}

	for i, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQBytes(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("Test case %d: Failed to decode bytes: %v", i, err)
			continue
		}

		if len(decoded) != len(expected) {
			t.Errorf("Test case %d: Length mismatch: expected %d, got %d", i, len(expected), len(decoded))
			continue
		}

		for j := range expected {
			if decoded[j] != expected[j] {
				t.Errorf("Test case %d: Byte mismatch at index %d: expected %d, got %d", i, j, expected[j], decoded[j])
			}
		}
	}
}

func TestVLQString(t *testing.T) {
	testCases := []string{
		"",
		"hello",
		"Hello, World!",
		"Special chars: !@#$%^&*()",
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQString(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQString(&data)
		if err != nil {
			t.Errorf("Failed to decode string '%s': %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("String mismatch: expected '%s', got '%s'", expected, decoded)
		}
	}
}

func TestVLQInt64(t *testing.T) {
	testCases := []int64{
		0,
		1,
		-1,
		65536,
		-65536,
		1 << 31,
		-(1 << 31) - 1,
		1 << 40,
		-(1 << 40),
		9007199254740993,
		-9007199254740993,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt64(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQInt64(&data)
		if err != nil {
			t.Errorf("Failed to decode int64 %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("Int64 mismatch: expected %d, got %d", expected, decoded)
		}
		if len(data) != 0 {
			t.Errorf("Int64 decode left %d bytes for %d", len(data), expected)
		}
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	// Test decoding with insufficient data
	data := []byte{0x80} // Continuation byte but no following byte
	_, err := DecodeVLQInt(&data)
	if err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQEncodedLength(t *testing.T) {
	testCases := []struct {
		value int32
		size  int
	}{
		{0, 1},
		{-1, 1},
		{95, 1},
		{96, 2},
		{-32, 1},
		{-33, 2},
		{12287, 2},
		{12288, 3},
		{-4096, 2},
		{-4097, 3},
		{3<<19 - 1, 3},
		{3 << 19, 4},
		{3<<26 - 1, 4},
		{3 << 26, 5},
		{-1 << 31, 5},
	}

	for _, tc := range testCases {
		encoded := EncodeVLQ(tc.value)
		if len(encoded) != tc.size {
			t.Errorf("Value %d: expected %d bytes, got %d", tc.value, tc.size, len(encoded))
		}
		v, n, err := DecodeVLQ(encoded)
		if err != nil || v != tc.value || n != tc.size {
			t.Errorf("Value %d: decoded %d from %d bytes (%v)", tc.value, v, n, err)
		}
	}
}

func TestDecodeVLQSixthByte(t *testing.T) {
	// Five continuation bytes: a sixth byte can never be valid
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}
	v, n, err := DecodeVLQ(data)
	if err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
	if v != 0 || n != 0 {
		t.Errorf("Expected nothing consumed on error, got value %d n %d", v, n)
	}
	if len(data) != 6 {
		t.Errorf("DecodeVLQ modified caller slice length to %d", len(data))
	}
}
