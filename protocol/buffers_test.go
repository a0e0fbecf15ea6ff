package protocol

import "testing"

func TestSliceInputBuffer(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	buf := NewSliceInputBuffer(data)

	if buf.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", buf.Available())
	}

	bufData := buf.Data()
	if len(bufData) != 5 {
		t.Errorf("Expected 5 bytes in data, got %d", len(bufData))
	}

	buf.Pop(2)
	if buf.Available() != 3 {
		t.Errorf("After popping 2, expected 3 bytes available, got %d", buf.Available())
	}

	bufData = buf.Data()
	if len(bufData) != 3 || bufData[0] != 3 {
		t.Errorf("After popping 2, expected first byte to be 3, got %d", bufData[0])
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	data1 := []byte{1, 2, 3}
	scratch.Output(data1)

	if scratch.CurPosition() != 3 {
		t.Errorf("Expected position 3, got %d", scratch.CurPosition())
	}

	result := scratch.Result()
	if len(result) != 3 {
		t.Errorf("Expected 3 bytes in result, got %d", len(result))
	}

	data2 := []byte{4, 5}
	scratch.Output(data2)

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	// Test Update
	scratch.Update(0, 99)
	result = scratch.Result()
	if result[0] != 99 {
		t.Errorf("Expected first byte to be 99, got %d", result[0])
	}

	// Test DataSince
	since := scratch.DataSince(2)
	if len(since) != 3 || since[0] != 3 {
		t.Errorf("DataSince(2) failed: expected [3 4 5], got %v", since)
	}

	// Test Reset
	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	if fifo.Available() != 0 {
		t.Errorf("Empty FIFO should have 0 available, got %d", fifo.Available())
	}

	// Write some data
	data := []byte{1, 2, 3, 4, 5}
	written := fifo.Write(data)

	if written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}

	if fifo.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", fifo.Available())
	}

	// Read some data
	readBuf := make([]byte, 3)
	read := fifo.Read(readBuf)

	if read != 3 {
		t.Errorf("Expected to read 3 bytes, read %d", read)
	}

	if readBuf[0] != 1 || readBuf[1] != 2 || readBuf[2] != 3 {
		t.Errorf("Read data mismatch: got %v", readBuf)
	}

	if fifo.Available() != 2 {
		t.Errorf("After reading 3, expected 2 available, got %d", fifo.Available())
	}

	// Test Pop
	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("After popping 1, expected 1 available, got %d", fifo.Available())
	}

	// Test wrap-around
	fifo.Reset()
	bigData := make([]byte, 12)
	for i := range bigData {
		bigData[i] = byte(i)
	}
	written = fifo.Write(bigData)
	if written != 9 { // Buffer size is 10, can only store 9 (one slot reserved)
		t.Errorf("Expected to write 9 bytes to size-10 FIFO, wrote %d", written)
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	// Fill buffer
	fifo.Write([]byte{1, 2, 3, 4})

	// Read some
	readBuf := make([]byte, 2)
	fifo.Read(readBuf)

	// Write more (will wrap around)
	written := fifo.Write([]byte{5, 6})
	if written != 2 {
		t.Errorf("Expected to write 2 bytes, wrote %d", written)
	}

	// Verify order
	allData := make([]byte, 4)
	read := fifo.Read(allData)
	if read != 4 {
		t.Errorf("Expected to read 4 bytes, read %d", read)
	}
	if allData[0] != 3 || allData[1] != 4 || allData[2] != 5 || allData[3] != 6 {
		t.Errorf("Wrap-around data mismatch: got %v", allData)
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	big := make([]byte, ScratchMax+10)
	scratch.Output(big)

	if scratch.CurPosition() != ScratchMax {
		t.Errorf("Expected position capped at %d, got %d", ScratchMax, scratch.CurPosition())
	}
	if scratch.DataSince(ScratchMax+1) != nil {
		t.Error("Expected nil for DataSince past the end")
	}
}

func TestFifoBufferDataAcrossWrap(t *testing.T) {
	fifo := NewFifoBuffer(6)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(3)
	fifo.Write([]byte{5, 6, 7})

	data := fifo.Data()
	expected := []byte{4, 5, 6, 7}
	if len(data) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, data)
	}
	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, data)
			break
		}
	}

	fifo.Pop(10)
	if !fifo.IsEmpty() {
		t.Errorf("Expected empty after over-pop, %d left", fifo.Available())
	}
}

func TestFifoBufferWriteReadClamp(t *testing.T) {
	fifo := NewFifoBuffer(5) // Holds 4

	if n := fifo.Write([]byte{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Errorf("Expected 4 bytes written, got %d", n)
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected no free space, got %d", fifo.Free())
	}
	if n := fifo.Write([]byte{9}); n != 0 {
		t.Errorf("Expected write to full buffer to return 0, got %d", n)
	}

	small := make([]byte, 2)
	if n := fifo.Read(small); n != 2 || small[0] != 1 || small[1] != 2 {
		t.Errorf("Expected [1 2], got %d %v", n, small)
	}
	large := make([]byte, 10)
	if n := fifo.Read(large); n != 2 || large[0] != 3 || large[1] != 4 {
		t.Errorf("Expected [3 4], got %d %v", n, large[:n])
	}
	if n := fifo.Read(large); n != 0 {
		t.Errorf("Expected read from empty buffer to return 0, got %d", n)
	}
}

func TestScratchOutputBounds(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})

	if scratch.DataSince(-1) != nil {
		t.Error("Expected nil for DataSince with negative position")
	}
	if got := scratch.DataSince(3); len(got) != 0 || got == nil {
		t.Errorf("Expected empty non-nil slice at the end, got %v", got)
	}

	scratch.Update(-1, 9)
	scratch.Update(3, 9)
	if r := scratch.Result(); r[0] != 1 || r[2] != 3 || len(r) != 3 {
		t.Errorf("Out of range Update changed output: %v", r)
	}
	if scratch.Free() != ScratchMax-3 {
		t.Errorf("Expected %d free, got %d", ScratchMax-3, scratch.Free())
	}
}

func TestFrameBuilderOverflow(t *testing.T) {
	var f frameBuilder
	f.Output(make([]byte, MessageLengthMax-1))
	if f.overflow {
		t.Error("Unexpected overflow below MessageLengthMax")
	}
	f.Output([]byte{1, 2})
	if !f.overflow || f.CurPosition() != MessageLengthMax {
		t.Errorf("Expected overflow at %d, got %v at %d", MessageLengthMax, f.overflow, f.CurPosition())
	}

	f.reset()
	if f.overflow || f.CurPosition() != 0 {
		t.Error("Expected reset to clear the builder")
	}
}
