package protocol

// InputBuffer is a source of received bytes that the transport consumes
// from the front.
type InputBuffer interface {
	// Data returns the bytes not yet consumed
	Data() []byte

	// Available returns len(Data())
	Available() int

	// Pop discards n bytes from the front
	Pop(n int)
}

// OutputBuffer collects outgoing frames. Frames are built in place, so the
// length byte can be patched once the payload size is known.
type OutputBuffer interface {
	// Output appends data
	Output(data []byte)

	// CurPosition returns the current write offset
	CurPosition() int

	// Update overwrites the byte at pos
	Update(pos int, val byte)

	// DataSince returns everything written from pos on
	DataSince(pos int) []byte
}

// SliceInputBuffer implements InputBuffer over a byte slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer creates a new SliceInputBuffer
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput implements OutputBuffer on a fixed array. Writes past the
// end are dropped.
type ScratchOutput struct {
	buf [ScratchMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

// Free returns how many more bytes fit
func (s *ScratchOutput) Free() int {
	return ScratchMax - s.pos
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// frameBuilder holds one block while its payload is encoded. Output past
// MessageLengthMax is dropped and flagged.
type frameBuilder struct {
	buf      [MessageLengthMax]byte
	pos      int
	overflow bool
}

func (f *frameBuilder) Output(data []byte) {
	n := copy(f.buf[f.pos:], data)
	f.pos += n
	if n < len(data) {
		f.overflow = true
	}
}

func (f *frameBuilder) CurPosition() int {
	return f.pos
}

func (f *frameBuilder) Update(pos int, val byte) {
	if pos >= 0 && pos < f.pos {
		f.buf[pos] = val
	}
}

func (f *frameBuilder) DataSince(pos int) []byte {
	if pos < 0 || pos > f.pos {
		return nil
	}
	return f.buf[pos:f.pos]
}

func (f *frameBuilder) reset() {
	f.pos = 0
	f.overflow = false
}

// FifoBuffer is a byte ring used between the serial reader and the
// transport. One slot stays empty to tell full from empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity-1 bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count written
func (f *FifoBuffer) Write(data []byte) int {
	n := f.Free()
	if len(data) < n {
		n = len(data)
	}
	for i := 0; i < n; i++ {
		f.buf[f.write] = data[i]
		f.write = (f.write + 1) % len(f.buf)
	}
	return n
}

// Read moves up to len(data) bytes out of the buffer
func (f *FifoBuffer) Read(data []byte) int {
	n := f.Available()
	if len(data) < n {
		n = len(data)
	}
	for i := 0; i < n; i++ {
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % len(f.buf)
	}
	return n
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return len(f.buf) - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.Available() - 1
}

// Data returns the readable bytes as one slice. When the contents wrap
// they are copied so frames can be parsed contiguously.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	out := make([]byte, 0, f.Available())
	out = append(out, f.buf[f.read:]...)
	return append(out, f.buf[:f.write]...)
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if avail := f.Available(); n > avail {
		n = avail
	}
	f.read = (f.read + n) % len(f.buf)
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
