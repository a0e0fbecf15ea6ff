package core

// Share is a single-slot value handed between tasks. The last write wins.
// There is no locking: all access must come from one cooperative loop, or
// the owner must guard it.
type Share[T any] struct {
	value T
}

// NewShare creates a share holding initial until the first Write.
func NewShare[T any](initial T) *Share[T] {
	return &Share[T]{value: initial}
}

// Write replaces the held value.
func (s *Share[T]) Write(v T) {
	s.value = v
}

// Read returns the held value.
func (s *Share[T]) Read() T {
	return s.value
}
