package core

import "errors"

var ErrQueueEmpty = errors.New("queue: empty")

const queueMinCapacity = 8

// Queue is an unbounded FIFO between tasks, backed by a ring buffer that
// doubles when full. Like Share it does no locking.
// Check Len before Get; Get on an empty queue returns ErrQueueEmpty.
type Queue[T any] struct {
	buf   []T
	head  int // Index of the front element
	count int
}

// NewQueue creates an empty queue. capacityHint preallocates slots.
func NewQueue[T any](capacityHint int) *Queue[T] {
	if capacityHint < queueMinCapacity {
		capacityHint = queueMinCapacity
	}
	return &Queue[T]{buf: make([]T, capacityHint)}
}

// Put appends v to the back of the queue.
func (q *Queue[T]) Put(v T) {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
}

// Get removes and returns the front element.
func (q *Queue[T]) Get() (T, error) {
	var zero T
	if q.count == 0 {
		return zero, ErrQueueEmpty
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero // Release references held by the slot
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, nil
}

// Peek returns the front element without removing it.
func (q *Queue[T]) Peek() (T, error) {
	if q.count == 0 {
		var zero T
		return zero, ErrQueueEmpty
	}
	return q.buf[q.head], nil
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return q.count
}

// Reset drops all queued elements.
func (q *Queue[T]) Reset() {
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head = 0
	q.count = 0
}

// grow doubles the buffer, unwrapping the contents to start at index 0.
func (q *Queue[T]) grow() {
	size := len(q.buf) * 2
	if size == 0 {
		size = queueMinCapacity
	}
	buf := make([]T, size)
	n := copy(buf, q.buf[q.head:])
	copy(buf[n:], q.buf[:q.head])
	q.buf = buf
	q.head = 0
}
