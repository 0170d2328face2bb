// Package queue provides an unbounded lock-free multi-producer,
// single-consumer FIFO queue.
//
// Push is wait-free and safe from any number of goroutines. Pop must only be
// called from one goroutine at a time. Values pushed by the same goroutine
// are popped in the order they were pushed.
package queue

import "sync/atomic"

type node[T any] struct {
	next  atomic.Pointer[node[T]]
	value T
}

// Queue is an intrusive-stub MPSC queue.
// The zero value is not usable; create queues with New.
type Queue[T any] struct {
	// head is the most recently pushed node (producer side).
	head atomic.Pointer[node[T]]

	// tail is the consumer's stub; tail.next is the oldest value.
	tail *node[T]

	length atomic.Int64
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	stub := &node[T]{}
	q := &Queue[T]{tail: stub}
	q.head.Store(stub)
	return q
}

// Push appends v to the queue.
func (q *Queue[T]) Push(v T) {
	n := &node[T]{value: v}
	q.length.Add(1)
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// Pop removes and returns the oldest value.
// It returns false when the queue is empty or a concurrent Push has not yet
// linked its node; callers retry after the producer's wake-up signal.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T

	next := q.tail.next.Load()
	if next == nil {
		return zero, false
	}

	q.tail = next
	v := next.value
	next.value = zero
	q.length.Add(-1)
	return v, true
}

// Len returns the number of values pushed but not yet popped.
// The count includes values whose Push is still in flight.
func (q *Queue[T]) Len() int {
	return int(q.length.Load())
}
