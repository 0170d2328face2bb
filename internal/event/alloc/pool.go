// Package alloc provides the bounded allocation budget that backs event
// instances.
//
// A Pool does not hand out memory itself; the Go runtime does that. It
// accounts for every live event so that exhaustion is reported to the
// producer instead of growing the heap without bound, and so that leaks show
// up as a non-zero InUse count. All operations are lock-free and may be called
// from any goroutine.
package alloc

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned when a reservation would exceed the pool limits.
var ErrExhausted = errors.New("allocation pool exhausted")

// Pool tracks live allocations against a byte budget and an optional
// count limit. A zero limit means unbounded.
type Pool struct {
	maxBytes  int64
	maxEvents int64

	bytes  atomic.Int64
	inUse  atomic.Int64
	peak   atomic.Int64
	allocs atomic.Uint64
	frees  atomic.Uint64
	failed atomic.Uint64
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxBytes sets the byte budget.
func WithMaxBytes(n int64) Option {
	return func(p *Pool) {
		if n >= 0 {
			p.maxBytes = n
		}
	}
}

// WithMaxEvents sets the maximum number of live allocations.
func WithMaxEvents(n int64) Option {
	return func(p *Pool) {
		if n >= 0 {
			p.maxEvents = n
		}
	}
}

// New creates a pool with the given limits.
func New(opts ...Option) *Pool {
	p := &Pool{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reserve accounts for one allocation of size bytes.
// Returns ErrExhausted without side effects if either limit would be exceeded.
func (p *Pool) Reserve(size int64) error {
	if size < 0 {
		size = 0
	}

	for {
		count := p.inUse.Load()
		if p.maxEvents > 0 && count >= p.maxEvents {
			p.failed.Add(1)
			return ErrExhausted
		}
		if p.inUse.CompareAndSwap(count, count+1) {
			break
		}
	}

	for {
		used := p.bytes.Load()
		if p.maxBytes > 0 && used+size > p.maxBytes {
			p.inUse.Add(-1)
			p.failed.Add(1)
			return ErrExhausted
		}
		if p.bytes.CompareAndSwap(used, used+size) {
			p.recordPeak(used + size)
			break
		}
	}

	p.allocs.Add(1)
	return nil
}

// Release returns a previously reserved allocation of size bytes.
func (p *Pool) Release(size int64) {
	if size < 0 {
		size = 0
	}
	p.bytes.Add(-size)
	p.inUse.Add(-1)
	p.frees.Add(1)
}

func (p *Pool) recordPeak(used int64) {
	for {
		peak := p.peak.Load()
		if used <= peak || p.peak.CompareAndSwap(peak, used) {
			return
		}
	}
}

// Stats is a point-in-time snapshot of pool accounting.
type Stats struct {
	// MaxBytes is the configured byte budget (0 = unbounded).
	MaxBytes int64 `json:"max_bytes"`

	// MaxEvents is the configured live allocation limit (0 = unbounded).
	MaxEvents int64 `json:"max_events"`

	// BytesInUse is the number of bytes currently reserved.
	BytesInUse int64 `json:"bytes_in_use"`

	// PeakBytes is the high-water mark of BytesInUse.
	PeakBytes int64 `json:"peak_bytes"`

	// InUse is the number of live allocations.
	InUse int64 `json:"in_use"`

	// Allocs is the total number of successful reservations.
	Allocs uint64 `json:"allocs"`

	// Frees is the total number of releases.
	Frees uint64 `json:"frees"`

	// Failed is the number of rejected reservations.
	Failed uint64 `json:"failed"`
}

// Stats returns the current accounting snapshot.
func (p *Pool) Stats() Stats {
	return Stats{
		MaxBytes:   p.maxBytes,
		MaxEvents:  p.maxEvents,
		BytesInUse: p.bytes.Load(),
		PeakBytes:  p.peak.Load(),
		InUse:      p.inUse.Load(),
		Allocs:     p.allocs.Load(),
		Frees:      p.frees.Load(),
		Failed:     p.failed.Load(),
	}
}
