// Package progress carries read and merge progress from the core to whatever
// is displaying it. The core only writes progress; it never reads it back.
package progress

import (
	"math"
	"sync/atomic"
)

// Sink receives progress values. Implementations must be safe for concurrent use
// when shared between readers.
type Sink interface {
	Report(value float64)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(value float64)

// Report calls f(value).
func (f SinkFunc) Report(value float64) { f(value) }

// Discard is a Sink that ignores every value.
type Discard struct{}

// Report does nothing.
func (Discard) Report(float64) {}

// Scale is a shared progress scale in [0, Max]. Several concurrent readers may
// report onto it with disjoint weights; the scale keeps the high-water mark so
// the displayed value never moves backwards.
type Scale struct {
	max  float64
	bits atomic.Uint64
}

// NewScale creates a scale with the given upper bound.
func NewScale(max float64) *Scale {
	return &Scale{max: max}
}

// Report raises the scale to value if it is higher than the current value.
func (s *Scale) Report(value float64) {
	if math.IsNaN(value) {
		return
	}
	value = math.Min(math.Max(value, 0), s.max)
	for {
		old := s.bits.Load()
		if value <= math.Float64frombits(old) {
			return
		}
		if s.bits.CompareAndSwap(old, math.Float64bits(value)) {
			return
		}
	}
}

// Value returns the current value.
func (s *Scale) Value() float64 { return math.Float64frombits(s.bits.Load()) }

// Fraction returns Value()/Max in [0, 1].
func (s *Scale) Fraction() float64 {
	if s.max <= 0 {
		return 0
	}
	return s.Value() / s.max
}

// Max returns the upper bound of the scale.
func (s *Scale) Max() float64 { return s.max }

// Monotonic wraps a sink so that, within one operation, values are clamped to
// [0, target] and never decrease.
type Monotonic struct {
	sink   Sink
	target float64
	last   float64
}

// NewMonotonic creates a Monotonic sink. A nil sink is treated as Discard.
func NewMonotonic(sink Sink, target float64) *Monotonic {
	if sink == nil {
		sink = Discard{}
	}
	return &Monotonic{sink: sink, target: target, last: -1}
}

// Report forwards value if it does not move progress backwards.
func (m *Monotonic) Report(value float64) {
	value = math.Min(math.Max(value, 0), m.target)
	if value < m.last {
		return
	}
	m.last = value
	m.sink.Report(value)
}

// Complete reports the target value.
func (m *Monotonic) Complete() { m.Report(m.target) }

// Span maps a fraction of work in [0, 1] onto [from, to] of a sink.
func Span(sink Sink, from, to float64) func(done, total int) {
	return func(done, total int) {
		if sink == nil || total <= 0 {
			return
		}
		sink.Report(from + (to-from)*float64(done)/float64(total))
	}
}
