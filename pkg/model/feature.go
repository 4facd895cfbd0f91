package model

import (
	"math"
	"sync/atomic"
)

// Feature is one entry of the model's feature table: a log-linear
// weight x together with the RPROP optimizer state needed to update
// it (spec.md 3). Tag is implicit in the top 8 bits of the key the
// feature is stored under; it is also kept here for convenience.
type Feature struct {
	Tag uint8

	X         float64 // current weight; read-only during a gradient pass
	GPrev     float64
	Stp       float64
	LastDelta float64

	g   atomic.Uint64 // float64 bits; multi-writer during a gradient pass
	frq atomic.Int64
}

// AddG atomically adds delta to the feature's accumulated gradient.
// Go has no native atomic float add, so this is a compare-and-swap
// loop on the IEEE-754 bit pattern (DESIGN NOTES 9).
func (f *Feature) AddG(delta float64) {
	for {
		old := f.g.Load()
		oldF := math.Float64frombits(old)
		newF := oldF + delta
		if f.g.CompareAndSwap(old, math.Float64bits(newF)) {
			return
		}
	}
}

// G returns the current accumulated gradient.
func (f *Feature) G() float64 { return math.Float64frombits(f.g.Load()) }

// SetG overwrites the accumulated gradient. Used only by the
// single-threaded RPROP sweep between gradient passes.
func (f *Feature) SetG(v float64) { f.g.Store(math.Float64bits(v)) }

// IncFrq atomically increments the reference-occurrence frequency
// counter.
func (f *Feature) IncFrq() { f.frq.Add(1) }

// Frq returns the current frequency counter.
func (f *Feature) Frq() int64 { return f.frq.Load() }

// SetFrq overwrites the frequency counter (RPROP sweep bookkeeping).
func (f *Feature) SetFrq(v int64) { f.frq.Store(v) }
