package train

import (
	"math"
	"sync/atomic"
)

// atomicFloat64 accumulates a running total across worker goroutines.
// Go has no native atomic float add; this is the same
// compare-and-swap-on-bits pattern as model.Feature.AddG (DESIGN NOTES
// 9), used here for the dataset-wide log-likelihood total rather than
// a per-feature gradient.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		newV := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, newV) {
			return
		}
	}
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}
