// Package rprop implements the resilient back-propagation weight
// updater: a single-threaded sweep over every feature in a model,
// applying sign-based step adaptation, per-tag L1/L2/frequency
// regularization projected into the current orthant, and pruning of
// inactive or low-frequency features (spec.md 4.7).
package rprop

import "github.com/shuokabe/wfsttrain/pkg/model"

// Defaults mirror the reference implementation's step-size bounds
// (spec.md 4.7).
const (
	DefaultStpInc = 1.2
	DefaultStpDec = 0.5
	DefaultStpMin = 1e-8
	DefaultStpMax = 50.0
)

const epsilon = 1e-10

// Regularizer holds per-tag L1 (Rho1), L2 (Rho2), and
// frequency-weighted L1 (Rho3) coefficients, falling back to tag 0
// when a higher tag has no entry of its own (spec.md 4.7).
type Regularizer struct {
	Rho1, Rho2, Rho3 [model.NumTags]float64
}

func (r *Regularizer) rho1(tag uint8) float64 { return withTag0Fallback(&r.Rho1, tag) }
func (r *Regularizer) rho2(tag uint8) float64 { return withTag0Fallback(&r.Rho2, tag) }
func (r *Regularizer) rho3(tag uint8) float64 { return withTag0Fallback(&r.Rho3, tag) }

// withTag0Fallback returns rho[tag], or rho[0] when tag's own slot is
// unset (0).
func withTag0Fallback(rho *[model.NumTags]float64, tag uint8) float64 {
	if v := rho[tag]; v != 0 {
		return v
	}
	return rho[0]
}

// Updater runs one RPROP sweep per call to Step.
type Updater struct {
	Reg *Regularizer

	StpInc, StpDec, StpMin, StpMax float64
}

// NewUpdater creates an Updater with the reference step-size defaults
// and a zero (no-op) regularizer.
func NewUpdater() *Updater {
	return &Updater{
		Reg:    &Regularizer{},
		StpInc: DefaultStpInc,
		StpDec: DefaultStpDec,
		StpMin: DefaultStpMin,
		StpMax: DefaultStpMax,
	}
}

// Step sweeps every feature in m exactly once, applying spec.md 4.7's
// seven numbered steps, and returns the total regularization penalty
// ρ2·x²/2 + ρ1·|x| + ρ3·frq·|x| summed over every feature the sweep
// updates (features pruned or still before their tag's start window
// add nothing) (spec.md 4.7 step 3), so a caller can add it to the gradient pass's
// log-likelihood to report the actual regularized training objective.
// Precondition: called between gradient passes, with no concurrent
// readers or writers of the feature table (spec.md 5).
func (u *Updater) Step(m *model.Model) float64 {
	iteration := m.Iteration.Load()
	var dead []uint64
	var penalty float64

	m.Features.Iter(func(key uint64, f *model.Feature) bool {
		tag := f.Tag

		// 1. Pruning checks, in order.
		if f.X == 0 && iteration >= m.Remove[tag] {
			dead = append(dead, key)
			return true
		}
		if f.Frq() < m.MinFreq {
			dead = append(dead, key)
			return true
		}
		if iteration < m.Start[tag] {
			return true
		}

		// 2. Step-size initialization.
		if f.Stp == 0 {
			f.Stp = 0.1
		}

		// 3. Regularization.
		rho1 := u.Reg.rho1(tag)
		rho2 := u.Reg.rho2(tag)
		rho3 := u.Reg.rho3(tag)
		frq := float64(f.Frq())

		g := f.G()
		g += rho2 * f.X
		penalty += rho2*f.X*f.X/2 + (rho1+rho3*frq)*absF(f.X)

		// 4. Orthant-projected gradient.
		a := rho1 + rho3*frq
		pg := projectedGradient(f.X, g, a)

		// 5. Step adaptation.
		s := f.GPrev * pg
		switch {
		case s < -epsilon:
			f.Stp = max(f.Stp*u.StpDec, u.StpMin)
		case s > epsilon:
			f.Stp = min(f.Stp*u.StpInc, u.StpMax)
		}

		// 6. Weight update.
		if s < 0 {
			f.X -= f.LastDelta
			g = 0
		} else {
			delta := 0.0
			if absF(pg) > epsilon {
				delta = -sign(pg) * f.Stp
			}
			// Orthant guard: an L1-regularized weight may only cross
			// zero by landing on it exactly, never overshoot past it
			// (spec.md 4.7 step 6, 8 property 7c).
			if rho1 != 0 && f.X != 0 && sign(f.X) != sign(f.X+delta) {
				delta = -f.X
			}
			f.X += delta
			f.LastDelta = delta
		}

		// 7. Bookkeeping.
		f.SetFrq(0)
		f.GPrev = g
		f.SetG(0)

		return true
	})

	for _, key := range dead {
		m.Features.Remove(key)
	}

	return penalty
}

// projectedGradient implements spec.md 4.7 step 4: the gradient is
// replaced by its orthant-projected counterpart so an update never
// crosses zero except by landing on it exactly.
func projectedGradient(x, g, a float64) float64 {
	if a == 0 {
		return g
	}
	switch {
	case x < -epsilon:
		return g - a
	case x > epsilon:
		return g + a
	case g < -a:
		return g + a
	case g > a:
		return g - a
	default:
		return 0
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
