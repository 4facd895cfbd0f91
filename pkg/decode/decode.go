// Package decode implements Viterbi decoding over a lattice: the same
// psi setup as pkg/train, a max-plus forward pass that records each
// arc's best predecessor, and backtracking to the single best path
// (spec.md 4.8).
package decode

import (
	"github.com/shuokabe/wfsttrain/pkg/model"
	"github.com/shuokabe/wfsttrain/pkg/pattern"
	"github.com/shuokabe/wfsttrain/pkg/train"
	"github.com/shuokabe/wfsttrain/pkg/wfst"
)

// Decoder shares a model and feature generator with training.
type Decoder struct {
	Model *model.Model
	Gen   *pattern.Generator
}

// Step is one decoded arc, exposed as label text rather than raw
// hashes for a human- or downstream-tool-readable path.
type Step struct {
	InLabel  string
	OutLabel string
}

// Decode runs the Viterbi algorithm on lat and returns the best path
// in forward order together with its total score.
func (d *Decoder) Decode(lat *wfst.Lattice) ([]Step, float64, error) {
	if err := train.PreparePsi(d.Gen, d.Model, lat, false); err != nil {
		return nil, 0, err
	}
	forwardMax(lat)

	bestArc, bestScore, ok := bestFinalArc(lat)
	if !ok {
		return nil, 0, &wfst.InvalidError{Msg: "no arc reaches the final state"}
	}

	return backtrack(lat, bestArc), bestScore, nil
}

// forwardMax fills every arc's Alpha with the best (max-plus) score of
// any path reaching it, and EBack with the position, within the arc's
// source state's in-arc list, of the predecessor achieving that
// score (spec.md 4.8).
func forwardMax(lat *wfst.Lattice) {
	for _, ai := range lat.ForwardOrder {
		e := &lat.Arcs[ai]
		v := &lat.States[e.Src]
		if len(v.In) == 0 {
			e.Alpha = e.Psi
			e.EBack = -1
			continue
		}
		o := outPosition(v, ai)
		best := wfst.NegInf
		bestI := -1
		for i, inAi := range v.In {
			inArc := &lat.Arcs[inAi]
			score := inArc.Alpha + v.PsiBig[v.PsiIndex(i, o)] + e.Psi
			if score > best {
				best = score
				bestI = i
			}
		}
		e.Alpha = best
		e.EBack = bestI
	}
}

func outPosition(v *wfst.State, ai int) int {
	for o, outAi := range v.Out {
		if outAi == ai {
			return o
		}
	}
	return -1
}

// bestFinalArc returns the arc ending at the final state with the
// highest Alpha.
func bestFinalArc(lat *wfst.Lattice) (int, float64, bool) {
	best := -1
	bestScore := wfst.NegInf
	for ai := range lat.Arcs {
		if lat.Arcs[ai].Dst != lat.Final {
			continue
		}
		if lat.Arcs[ai].Alpha > bestScore {
			best = ai
			bestScore = lat.Arcs[ai].Alpha
		}
	}
	return best, bestScore, best >= 0
}

// backtrack walks EBack from the best final arc back to the initial
// state and reverses the result into forward order.
func backtrack(lat *wfst.Lattice, lastArc int) []Step {
	var reversed []int
	ai := lastArc
	for {
		reversed = append(reversed, ai)
		e := &lat.Arcs[ai]
		v := &lat.States[e.Src]
		if len(v.In) == 0 {
			break
		}
		ai = v.In[e.EBack]
	}

	steps := make([]Step, len(reversed))
	for i, ai := range reversed {
		e := &lat.Arcs[ai]
		steps[len(reversed)-1-i] = Step{InLabel: e.ILabel.Text, OutLabel: e.OLabel.Text}
	}
	return steps
}
