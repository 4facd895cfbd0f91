package wfst

import "math"

// MaxRealWeights bounds the number of pre-assigned real-valued extra
// weights an arc carries: Wgh[0] is the arc's own bias, Wgh[1:] are
// coefficients of dense features identified by tag. The reference
// implementation this is modeled on ships with this dimension at 0
// (spec.md 9, Open Questions), leaving the dense-feature path inert;
// it stays a parameter here rather than a literal 0 so a caller that
// wants dense features can ask for them.
const MaxRealWeights = 4

// Multiplier is the per-lattice sign that turns a sum of per-lattice
// log-likelihood contributions into the training objective.
type Multiplier int8

const (
	// MultiplierReference marks a reference (gold) lattice.
	MultiplierReference Multiplier = -1
	// MultiplierTest marks a lattice used only for decoding (no
	// gradient contribution).
	MultiplierTest Multiplier = 0
	// MultiplierHypothesis marks a hypothesis (search-space) lattice.
	MultiplierHypothesis Multiplier = 1
)

// NegInf is the absorbing element used in place of -infinity in
// log-space forward/backward computations.
const NegInf = math.MaxFloat64 * -1

// Arc is one edge of a lattice: a source/target state pair, an input
// and output label, and up to MaxRealWeights pre-assigned real
// weights. Psi/Alpha/Beta/EBack are transient fields filled in by the
// gradient engine or decoder for the current weight vector.
type Arc struct {
	Src, Dst       int
	ILabel, OLabel *Label
	Wgh            [MaxRealWeights]float64

	Psi   float64
	Alpha float64
	Beta  float64
	EBack int // index, within Src's in-arc list, of the best predecessor (decoder only)
}

// State is one node of a lattice: index lists into the owning
// Lattice's Arcs slice for incoming and outgoing edges. PsiBig is the
// flat bigram log-potential matrix for (incoming-position,
// outgoing-position) pairs, row-major over len(In) x len(Out); index
// with PsiIndex.
type State struct {
	In, Out []int
	PsiBig  []float64
}

// PsiIndex returns the flat offset of the (i,o) bigram entry for s,
// giving O(1) access to s.PsiBig without nested allocation (DESIGN
// NOTES 9).
func (s *State) PsiIndex(i, o int) int {
	return i*len(s.Out) + o
}

// EnsurePsiBig allocates (or resizes) s.PsiBig to hold one entry per
// (incoming, outgoing) arc pair.
func (s *State) EnsurePsiBig() {
	n := len(s.In) * len(s.Out)
	if cap(s.PsiBig) < n {
		s.PsiBig = make([]float64, n)
	} else {
		s.PsiBig = s.PsiBig[:n]
	}
}

// DropPsiBig releases the bigram potential buffer (cache-level < 4).
func (s *State) DropPsiBig() { s.PsiBig = nil }

// Lattice is a directed acyclic WFST: a single initial state (index
// 0 by construction, spec.md 4.5), a single final state, no cycles.
type Lattice struct {
	Arcs       []Arc
	States     []State
	Final      int
	Multiplier Multiplier

	// ForwardOrder/BackwardOrder are arc indices in forward/backward
	// topological order, computed by TopoSort.
	ForwardOrder  []int
	BackwardOrder []int
}

// Dataset is an ordered sequence of lattices, e.g. all hypothesis or
// all reference lattices loaded from one file.
type Dataset struct {
	Lattices []*Lattice
}

// DropTopoOrders releases the topological order buffers (cache-level < 2).
func (f *Lattice) DropTopoOrders() {
	f.ForwardOrder = nil
	f.BackwardOrder = nil
}

// DropAdjacency releases the in/out adjacency lists on every state
// (cache-level < 1). Only safe once ForwardOrder/BackwardOrder are no
// longer needed either, since both are derived from adjacency.
func (f *Lattice) DropAdjacency() {
	for i := range f.States {
		f.States[i].In = nil
		f.States[i].Out = nil
	}
}
