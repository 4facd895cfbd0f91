// Package train implements the forward-backward gradient engine: per
// lattice, it computes arc and bigram log-potentials (psi), runs the
// forward and backward log-space passes over the lattice's
// topological orders, and accumulates expected feature counts as the
// gradient of the negative log-likelihood (spec.md 4.6).
package train

import (
	"sync"
	"sync/atomic"

	"github.com/shuokabe/wfsttrain/pkg/model"
	"github.com/shuokabe/wfsttrain/pkg/pattern"
	"github.com/shuokabe/wfsttrain/pkg/wfst"
)

// Engine ties together a model, a feature generator, and the cache
// level governing how much of a lattice's transient state survives
// between iterations.
type Engine struct {
	Model *model.Model
	Gen   *pattern.Generator

	// CacheLevel 0..4 trades memory for speed across iterations
	// (spec.md 3, 4.6): below 4 a lattice's bigram psi buffers are
	// dropped after its pass, below 2 its topological orders too, and
	// below 1 its adjacency lists as well. Feature lists are rebuilt
	// on every pass at every level.
	CacheLevel int
}

// lineWork holds one lattice's materialized feature lists and the
// position of each arc within its endpoints' adjacency lists, so the
// forward/backward passes can index state.PsiBig without a linear
// scan per arc.
type lineWork struct {
	arcFeatures   [][]*model.Feature   // by arc index
	stateFeatures [][][]*model.Feature // by state index, flat per PsiIndex
	outPos        []int                // position of arc in its source's Out list
	inPos         []int                // position of arc in its target's In list
}

// GradientPass runs one forward-backward sweep over the dataset,
// partitioning lattices across nthreads workers by atomic fetch-add
// (spec.md 5), and returns the dataset's total log-likelihood
// contribution (the objective value, signed by each lattice's
// multiplier). Dump mode forces single-threaded execution because
// feature-creation order must be stable (spec.md 4.4, 5).
func (e *Engine) GradientPass(ds *wfst.Dataset, nthreads int) (float64, error) {
	if e.Model.Dumping() {
		nthreads = 1
	}
	if nthreads < 1 {
		nthreads = 1
	}

	var next atomic.Int64
	var total atomicFloat64
	var firstErr error
	var errMu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < nthreads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := next.Add(1) - 1
				if i >= int64(len(ds.Lattices)) {
					return
				}
				ll, err := e.processLattice(ds.Lattices[i])
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					return
				}
				total.Add(ll)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return total.Load(), nil
}

// processLattice runs the full per-lattice pipeline of spec.md 4.6 and
// applies the cache-level resource policy to it afterward.
func (e *Engine) processLattice(lat *wfst.Lattice) (float64, error) {
	if err := ensureTopology(lat); err != nil {
		return 0, err
	}

	countFrequency := e.countsFrequency(lat)
	work := buildWork(e.Gen, e.Model, lat, countFrequency)
	computePsi(lat, work)
	forwardPass(lat, work)
	backwardPass(lat, work)
	z := partitionValue(lat)
	ll := accumulateExpectations(lat, work, z)

	if e.CacheLevel < 4 {
		for si := range lat.States {
			lat.States[si].DropPsiBig()
		}
	}
	if e.CacheLevel < 2 {
		lat.DropTopoOrders()
	}
	if e.CacheLevel < 1 {
		lat.DropAdjacency()
	}
	return ll, nil
}

// countsFrequency reports whether lattices of lat's side should
// increment feature frq counters: the hypothesis side by default,
// the reference side under --ref-freq (spec.md 4.6).
func (e *Engine) countsFrequency(lat *wfst.Lattice) bool {
	if e.Model.RefFreq {
		return lat.Multiplier == wfst.MultiplierReference
	}
	return lat.Multiplier == wfst.MultiplierHypothesis
}

// EnsureTopology rebuilds adjacency and/or topological orders that a
// previous pass dropped under a low cache level, exported so pkg/decode
// can prepare a lattice without going through a full gradient pass.
func EnsureTopology(lat *wfst.Lattice) error {
	return ensureTopology(lat)
}

func ensureTopology(lat *wfst.Lattice) error {
	if len(lat.States) > 0 && lat.States[0].In == nil && lat.States[0].Out == nil {
		if err := wfst.BuildAdjacency(lat); err != nil {
			return err
		}
		return wfst.TopoSort(lat)
	}
	if lat.ForwardOrder == nil {
		return wfst.TopoSort(lat)
	}
	return nil
}

func buildWork(gen *pattern.Generator, m *model.Model, lat *wfst.Lattice, countFrequency bool) *lineWork {
	w := &lineWork{
		arcFeatures:   gen.ArcUnigramFeatures(m, lat, countFrequency),
		stateFeatures: make([][][]*model.Feature, len(lat.States)),
		outPos:        make([]int, len(lat.Arcs)),
		inPos:         make([]int, len(lat.Arcs)),
	}
	for si := range lat.States {
		s := &lat.States[si]
		w.stateFeatures[si] = gen.StateBigramFeatures(m, lat, s, countFrequency)
		for o, ai := range s.Out {
			w.outPos[ai] = o
		}
		for i, ai := range s.In {
			w.inPos[ai] = i
		}
	}
	return w
}

// PreparePsi runs topology preparation, feature materialization, and
// psi computation for lat without running a forward/backward pass —
// the shared setup step pkg/decode needs for Viterbi decoding
// (spec.md 4.8: "identical psi computation as the gradient engine").
func PreparePsi(gen *pattern.Generator, m *model.Model, lat *wfst.Lattice, countFrequency bool) error {
	if err := ensureTopology(lat); err != nil {
		return err
	}
	computePsi(lat, buildWork(gen, m, lat, countFrequency))
	return nil
}

// computePsi fills every arc's Psi (unigram feature weights plus the
// arc's bias Wgh[0]) and every state's PsiBig (bigram feature
// weights). Wgh[1:] is the dense-feature coefficient slot; it stays
// dimensioned per spec.md 9's open question but unweighted here, same
// as the reference implementation with MAX_REAL effectively 0.
func computePsi(lat *wfst.Lattice, w *lineWork) {
	for ai := range lat.Arcs {
		e := &lat.Arcs[ai]
		sum := e.Wgh[0]
		for _, f := range w.arcFeatures[ai] {
			sum += f.X
		}
		e.Psi = sum
	}
	for si := range lat.States {
		s := &lat.States[si]
		s.EnsurePsiBig()
		flat := w.stateFeatures[si]
		for idx, feats := range flat {
			var sum float64
			for _, f := range feats {
				sum += f.X
			}
			s.PsiBig[idx] = sum
		}
	}
}

// forwardPass fills every arc's Alpha, processing arcs in forward
// topological order (spec.md 4.6b).
func forwardPass(lat *wfst.Lattice, w *lineWork) {
	for _, ai := range lat.ForwardOrder {
		e := &lat.Arcs[ai]
		v := &lat.States[e.Src]
		if len(v.In) == 0 {
			e.Alpha = e.Psi
			continue
		}
		o := w.outPos[ai]
		acc := wfst.NegInf
		for i, inAi := range v.In {
			inArc := &lat.Arcs[inAi]
			acc = logsumexp(acc, inArc.Alpha+v.PsiBig[v.PsiIndex(i, o)]+e.Psi)
		}
		e.Alpha = acc
	}
}

// backwardPass fills every arc's Beta, processing arcs in backward
// topological order (spec.md 4.6c).
func backwardPass(lat *wfst.Lattice, w *lineWork) {
	for _, ai := range lat.BackwardOrder {
		e := &lat.Arcs[ai]
		if e.Dst == lat.Final {
			e.Beta = 0
			continue
		}
		v := &lat.States[e.Dst]
		i := w.inPos[ai]
		acc := wfst.NegInf
		for o, outAi := range v.Out {
			outArc := &lat.Arcs[outAi]
			acc = logsumexp(acc, outArc.Psi+v.PsiBig[v.PsiIndex(i, o)]+outArc.Beta)
		}
		e.Beta = acc
	}
}

// partitionValue computes Z = logsumexp over arcs ending at the final
// state of their Alpha (spec.md 4.6d).
func partitionValue(lat *wfst.Lattice) float64 {
	z := wfst.NegInf
	for ai := range lat.Arcs {
		if lat.Arcs[ai].Dst == lat.Final {
			z = logsumexp(z, lat.Arcs[ai].Alpha)
		}
	}
	return z
}

// accumulateExpectations adds multiplier*occupation-probability to
// every firing feature's gradient, for both unigram (per-arc) and
// bigram (per-state-pair) features, and returns the lattice's
// log-likelihood contribution multiplier*Z (spec.md 4.6d).
func accumulateExpectations(lat *wfst.Lattice, w *lineWork, z float64) float64 {
	mult := float64(lat.Multiplier)

	for ai := range lat.Arcs {
		e := &lat.Arcs[ai]
		p := safeExp(e.Alpha + e.Beta - z)
		delta := mult * p
		for _, f := range w.arcFeatures[ai] {
			f.AddG(delta)
		}
	}

	for si := range lat.States {
		s := &lat.States[si]
		flat := w.stateFeatures[si]
		for i, inAi := range s.In {
			inArc := &lat.Arcs[inAi]
			for o, outAi := range s.Out {
				outArc := &lat.Arcs[outAi]
				idx := s.PsiIndex(i, o)
				p := safeExp(inArc.Alpha + s.PsiBig[idx] + outArc.Psi + outArc.Beta - z)
				delta := mult * p
				for _, f := range flat[idx] {
					f.AddG(delta)
				}
			}
		}
	}

	return mult * z
}
