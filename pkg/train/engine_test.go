package train

import (
	"math"
	"strings"
	"testing"

	"github.com/shuokabe/wfsttrain/pkg/model"
	"github.com/shuokabe/wfsttrain/pkg/pattern"
	"github.com/shuokabe/wfsttrain/pkg/strpool"
	"github.com/shuokabe/wfsttrain/pkg/wfst"
)

func newEngine(t *testing.T, patterns ...string) (*Engine, *model.Model) {
	t.Helper()
	m := model.New()
	var compiled []*pattern.Pattern
	for _, s := range patterns {
		p, err := pattern.Compile(s)
		if err != nil {
			t.Fatalf("Compile(%q): %v", s, err)
		}
		compiled = append(compiled, p)
	}
	gen := pattern.NewGenerator(compiled, strpool.New(false))
	return &Engine{Model: m, Gen: gen, CacheLevel: 4}, m
}

func loadDataset(t *testing.T, text string, mult wfst.Multiplier, m *model.Model) *wfst.Dataset {
	t.Helper()
	ds, err := wfst.LoadDataset(strings.NewReader(text), m.Source, m.Target, mult)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	return ds
}

// S1 — trivial single arc: a sole hypothesis path has occupation
// probability 1, so its feature's gradient equals +1.
func TestScenarioS1SingleArcHypothesis(t *testing.T) {
	e, m := newEngine(t, "0:u:0s0")
	ds := loadDataset(t, "0 1 a b\n1\nEOS\n", wfst.MultiplierHypothesis, m)

	if _, err := e.GradientPass(ds, 1); err != nil {
		t.Fatalf("GradientPass: %v", err)
	}

	f := featureFor(t, e, m, "a")
	if math.Abs(f.G()-1) > 1e-9 {
		t.Fatalf("g = %v, want 1", f.G())
	}
}

// S1 continued: adding the matching reference lattice (multiplier -1)
// on the very same arc cancels the gradient to zero.
func TestScenarioS1WithMatchingReference(t *testing.T) {
	e, m := newEngine(t, "0:u:0s0")
	hyp := loadDataset(t, "0 1 a b\n1\nEOS\n", wfst.MultiplierHypothesis, m)
	ref := loadDataset(t, "0 1 a b\n1\nEOS\n", wfst.MultiplierReference, m)
	full := &wfst.Dataset{Lattices: append(hyp.Lattices, ref.Lattices...)}

	ll, err := e.GradientPass(full, 2)
	if err != nil {
		t.Fatalf("GradientPass: %v", err)
	}
	if math.Abs(ll) > 1e-9 {
		t.Fatalf("ll = %v, want 0 (Z - Z)", ll)
	}

	f := featureFor(t, e, m, "a")
	if math.Abs(f.G()) > 1e-9 {
		t.Fatalf("g = %v, want 0", f.G())
	}
}

// S2 — disagreement: with all weights at zero, each of two parallel
// hypothesis arcs gets p=0.5; with a reference singling out one arc,
// the gradient separates their source-token features.
func TestScenarioS2Disagreement(t *testing.T) {
	e, m := newEngine(t, "0:u:0s0")
	hyp := loadDataset(t, "0 1 a x\n0 1 b y\n1\nEOS\n", wfst.MultiplierHypothesis, m)
	ref := loadDataset(t, "0 1 a x\n1\nEOS\n", wfst.MultiplierReference, m)
	full := &wfst.Dataset{Lattices: append(hyp.Lattices, ref.Lattices...)}

	if _, err := e.GradientPass(full, 1); err != nil {
		t.Fatalf("GradientPass: %v", err)
	}

	fa := featureFor(t, e, m, "a")
	fb := featureFor(t, e, m, "b")
	if fa.G() >= 0 {
		t.Fatalf("g(a) = %v, want negative (pushes weight up)", fa.G())
	}
	if fb.G() <= 0 {
		t.Fatalf("g(b) = %v, want positive (pushes weight down)", fb.G())
	}
}

// S3 — equality item: matching and mismatching source/target tokens
// must key two distinct features.
func TestScenarioS3EqualityItem(t *testing.T) {
	e, m := newEngine(t, "0:eq:0s0=0t0")
	dsTrue := loadDataset(t, "0 1 foo foo\n1\nEOS\n", wfst.MultiplierTest, m)
	dsFalse := loadDataset(t, "0 1 foo bar\n1\nEOS\n", wfst.MultiplierTest, m)

	if _, err := e.GradientPass(dsTrue, 1); err != nil {
		t.Fatalf("GradientPass: %v", err)
	}
	if _, err := e.GradientPass(dsFalse, 1); err != nil {
		t.Fatalf("GradientPass: %v", err)
	}

	if m.Features.Len() != 2 {
		t.Fatalf("expected 2 distinct features (true/false), got %d", m.Features.Len())
	}
}

// Property 5 — forward/backward consistency: the forward normalizer
// computed from arcs into the final state equals the backward
// normalizer computed from arcs out of the initial state, plus their
// own psi.
func TestForwardBackwardConsistency(t *testing.T) {
	e, m := newEngine(t, "0:u:0s0")
	ds := loadDataset(t, "0 1 a a\n0 2 b b\n1 3 c c\n2 3 d d\n3\nEOS\n", wfst.MultiplierTest, m)
	lat := ds.Lattices[0]

	if err := ensureTopology(lat); err != nil {
		t.Fatalf("ensureTopology: %v", err)
	}
	work := buildWork(e.Gen, e.Model, lat, false)
	computePsi(lat, work)
	forwardPass(lat, work)
	backwardPass(lat, work)

	zForward := partitionValue(lat)

	zBackward := wfst.NegInf
	for ai := range lat.Arcs {
		a := &lat.Arcs[ai]
		if a.Src == 0 {
			zBackward = logsumexp(zBackward, a.Beta+a.Psi)
		}
	}

	if math.Abs(zForward-zBackward) > 1e-9 {
		t.Fatalf("forward Z = %v, backward Z = %v", zForward, zBackward)
	}
}

// featureFor looks up the unigram feature that a source token
// activates under e's (already-trained-against) pattern set, relying
// on AddFeature's idempotence to return the very instance the
// gradient pass accumulated into.
func featureFor(t *testing.T, e *Engine, m *model.Model, sourceToken string) *model.Feature {
	t.Helper()
	lbl := m.Source.Intern(sourceToken)
	arc := &wfst.Arc{ILabel: lbl, OLabel: lbl}
	feats := e.Gen.ArcFeatures(m, arc, false)
	if len(feats) != 1 {
		t.Fatalf("expected exactly one feature for token %q, got %d", sourceToken, len(feats))
	}
	return feats[0]
}
