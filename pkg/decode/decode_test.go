package decode

import (
	"strings"
	"testing"

	"github.com/shuokabe/wfsttrain/pkg/model"
	"github.com/shuokabe/wfsttrain/pkg/pattern"
	"github.com/shuokabe/wfsttrain/pkg/strpool"
	"github.com/shuokabe/wfsttrain/pkg/wfst"
)

func newDecoder(t *testing.T, patterns ...string) (*Decoder, *model.Model) {
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
	return &Decoder{Model: m, Gen: gen}, m
}

// S6 — decoding: with zero feature weights but per-arc bias weights,
// the decoder should take the b/d path (score 4.0) over a/c (3.0).
func TestScenarioS6DecodesHighestScoringPath(t *testing.T) {
	dec, m := newDecoder(t)
	ds, err := wfst.LoadDataset(strings.NewReader(
		"0 1 a a 2.0\n0 2 b b 1.0\n1 3 c c 1.0\n2 3 d d 3.0\n3\nEOS\n"),
		m.Source, m.Target, wfst.MultiplierTest)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	lat := ds.Lattices[0]

	path, score, err := dec.Decode(lat)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if score != 4.0 {
		t.Fatalf("score = %v, want 4.0", score)
	}
	want := []Step{{InLabel: "b", OutLabel: "b"}, {InLabel: "d", OutLabel: "d"}}
	if len(path) != 2 || path[0] != want[0] || path[1] != want[1] {
		t.Fatalf("path = %+v, want %+v", path, want)
	}
}

// S6 continued: a feature of weight +10 firing on source "a" should
// flip the best path back to a/c.
func TestScenarioS6FeatureFlipsBestPath(t *testing.T) {
	dec, m := newDecoder(t, "0:u:0s0")
	ds, err := wfst.LoadDataset(strings.NewReader(
		"0 1 a a 2.0\n0 2 b b 1.0\n1 3 c c 1.0\n2 3 d d 3.0\n3\nEOS\n"),
		m.Source, m.Target, wfst.MultiplierTest)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	lat := ds.Lattices[0]

	aLabel := m.Source.Intern("a")
	f := dec.Gen.ArcFeatures(m, &wfst.Arc{ILabel: aLabel, OLabel: aLabel}, false)[0]
	f.X = 10

	path, _, err := dec.Decode(lat)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if path[0].InLabel != "a" {
		t.Fatalf("path[0] = %+v, want arc through 'a'", path[0])
	}
}

// Property 9: the decoder's score equals the max-path sum of psi.
func TestDecoderOptimality(t *testing.T) {
	dec, m := newDecoder(t)
	ds, err := wfst.LoadDataset(strings.NewReader(
		"0 1 a a 1.0\n0 2 b b 5.0\n1 3 c c 1.0\n2 3 d d 1.0\n3\nEOS\n"),
		m.Source, m.Target, wfst.MultiplierTest)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	lat := ds.Lattices[0]

	_, score, err := dec.Decode(lat)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	best := wfst.NegInf
	paths := [][]int{{0, 2}, {1, 3}} // arc-index pairs: a-c path, b-d path
	for _, p := range paths {
		sum := lat.Arcs[p[0]].Psi + lat.Arcs[p[1]].Psi
		if sum > best {
			best = sum
		}
	}
	if score != best {
		t.Fatalf("decoder score = %v, want max-path sum %v", score, best)
	}
}
