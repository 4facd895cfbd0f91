package wfst

import (
	"strings"
	"testing"
)

func loadOne(t *testing.T, text string, mult Multiplier) *Lattice {
	t.Helper()
	ds, err := LoadDataset(strings.NewReader(text), NewVocabulary(), NewVocabulary(), mult)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Lattices) != 1 {
		t.Fatalf("got %d lattices, want 1", len(ds.Lattices))
	}
	return ds.Lattices[0]
}

func TestLoadTrivialSingleArc(t *testing.T) {
	lat := loadOne(t, "0 1 a b\n1\nEOS\n", MultiplierHypothesis)
	if len(lat.Arcs) != 1 {
		t.Fatalf("got %d arcs, want 1", len(lat.Arcs))
	}
	if lat.Arcs[0].Src != 0 || lat.Arcs[0].Dst != 1 {
		t.Fatalf("arc endpoints = %d -> %d, want 0 -> 1", lat.Arcs[0].Src, lat.Arcs[0].Dst)
	}
	if lat.Final != 1 {
		t.Fatalf("Final = %d, want 1", lat.Final)
	}
	if lat.Arcs[0].ILabel.Text != "a" || lat.Arcs[0].OLabel.Text != "b" {
		t.Fatalf("labels = %q/%q, want a/b", lat.Arcs[0].ILabel.Text, lat.Arcs[0].OLabel.Text)
	}
}

func TestLoadWeights(t *testing.T) {
	lat := loadOne(t, "0 1 a a 2.0\n0 2 b b 1.0\n1 3 c c 1.0\n2 3 d d 3.0\n3\nEOS\n", MultiplierTest)
	if len(lat.Arcs) != 4 {
		t.Fatalf("got %d arcs, want 4", len(lat.Arcs))
	}
	if lat.Arcs[0].Wgh[0] != 2.0 {
		t.Fatalf("Wgh[0] = %v, want 2.0", lat.Arcs[0].Wgh[0])
	}
}

func TestThreeTokenLineIsFormatError(t *testing.T) {
	_, err := LoadDataset(strings.NewReader("0 1 a\n1\nEOS\n"), NewVocabulary(), NewVocabulary(), MultiplierTest)
	var fe *FormatError
	if err == nil {
		t.Fatalf("expected a format error")
	}
	if !errorsAs(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
}

func TestCycleRejected(t *testing.T) {
	_, err := LoadDataset(strings.NewReader("0 1 a a\n1 2 a a\n2 0 a a\n2\nEOS\n"), NewVocabulary(), NewVocabulary(), MultiplierTest)
	var ie *InvalidError
	if err == nil {
		t.Fatalf("expected an invalid-lattice error for a cyclic lattice")
	}
	if !errorsAs(err, &ie) {
		t.Fatalf("error = %v, want *InvalidError", err)
	}
}

func TestTopoOrderRespectsInArcDependency(t *testing.T) {
	lat := loadOne(t, "0 1 a a\n0 2 b b\n1 3 c c\n2 3 d d\n3\nEOS\n", MultiplierTest)

	pos := make(map[int]int, len(lat.ForwardOrder))
	for rank, ai := range lat.ForwardOrder {
		pos[ai] = rank
	}
	for _, ai := range lat.ForwardOrder {
		src := lat.Arcs[ai].Src
		for _, inAi := range lat.States[src].In {
			if pos[inAi] >= pos[ai] {
				t.Fatalf("forward order: in-arc %d of arc %d's source did not come strictly earlier", inAi, ai)
			}
		}
	}

	posB := make(map[int]int, len(lat.BackwardOrder))
	for rank, ai := range lat.BackwardOrder {
		posB[ai] = rank
	}
	for _, ai := range lat.BackwardOrder {
		dst := lat.Arcs[ai].Dst
		for _, outAi := range lat.States[dst].Out {
			if posB[outAi] >= posB[ai] {
				t.Fatalf("backward order: out-arc %d of arc %d's target did not come strictly earlier", outAi, ai)
			}
		}
	}
}

// errorsAs is a tiny local shim so this file does not need to decide
// between errors.As generic ergonomics and the two sentinel types.
func errorsAs[T any](err error, target *T) bool {
	if e, ok := err.(T); ok {
		*target = e
		return true
	}
	return false
}
