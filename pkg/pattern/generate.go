package pattern

import (
	"github.com/shuokabe/wfsttrain/pkg/model"
	"github.com/shuokabe/wfsttrain/pkg/strpool"
	"github.com/shuokabe/wfsttrain/pkg/wfst"
	"github.com/shuokabe/wfsttrain/pkg/xhash"
)

// Generator materializes feature lists for a compiled pattern set
// against concrete arcs/arc-pairs, interning equality outcomes through
// a shared string pool (spec.md 4.3).
type Generator struct {
	Patterns []*Pattern
	Pool     *strpool.Pool

	trueHash  uint64
	falseHash uint64
}

// NewGenerator builds a generator over patterns, interning the
// "true"/"false" sentinels used by equality items up front.
func NewGenerator(patterns []*Pattern, pool *strpool.Pool) *Generator {
	return &Generator{
		Patterns:  patterns,
		Pool:      pool,
		trueHash:  pool.InternString("true", true),
		falseHash: pool.InternString("false", true),
	}
}

// arcToken returns the hash of the requested token of an arc's
// input/output label, or the hash of the empty string if the index is
// out of range (an empty template slot is still a stable value).
func arcToken(a *wfst.Arc, side Side, idx int) uint64 {
	lbl := a.ILabel
	if side == SideTarget {
		lbl = a.OLabel
	}
	if idx < 0 || idx >= len(lbl.Tokens) {
		return xhash.SumString("")
	}
	return lbl.Tokens[idx]
}

// itemValue evaluates one compiled item against one or two concrete
// arcs (arcs[0] for Arc==0, arcs[1] for Arc==1), returning the hash
// that becomes part of the feature key.
func (g *Generator) itemValue(it item, arcs [2]*wfst.Arc) uint64 {
	if !it.IsEquality {
		return arcToken(arcs[it.Arc], it.Side, it.TokenIndex)
	}
	left := arcToken(arcs[it.Arc], it.Side, it.TokenIndex)
	right := arcToken(arcs[it.Arc2], it.Side2, it.TokenIndex2)
	if left == right {
		return g.trueHash
	}
	return g.falseHash
}

// hashes builds the (optional name hash, item hashes...) slice that
// model.AddFeature combines into a feature key.
func (g *Generator) hashes(p *Pattern, arcs [2]*wfst.Arc) []uint64 {
	out := make([]uint64, 0, len(p.Items)+1)
	if p.HasName {
		out = append(out, xhash.SumString(p.Name))
	}
	for _, it := range p.Items {
		out = append(out, g.itemValue(it, arcs))
	}
	return out
}

// ArcFeatures returns, for every unigram pattern, the *model.Feature
// activated by a, skipping patterns the tag's activation window does
// not yet admit (spec.md 4.3, 4.4).
func (g *Generator) ArcFeatures(m *model.Model, a *wfst.Arc, countFrequency bool) []*model.Feature {
	var out []*model.Feature
	arcs := [2]*wfst.Arc{a, nil}
	for _, p := range g.Patterns {
		if p.Kind != Unigram {
			continue
		}
		f, ok := m.AddFeature(p.Tag, g.hashes(p, arcs), countFrequency)
		if ok {
			out = append(out, f)
		}
	}
	return out
}

// PairFeatures returns, for every bigram pattern, the *model.Feature
// activated by the consecutive (in, out) arc pair at a state.
func (g *Generator) PairFeatures(m *model.Model, in, out *wfst.Arc, countFrequency bool) []*model.Feature {
	var res []*model.Feature
	arcs := [2]*wfst.Arc{in, out}
	for _, p := range g.Patterns {
		if p.Kind != Bigram {
			continue
		}
		f, ok := m.AddFeature(p.Tag, g.hashes(p, arcs), countFrequency)
		if ok {
			res = append(res, f)
		}
	}
	return res
}

// ArcUnigramFeatures materializes unigram features for every arc of a
// lattice, indexed by arc index.
func (g *Generator) ArcUnigramFeatures(m *model.Model, lat *wfst.Lattice, countFrequency bool) [][]*model.Feature {
	out := make([][]*model.Feature, len(lat.Arcs))
	for i := range lat.Arcs {
		out[i] = g.ArcFeatures(m, &lat.Arcs[i], countFrequency)
	}
	return out
}

// StateBigramFeatures materializes bigram features for every
// (incoming, outgoing) arc pair at state s, flat-indexed with
// s.PsiIndex so the gradient engine can address it without nested
// allocation.
func (g *Generator) StateBigramFeatures(m *model.Model, lat *wfst.Lattice, s *wfst.State, countFrequency bool) [][]*model.Feature {
	out := make([][]*model.Feature, len(s.In)*len(s.Out))
	for i, inAi := range s.In {
		for o, outAi := range s.Out {
			out[s.PsiIndex(i, o)] = g.PairFeatures(m, &lat.Arcs[inAi], &lat.Arcs[outAi], countFrequency)
		}
	}
	return out
}
