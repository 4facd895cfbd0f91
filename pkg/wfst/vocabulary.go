package wfst

import (
	"strings"

	"github.com/shuokabe/wfsttrain/pkg/cmap"
	"github.com/shuokabe/wfsttrain/pkg/xhash"
)

// Label represents one side of an arc: the 63-bit hash of the whole
// label string, plus the ordered token hashes obtained by splitting
// the string on '|' (spec.md 3). Labels are interned so that two arcs
// referring to the same text share the same *Label.
type Label struct {
	Hash   uint64
	Tokens []uint64
	Text   string
}

// Vocabulary interns label strings for one side (source or target) of
// the dataset, so identical label text always resolves to the same
// *Label pointer. Safe for concurrent use.
type Vocabulary struct {
	labels *cmap.Map[*Label]
}

// NewVocabulary creates an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{labels: cmap.New[*Label]()}
}

// Intern returns the shared *Label for text, creating it on first use.
func (v *Vocabulary) Intern(text string) *Label {
	h := xhash.SumString(text)
	if existing, ok := v.labels.Find(h); ok {
		return existing
	}
	tokens := tokenHashes(text)
	lbl := &Label{Hash: h, Tokens: tokens, Text: text}
	got, _ := v.labels.Insert(h, lbl)
	return got
}

// Len returns the number of distinct labels interned so far.
func (v *Vocabulary) Len() int { return v.labels.Len() }

func tokenHashes(text string) []uint64 {
	parts := strings.Split(text, "|")
	hashes := make([]uint64, len(parts))
	for i, p := range parts {
		hashes[i] = xhash.SumString(p)
	}
	return hashes
}
