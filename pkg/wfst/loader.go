// Loader for the lattice/WFST text format of spec.md 6: a
// concatenation of samples, each a run of arc lines, a single final
// state id, and a literal EOS line.
package wfst

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// sampleBuilder accumulates one sample's arcs and per-sample state
// name -> index assignment before it is turned into a *Lattice.
type sampleBuilder struct {
	stateIdx  map[string]int
	nextIdx   int
	arcLines  []arcLine
	finalName string
	haveFinal bool
}

type arcLine struct {
	srcName, dstName string
	inLabel, outLabel string
	weights          []float64
	line             int
}

func newSampleBuilder() *sampleBuilder {
	return &sampleBuilder{
		stateIdx: map[string]int{"0": 0},
		nextIdx:  1,
	}
}

func (b *sampleBuilder) index(name string) int {
	if idx, ok := b.stateIdx[name]; ok {
		return idx
	}
	idx := b.nextIdx
	b.stateIdx[name] = idx
	b.nextIdx++
	return idx
}

// LoadDataset parses r as a sequence of samples, interning labels
// through srcVocab/dstVocab, tagging every resulting lattice with
// mult.
func LoadDataset(r io.Reader, srcVocab, dstVocab *Vocabulary, mult Multiplier) (*Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	ds := &Dataset{}
	sample := newSampleBuilder()
	lineNo := 0

	flush := func() error {
		if len(sample.arcLines) == 0 && !sample.haveFinal {
			return nil
		}
		if !sample.haveFinal {
			return &FormatError{Line: lineNo, Msg: "sample ended without a final-state line"}
		}
		lat, err := sample.build(srcVocab, dstVocab, mult)
		if err != nil {
			return err
		}
		ds.Lattices = append(ds.Lattices, lat)
		sample = newSampleBuilder()
		return nil
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "EOS" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		fields := strings.Fields(line)
		switch {
		case len(fields) == 1:
			if sample.haveFinal {
				return nil, &FormatError{Line: lineNo, Msg: "duplicated final state"}
			}
			sample.finalName = fields[0]
			sample.haveFinal = true
		case len(fields) == 3:
			return nil, &FormatError{Line: lineNo, Msg: "three-token arc line"}
		case len(fields) >= 4:
			weights := make([]float64, 0, len(fields)-4)
			for _, w := range fields[4:] {
				f, err := strconv.ParseFloat(w, 64)
				if err != nil {
					return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("bad weight %q: %v", w, err)}
				}
				weights = append(weights, f)
			}
			sample.arcLines = append(sample.arcLines, arcLine{
				srcName: fields[0], dstName: fields[1],
				inLabel: fields[2], outLabel: fields[3],
				weights: weights, line: lineNo,
			})
		default:
			return nil, &FormatError{Line: lineNo, Msg: "two-token arc line"}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(sample.arcLines) != 0 || sample.haveFinal {
		return nil, &FormatError{Line: lineNo, Msg: "unterminated sample: missing EOS"}
	}
	return ds, nil
}

func (b *sampleBuilder) build(srcVocab, dstVocab *Vocabulary, mult Multiplier) (*Lattice, error) {
	finalIdx, ok := b.stateIdx[b.finalName]
	if !ok {
		finalIdx = b.index(b.finalName)
	}

	lat := &Lattice{
		Arcs:       make([]Arc, len(b.arcLines)),
		Final:      finalIdx,
		Multiplier: mult,
	}
	for i, al := range b.arcLines {
		src := b.index(al.srcName)
		dst := b.index(al.dstName)
		arc := Arc{
			Src:    src,
			Dst:    dst,
			ILabel: srcVocab.Intern(al.inLabel),
			OLabel: dstVocab.Intern(al.outLabel),
		}
		for j := 0; j < len(al.weights) && j < MaxRealWeights; j++ {
			arc.Wgh[j] = al.weights[j]
		}
		lat.Arcs[i] = arc
	}
	// b.index calls above may have grown nextIdx past what was known
	// when finalIdx was first assigned; size States to cover every
	// index actually handed out, not just the final-state id.
	need := b.nextIdx
	if finalIdx+1 > need {
		need = finalIdx + 1
	}
	lat.States = make([]State, need)

	if err := BuildAdjacency(lat); err != nil {
		return nil, err
	}
	if err := TopoSort(lat); err != nil {
		return nil, err
	}
	return lat, nil
}
