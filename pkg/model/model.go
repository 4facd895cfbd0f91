// Package model owns the shared, concurrently-accessed state of a
// training run: the feature table, the source/target label
// vocabularies, and the per-tag activation windows that gate which
// iterations a tag's features may be created in (spec.md 3, 4.4).
package model

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shuokabe/wfsttrain/pkg/cmap"
	"github.com/shuokabe/wfsttrain/pkg/wfst"
	"github.com/shuokabe/wfsttrain/pkg/xhash"
)

// NumTags is the number of distinct pattern tags (spec.md 3: a tag is
// a 7-bit integer 0..127).
const NumTags = 128

// contentMask keeps the low 56 bits of a combined item hash; the tag
// occupies the top 8 bits of a feature key (spec.md 3, 4.4).
const contentMask = (uint64(1) << 56) - 1

// Model holds everything a training or decoding run shares across
// worker goroutines.
type Model struct {
	Features *cmap.Map[*Feature]
	Source   *wfst.Vocabulary
	Target   *wfst.Vocabulary

	Start  [NumTags]int64 // stt[tag]: iteration a tag's features may start appearing
	Remove [NumTags]int64 // rem[tag]: iteration at/after which a zero-weight feature is pruned

	Iteration atomic.Int64
	MinFreq   int64
	RefFreq   bool // count frequency on reference-side lattices instead of hypothesis-side

	dumpMu sync.Mutex
	dump   io.Writer // non-nil enables feature-dump mode (forces single-threaded passes)
}

// New creates an empty model. Remove defaults to the maximum int64 so
// that, absent an explicit --tag-remove, no tag's features are ever
// pruned for being out of window.
func New() *Model {
	m := &Model{
		Features: cmap.New[*Feature](),
		Source:   wfst.NewVocabulary(),
		Target:   wfst.NewVocabulary(),
	}
	for t := range m.Remove {
		m.Remove[t] = 1<<63 - 1
	}
	return m
}

// SetDump enables feature-dump mode: every freshly-created feature is
// logged to w as "key space-separated content hashes\n". Dumping
// forces the caller (pkg/train) into single-threaded execution
// because emission order must be stable (spec.md 4.4, 5).
func (m *Model) SetDump(w io.Writer) { m.dump = w }

// Dumping reports whether feature-dump mode is active.
func (m *Model) Dumping() bool { return m.dump != nil }

// featureKey combines a tag and a sequence of item hashes into the
// 64-bit feature-table key of spec.md 3/4.4.
func featureKey(tag uint8, hashes []uint64) uint64 {
	content := xhash.Combine(hashes...) & contentMask
	return uint64(tag)<<56 | content
}

// AddFeature implements spec.md 4.4's add_feature: look up or create
// the feature keyed by (tag, hashes), honoring the tag's activation
// window and frequency counting.
func (m *Model) AddFeature(tag uint8, hashes []uint64, countFrequency bool) (*Feature, bool) {
	key := featureKey(tag, hashes)

	if existing, ok := m.Features.Find(key); ok {
		if countFrequency {
			existing.IncFrq()
		}
		return existing, true
	}

	iter := m.Iteration.Load()
	if iter < m.Start[tag] || iter >= m.Remove[tag] {
		return nil, false
	}

	fresh := &Feature{Tag: tag}
	stored, inserted := m.Features.Insert(key, fresh)
	if countFrequency {
		// Counts the feature's first occurrence too (not just
		// subsequent finds above), so --min-freq compares against a
		// true occurrence count rather than one that undercounts by
		// one for every surviving feature.
		stored.IncFrq()
	}
	if inserted && m.dump != nil {
		m.dumpMu.Lock()
		fmt.Fprintf(m.dump, "%016x", key)
		for _, h := range hashes {
			fmt.Fprintf(m.dump, " %016x", h)
		}
		fmt.Fprint(m.dump, "\n")
		m.dumpMu.Unlock()
	}
	return stored, true
}

// Shrink removes every feature whose weight is exactly zero.
// Precondition: no concurrent readers/writers (spec.md 4.4) — call
// only between training iterations.
func (m *Model) Shrink() {
	var dead []uint64
	m.Features.Iter(func(hash uint64, f *Feature) bool {
		if f.X == 0 {
			dead = append(dead, hash)
		}
		return true
	})
	for _, h := range dead {
		m.Features.Remove(h)
	}
}

// Save writes every surviving feature as "16-hex-digit key, space,
// decimal weight, newline" (spec.md 6).
func (m *Model) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var writeErr error
	m.Features.Iter(func(hash uint64, f *Feature) bool {
		if _, err := fmt.Fprintf(bw, "%016x %v\n", hash, f.X); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if writeErr != nil {
		return writeErr
	}
	return bw.Flush()
}

// Load reads a weight file written by Save, inserting each feature
// directly regardless of its tag's current activation window. This
// preserves the reference implementation's loader leniency (spec.md
// 9, Open Questions): downstream pruning in pkg/rprop reconciles any
// out-of-window feature lazily on the next sweep.
func (m *Model) Load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		idx := strings.IndexByte(text, ' ')
		if idx < 0 {
			return fmt.Errorf("model: format error at line %d: missing separator", line)
		}
		key, err := strconv.ParseUint(text[:idx], 16, 64)
		if err != nil {
			return fmt.Errorf("model: format error at line %d: bad key: %w", line, err)
		}
		x, err := strconv.ParseFloat(text[idx+1:], 64)
		if err != nil {
			return fmt.Errorf("model: format error at line %d: bad weight: %w", line, err)
		}
		f := &Feature{Tag: uint8(key >> 56), X: x}
		m.Features.Insert(key, f)
	}
	return sc.Err()
}
