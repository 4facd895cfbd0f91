// Package strpool maps 63-bit hashes back to the strings they were
// derived from, for diagnostic output and for dumping a model's label
// vocabulary. It is a thin, append-only wrapper over pkg/cmap.
package strpool

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shuokabe/wfsttrain/pkg/xhash"
)

// Sentinel is returned by Get when a hash has no stored string, either
// because it was never mandatory or store-all mode was off when it
// was interned.
const Sentinel = "<unknown>"

// Pool interns byte sequences into 63-bit hashes and recovers the
// original string for a subset of hashes. Safe for concurrent use: it
// is append-only during training, readable concurrently with append.
type Pool struct {
	entries  *entryMap
	storeAll bool
}

// New creates an empty pool. When storeAll is true, every interned
// string is retained regardless of the mandatory flag passed to
// Intern; otherwise only mandatory strings are retained.
func New(storeAll bool) *Pool {
	return &Pool{entries: newEntryMap(), storeAll: storeAll}
}

// Intern returns the 63-bit hash of data, storing a copy of data iff
// mandatory or the pool is in store-all mode.
func (p *Pool) Intern(data []byte, mandatory bool) uint64 {
	h := xhash.Sum(data)
	if mandatory || p.storeAll {
		cp := make([]byte, len(data))
		copy(cp, data)
		p.entries.insertOrKeep(h, string(cp))
	}
	return h
}

// InternString is Intern for the common case of a string operand.
func (p *Pool) InternString(s string, mandatory bool) uint64 {
	h := xhash.SumString(s)
	if mandatory || p.storeAll {
		p.entries.insertOrKeep(h, s)
	}
	return h
}

// Get returns the stored string for h, or Sentinel if none is stored.
func (p *Pool) Get(h uint64) string {
	if s, ok := p.entries.find(h); ok {
		return s
	}
	return Sentinel
}

// Len reports how many strings are currently retained.
func (p *Pool) Len() int { return p.entries.m.Len() }

// Save writes one record per retained string: a 16-hex-digit hash, a
// space, the string, and a newline (spec.md 6).
func (p *Pool) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var writeErr error
	p.entries.m.Iter(func(hash uint64, value string) bool {
		if _, err := fmt.Fprintf(bw, "%016x %s\n", hash, value); err != nil {
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

// Load reads records written by Save. The leading hex hash token is
// ignored; the hash is recomputed from the string itself so that
// loaded pools stay self-consistent with Intern.
func (p *Pool) Load(r io.Reader) error {
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
			return fmt.Errorf("strpool: format error at line %d: missing separator", line)
		}
		if _, err := strconv.ParseUint(text[:idx], 16, 64); err != nil {
			return fmt.Errorf("strpool: format error at line %d: bad hash token: %w", line, err)
		}
		s := text[idx+1:]
		p.entries.insertOrKeep(xhash.SumString(s), s)
	}
	return sc.Err()
}
