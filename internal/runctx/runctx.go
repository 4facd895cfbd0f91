// Package runctx threads the ambient state a training or decoding run
// needs as an explicit value, instead of the reference implementation's
// global-looking model/iteration state (spec.md 9, DESIGN NOTES).
package runctx

import (
	"math/rand"

	"github.com/shuokabe/wfsttrain/pkg/model"
	"github.com/shuokabe/wfsttrain/pkg/pattern"
	"github.com/shuokabe/wfsttrain/pkg/strpool"
)

// Context bundles everything a run's components are threaded
// through, rather than reaching for package-level state.
type Context struct {
	Model     *model.Model
	Generator *pattern.Generator
	Pool      *strpool.Pool
	Patterns  []*pattern.Pattern
	Rand      *rand.Rand
}

// New builds a Context from an already-compiled pattern set and an
// optionally pre-populated model (nil creates a fresh one).
func New(m *model.Model, pool *strpool.Pool, patterns []*pattern.Pattern) *Context {
	if m == nil {
		m = model.New()
	}
	return &Context{
		Model:     m,
		Generator: pattern.NewGenerator(patterns, pool),
		Pool:      pool,
		Patterns:  patterns,
		Rand:      rand.New(rand.NewSource(1)),
	}
}

// Iteration reads the model's current iteration counter.
func (c *Context) Iteration() int64 { return c.Model.Iteration.Load() }

// AdvanceIteration bumps the model's iteration counter by one,
// called once per completed train-then-update cycle.
func (c *Context) AdvanceIteration() { c.Model.Iteration.Add(1) }
