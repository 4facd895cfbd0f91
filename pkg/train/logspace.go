package train

import (
	"math"

	"github.com/shuokabe/wfsttrain/pkg/wfst"
)

// logsumexp folds b into the running log-space sum a, treating
// wfst.NegInf as the absorbing element in place of -infinity
// (spec.md 4.6b).
func logsumexp(a, b float64) float64 {
	if a == wfst.NegInf {
		return b
	}
	if b == wfst.NegInf {
		return a
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}

// safeExp guards against NaN from -inf - (-inf) when a log-potential
// never reaches the final state (a malformed or degenerate lattice).
func safeExp(logP float64) float64 {
	if math.IsNaN(logP) {
		return 0
	}
	return math.Exp(logP)
}
