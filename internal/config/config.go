// Package config parses the command-line switch surface of spec.md 6
// into a plain Config value, and loads an optional YAML pattern-set
// file as an alternative to repeating --pattern on the command line.
package config

import (
	"flag"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/shuokabe/wfsttrain/pkg/model"
)

// Config mirrors every CLI switch grouped the way spec.md 6 groups
// them.
type Config struct {
	// Global.
	Verbose  bool
	NThreads int

	// Model I/O.
	MdlLoad    string
	MdlSave    string
	MdlSaveOTF string
	MdlCompact bool
	FtrDump    string

	// Data.
	TrainSpc  string
	TrainRef  string
	DevelSpc  string
	DevelOut  string
	TestSpc   string
	TestOut   string
	TestFST   string

	// Features.
	Patterns   []string
	PatternSet string
	TagStart   [model.NumTags]int64
	TagRemove  [model.NumTags]int64
	TagRho1    [model.NumTags]float64
	TagRho2    [model.NumTags]float64
	TagRho3    [model.NumTags]float64
	RefFreq    bool
	MinFreq    int64

	// Optimization.
	CacheLevel int
	Iterations int
	RBPStpInc  float64
	RBPStpDec  float64
	RBPStpMin  float64
	RBPStpMax  float64

	// String pool.
	StrLoad string
	StrSave string
	StrAll  bool
}

// tagInt64Flag and tagFloat64Flag implement flag.Value for repeatable "T:VALUE" switches
// (--tag-start, --tag-remove, --tag-rho1/2/3), writing into a
// per-tag array.
type tagInt64Flag struct{ dst *[model.NumTags]int64 }
type tagFloat64Flag struct{ dst *[model.NumTags]float64 }

func (f tagInt64Flag) String() string { return "" }
func (f tagInt64Flag) Set(s string) error {
	tag, rest, err := splitTagValue(s)
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return fmt.Errorf("bad value in %q: %w", s, err)
	}
	f.dst[tag] = n
	return nil
}

func (f tagFloat64Flag) String() string { return "" }
func (f tagFloat64Flag) Set(s string) error {
	tag, rest, err := splitTagValue(s)
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return fmt.Errorf("bad value in %q: %w", s, err)
	}
	f.dst[tag] = v
	return nil
}

func splitTagValue(s string) (uint8, string, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return 0, "", fmt.Errorf("expected TAG:VALUE, got %q", s)
	}
	tag, err := strconv.ParseUint(s[:idx], 10, 8)
	if err != nil || tag > 127 {
		return 0, "", fmt.Errorf("bad tag in %q", s)
	}
	return uint8(tag), s[idx+1:], nil
}

// repeatableString implements flag.Value for a switch that may be
// given multiple times, such as --pattern.
type repeatableString struct{ dst *[]string }

func (r repeatableString) String() string { return "" }
func (r repeatableString) Set(s string) error {
	*r.dst = append(*r.dst, s)
	return nil
}

// Parse parses args (typically os.Args[1:]) into a Config. Defaults
// for optimization parameters match pkg/rprop's RPROP defaults.
func Parse(args []string) (*Config, error) {
	c := &Config{
		NThreads:   runtime.NumCPU(),
		CacheLevel: 4,
		Iterations: 1,
		RBPStpInc:  1.2,
		RBPStpDec:  0.5,
		RBPStpMin:  1e-8,
		RBPStpMax:  50.0,
		MinFreq:    0,
	}
	// Absent an explicit --tag-remove, a tag's features are never
	// pruned for being out of window (matches model.New's own
	// default); the Go zero value of 0 would instead make every
	// window empty.
	for t := range c.TagRemove {
		c.TagRemove[t] = math.MaxInt64
	}

	fs := flag.NewFlagSet("wfsttrain", flag.ContinueOnError)

	fs.BoolVar(&c.Verbose, "v", false, "verbose progress output")
	fs.BoolVar(&c.Verbose, "verbose", false, "verbose progress output")
	fs.IntVar(&c.NThreads, "nthreads", c.NThreads, "number of worker threads")

	fs.StringVar(&c.MdlLoad, "mdl-load", "", "load initial model weights from this file")
	fs.StringVar(&c.MdlSave, "mdl-save", "", "save final model weights to this file")
	fs.StringVar(&c.MdlSaveOTF, "mdl-save-otf", "", "printf-style (%d) template for per-iteration model dumps")
	fs.BoolVar(&c.MdlCompact, "mdl-compact", false, "shrink zero-weight features before saving")
	fs.StringVar(&c.FtrDump, "ftr-dump", "", "dump newly created features to this file (forces single-threaded passes)")

	fs.StringVar(&c.TrainSpc, "train-spc", "", "training hypothesis (search-space) lattices")
	fs.StringVar(&c.TrainRef, "train-ref", "", "training reference lattices")
	fs.StringVar(&c.DevelSpc, "devel-spc", "", "development hypothesis lattices")
	fs.StringVar(&c.DevelOut, "devel-out", "", "development decode output")
	fs.StringVar(&c.TestSpc, "test-spc", "", "test hypothesis lattices")
	fs.StringVar(&c.TestOut, "test-out", "", "test decode output")
	fs.StringVar(&c.TestFST, "test-fst", "", "test full-WFST weighted dump output")

	fs.Var(repeatableString{&c.Patterns}, "pattern", "T:STR template pattern (repeatable)")
	fs.StringVar(&c.PatternSet, "pattern-set", "", "YAML file of additional template patterns, merged with --pattern")
	fs.Var(tagInt64Flag{&c.TagStart}, "tag-start", "T:N activation start iteration for tag T")
	fs.Var(tagInt64Flag{&c.TagRemove}, "tag-remove", "T:N removal iteration for tag T")
	fs.Var(tagFloat64Flag{&c.TagRho1}, "tag-rho1", "T:F L1 coefficient for tag T")
	fs.Var(tagFloat64Flag{&c.TagRho2}, "tag-rho2", "T:F L2 coefficient for tag T")
	fs.Var(tagFloat64Flag{&c.TagRho3}, "tag-rho3", "T:F frequency-weighted L1 coefficient for tag T")
	fs.BoolVar(&c.RefFreq, "ref-freq", false, "count feature frequency on reference lattices instead of hypothesis")
	fs.Int64Var(&c.MinFreq, "min-freq", c.MinFreq, "minimum reference-occurrence frequency for a feature to survive")

	fs.IntVar(&c.CacheLevel, "cache-lvl", c.CacheLevel, "0..4 transient per-lattice buffer cache level")
	fs.IntVar(&c.Iterations, "iterations", c.Iterations, "number of training iterations")
	fs.Float64Var(&c.RBPStpInc, "rbp-stpinc", c.RBPStpInc, "RPROP step-size growth factor")
	fs.Float64Var(&c.RBPStpDec, "rbp-stpdec", c.RBPStpDec, "RPROP step-size shrink factor")
	fs.Float64Var(&c.RBPStpMin, "rbp-stpmin", c.RBPStpMin, "RPROP minimum step size")
	fs.Float64Var(&c.RBPStpMax, "rbp-stpmax", c.RBPStpMax, "RPROP maximum step size")

	fs.StringVar(&c.StrLoad, "str-load", "", "load the string pool from this file")
	fs.StringVar(&c.StrSave, "str-save", "", "save the string pool to this file")
	fs.BoolVar(&c.StrAll, "str-all", false, "retain every interned string, not just mandatory ones")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if len(c.Patterns) == 0 && c.PatternSet == "" {
		return nil, fmt.Errorf("at least one --pattern or --pattern-set is required")
	}
	if c.TrainSpc == "" && c.TestSpc == "" && c.DevelSpc == "" {
		return nil, fmt.Errorf("at least one of --train-spc, --devel-spc or --test-spc is required")
	}

	return c, nil
}
