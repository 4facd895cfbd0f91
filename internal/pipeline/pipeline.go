// Package pipeline wires internal/config, internal/runctx, and the
// pkg/train, pkg/rprop, pkg/decode packages into the single run that
// both cmd/wfsttrain and cmd/wfstdecode execute, so the two
// entrypoints share one implementation and differ only in which CLI
// switches they require (spec.md 6).
package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shuokabe/wfsttrain/internal/config"
	"github.com/shuokabe/wfsttrain/internal/runctx"
	"github.com/shuokabe/wfsttrain/pkg/decode"
	"github.com/shuokabe/wfsttrain/pkg/model"
	"github.com/shuokabe/wfsttrain/pkg/pattern"
	"github.com/shuokabe/wfsttrain/pkg/rprop"
	"github.com/shuokabe/wfsttrain/pkg/strpool"
	"github.com/shuokabe/wfsttrain/pkg/train"
	"github.com/shuokabe/wfsttrain/pkg/wfst"
)

// Run executes one end-to-end pass: compile patterns, load or create
// a model, train for cfg.Iterations rounds over --train-spc/-ref (if
// given), decode --devel-spc/--test-spc (if given), then save the
// model and string pool.
func Run(cfg *config.Config) error {
	logger := newLogger(cfg.Verbose)

	pool := strpool.New(cfg.StrAll)
	if cfg.StrLoad != "" {
		if err := withReader(cfg.StrLoad, pool.Load); err != nil {
			return fmt.Errorf("loading string pool: %w", err)
		}
	}

	patterns, err := compilePatterns(cfg)
	if err != nil {
		return fmt.Errorf("compiling patterns: %w", err)
	}

	m := model.New()
	if cfg.MdlLoad != "" {
		if err := withReader(cfg.MdlLoad, m.Load); err != nil {
			return fmt.Errorf("loading model: %w", err)
		}
	}
	m.Start = cfg.TagStart
	m.Remove = cfg.TagRemove
	m.MinFreq = cfg.MinFreq
	m.RefFreq = cfg.RefFreq
	if cfg.FtrDump != "" {
		f, err := os.Create(cfg.FtrDump)
		if err != nil {
			return fmt.Errorf("opening feature dump: %w", err)
		}
		defer f.Close()
		m.SetDump(f)
	}

	ctx := runctx.New(m, pool, patterns)

	trainDS, err := loadTrainingSet(cfg, ctx.Model)
	if err != nil {
		return err
	}

	if trainDS != nil {
		engine := &train.Engine{Model: ctx.Model, Gen: ctx.Generator, CacheLevel: cfg.CacheLevel}
		updater := rprop.NewUpdater()
		updater.StpInc, updater.StpDec, updater.StpMin, updater.StpMax = cfg.RBPStpInc, cfg.RBPStpDec, cfg.RBPStpMin, cfg.RBPStpMax
		updater.Reg.Rho1, updater.Reg.Rho2, updater.Reg.Rho3 = cfg.TagRho1, cfg.TagRho2, cfg.TagRho3

		for iter := 0; iter < cfg.Iterations; iter++ {
			ll, err := engine.GradientPass(trainDS, cfg.NThreads)
			if err != nil {
				return fmt.Errorf("gradient pass at iteration %d: %w", iter, err)
			}
			penalty := updater.Step(ctx.Model)
			ctx.AdvanceIteration()
			logger.Debug("training iteration", "iteration", iter, "objective", ll+penalty, "features", ctx.Model.Features.Len())
			if cfg.MdlSaveOTF != "" {
				path := fmt.Sprintf(cfg.MdlSaveOTF, iter)
				if err := withWriter(path, ctx.Model.Save); err != nil {
					return fmt.Errorf("saving iteration %d snapshot: %w", iter, err)
				}
			}
		}
	}

	decoder := &decode.Decoder{Model: ctx.Model, Gen: ctx.Generator}

	if cfg.DevelSpc != "" {
		if err := decodeDataset(decoder, cfg.DevelSpc, cfg.DevelOut, ""); err != nil {
			return fmt.Errorf("decoding development set: %w", err)
		}
	}
	if cfg.TestSpc != "" {
		if err := decodeDataset(decoder, cfg.TestSpc, cfg.TestOut, cfg.TestFST); err != nil {
			return fmt.Errorf("decoding test set: %w", err)
		}
	}

	if cfg.MdlCompact {
		ctx.Model.Shrink()
	}
	if cfg.MdlSave != "" {
		if err := withWriter(cfg.MdlSave, ctx.Model.Save); err != nil {
			return fmt.Errorf("saving model: %w", err)
		}
	}
	if cfg.StrSave != "" {
		if err := withWriter(cfg.StrSave, ctx.Pool.Save); err != nil {
			return fmt.Errorf("saving string pool: %w", err)
		}
	}

	return nil
}

// newLogger builds the structured per-iteration diagnostics logger:
// debug-level training progress only surfaces under -v/--verbose, text
// output to stderr so stdout stays free for piped decode output.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// compilePatterns turns cfg's repeated --pattern strings and any
// --pattern-set YAML file into a single compiled pattern list (spec.md
// 6, internal/config.PatternSet).
func compilePatterns(cfg *config.Config) ([]*pattern.Pattern, error) {
	raw := append([]string{}, cfg.Patterns...)
	if cfg.PatternSet != "" {
		set, err := config.LoadPatternSet(cfg.PatternSet)
		if err != nil {
			return nil, err
		}
		raw = append(raw, set.Strings()...)
	}

	patterns := make([]*pattern.Pattern, 0, len(raw))
	for _, r := range raw {
		p, err := pattern.Compile(r)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// loadTrainingSet loads --train-spc (tagged as hypothesis lattices)
// and --train-ref (tagged as reference lattices) into one combined
// dataset, so a single GradientPass sees both sides of every sample
// (spec.md 2).
func loadTrainingSet(cfg *config.Config, m *model.Model) (*wfst.Dataset, error) {
	if cfg.TrainSpc == "" {
		return nil, nil
	}
	spc, err := loadLattices(cfg.TrainSpc, m, wfst.MultiplierHypothesis)
	if err != nil {
		return nil, fmt.Errorf("loading training search space: %w", err)
	}
	ds := &wfst.Dataset{Lattices: spc.Lattices}
	if cfg.TrainRef != "" {
		ref, err := loadLattices(cfg.TrainRef, m, wfst.MultiplierReference)
		if err != nil {
			return nil, fmt.Errorf("loading training reference: %w", err)
		}
		ds.Lattices = append(ds.Lattices, ref.Lattices...)
	}
	return ds, nil
}

func loadLattices(path string, m *model.Model, mult wfst.Multiplier) (*wfst.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return wfst.LoadDataset(f, m.Source, m.Target, mult)
}

// decodeDataset decodes every lattice in spcPath. Each decoded path is
// written to outPath as its steps ("in:out", space-separated) followed
// by a tab and the path score, one sample per line. When fstPath is
// non-empty, each lattice's current weighted arc table is dumped there
// instead (spec.md 4.8's alternate mode).
func decodeDataset(d *decode.Decoder, spcPath, outPath, fstPath string) error {
	ds, err := loadLattices(spcPath, d.Model, wfst.MultiplierTest)
	if err != nil {
		return err
	}

	var out, fstOut *os.File
	if outPath != "" {
		if out, err = os.Create(outPath); err != nil {
			return err
		}
		defer out.Close()
	}
	if fstPath != "" {
		if fstOut, err = os.Create(fstPath); err != nil {
			return err
		}
		defer fstOut.Close()
	}

	for _, lat := range ds.Lattices {
		if fstOut != nil {
			if err := train.PreparePsi(d.Gen, d.Model, lat, false); err != nil {
				return err
			}
			if err := d.DumpFST(lat, fstOut); err != nil {
				return err
			}
			continue
		}
		steps, score, err := d.Decode(lat)
		if err != nil {
			return err
		}
		if out != nil {
			if err := writeSteps(out, steps, score); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSteps(w io.Writer, steps []decode.Step, score float64) error {
	for i, s := range steps {
		if i > 0 {
			if _, err := fmt.Fprint(w, " "); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s:%s", s.InLabel, s.OutLabel); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\t%v\n", score)
	return err
}

func withWriter(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

func withReader(path string, read func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return read(f)
}
