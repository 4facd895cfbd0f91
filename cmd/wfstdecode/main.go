// Command wfstdecode decodes lattices with an already-trained model:
// the decode-only half of cmd/wfsttrain's CLI surface, for a
// deployment where training and decoding run as separate jobs
// (spec.md 6, 4.8).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/shuokabe/wfsttrain/internal/config"
	"github.com/shuokabe/wfsttrain/internal/pipeline"
)

func main() {
	log.SetFlags(0)
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fail(err)
	}
	if err := validateDecodeOnly(cfg); err != nil {
		fail(err)
	}
	if err := pipeline.Run(cfg); err != nil {
		fail(err)
	}
}

// validateDecodeOnly rejects switches that only make sense while
// training, so wfstdecode cannot silently mutate a loaded model.
func validateDecodeOnly(cfg *config.Config) error {
	if cfg.MdlLoad == "" {
		return fmt.Errorf("--mdl-load is required")
	}
	if cfg.TrainSpc != "" || cfg.TrainRef != "" {
		return fmt.Errorf("--train-spc/--train-ref are not accepted by wfstdecode")
	}
	if cfg.DevelSpc == "" && cfg.TestSpc == "" {
		return fmt.Errorf("at least one of --devel-spc or --test-spc is required")
	}
	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
