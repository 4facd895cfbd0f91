// Command wfsttrain trains a discriminative WFST weight model from
// paired hypothesis/reference lattices, optionally decoding held-out
// development and test lattices with the resulting model in the same
// run (spec.md 6).
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
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := pipeline.Run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
