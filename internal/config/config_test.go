package config

import (
	"runtime"
	"testing"
)

func TestParseRequiresAtLeastOnePattern(t *testing.T) {
	_, err := Parse([]string{"--train-spc", "spc.txt"})
	if err == nil {
		t.Fatalf("expected an error when no --pattern is given")
	}
}

func TestParseRequiresTrainOrTest(t *testing.T) {
	_, err := Parse([]string{"--pattern", "0:u:0s0"})
	if err == nil {
		t.Fatalf("expected an error when none of --train-spc, --devel-spc or --test-spc is given")
	}
}

func TestParseCollectsRepeatedPatterns(t *testing.T) {
	c, err := Parse([]string{
		"--pattern", "0:u:0s0",
		"--pattern", "1:bg:0s0=1s0",
		"--train-spc", "spc.txt",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.Patterns) != 2 {
		t.Fatalf("got %d patterns, want 2", len(c.Patterns))
	}
}

func TestParseTagValueFlags(t *testing.T) {
	c, err := Parse([]string{
		"--pattern", "0:u:0s0",
		"--train-spc", "spc.txt",
		"--tag-start", "3:5",
		"--tag-remove", "3:10",
		"--tag-rho1", "3:0.5",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.TagStart[3] != 5 {
		t.Fatalf("TagStart[3] = %d, want 5", c.TagStart[3])
	}
	if c.TagRemove[3] != 10 {
		t.Fatalf("TagRemove[3] = %d, want 10", c.TagRemove[3])
	}
	if c.TagRho1[3] != 0.5 {
		t.Fatalf("TagRho1[3] = %v, want 0.5", c.TagRho1[3])
	}
}

func TestParseMalformedTagValue(t *testing.T) {
	_, err := Parse([]string{
		"--pattern", "0:u:0s0",
		"--train-spc", "spc.txt",
		"--tag-start", "notanint",
	})
	if err == nil {
		t.Fatalf("expected an error for a malformed TAG:VALUE flag")
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]string{"--pattern", "0:u:0s0", "--train-spc", "spc.txt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.NThreads != runtime.NumCPU() || c.CacheLevel != 4 || c.Iterations != 1 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.RBPStpInc != 1.2 || c.RBPStpMax != 50.0 {
		t.Fatalf("unexpected RPROP defaults: %+v", c)
	}
}
