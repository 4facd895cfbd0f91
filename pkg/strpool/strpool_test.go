package strpool

import (
	"bytes"
	"strings"
	"testing"
)

func TestInternMandatoryAlwaysKept(t *testing.T) {
	p := New(false)
	h := p.InternString("hello", true)
	if got := p.Get(h); got != "hello" {
		t.Fatalf("Get(mandatory) = %q, want %q", got, "hello")
	}
}

func TestInternOptionalDroppedUnlessStoreAll(t *testing.T) {
	p := New(false)
	h := p.InternString("optional", false)
	if got := p.Get(h); got != Sentinel {
		t.Fatalf("Get(optional, store-all off) = %q, want sentinel", got)
	}

	all := New(true)
	h2 := all.InternString("optional", false)
	if got := all.Get(h2); got != "optional" {
		t.Fatalf("Get(optional, store-all on) = %q, want %q", got, "optional")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := New(true)
	for _, s := range []string{"alpha", "beta", "gamma|delta"} {
		p.InternString(s, true)
	}

	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New(true)
	if err := loaded.Load(strings.NewReader(buf.String())); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, s := range []string{"alpha", "beta", "gamma|delta"} {
		h := loaded.InternString(s, true)
		if got := loaded.Get(h); got != s {
			t.Fatalf("round-tripped Get(%q) = %q", s, got)
		}
	}
}

func TestLoadFormatError(t *testing.T) {
	p := New(true)
	if err := p.Load(strings.NewReader("not-a-hash-and-no-space\n")); err == nil {
		t.Fatalf("Load accepted a malformed line")
	}
}
