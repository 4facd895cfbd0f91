// Package pattern compiles the spec's template language into an
// intermediate representation and materializes per-arc (unigram) and
// per-state (bigram) feature lists for a lattice, interning through a
// shared model and string pool (spec.md 4.3).
package pattern

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Side names which half of an arc's label an item reads from.
type Side byte

const (
	SideSource Side = 's'
	SideTarget Side = 't'
)

// Kind distinguishes a pattern that looks at a single arc from one
// that looks at a consecutive (incoming, outgoing) arc pair at a
// state.
type Kind int

const (
	Unigram Kind = iota
	Bigram
)

// item is one compiled template position: a token from (ArcIdx, Side,
// TokenIndex), optionally paired with a second position whose
// equal/not-equal outcome is the feature value instead (spec.md 3/4.3).
type item struct {
	Arc        int // 0 or 1
	Side       Side
	TokenIndex int

	IsEquality bool
	Arc2       int
	Side2      Side
	TokenIndex2 int
}

// Pattern is a compiled template: a tag, optional name hash, a kind,
// and its items. The source string is never consulted again after
// Compile (DESIGN NOTES 9).
type Pattern struct {
	Tag      uint8
	HasName  bool
	Name     string
	Kind     Kind
	Items    []item
	Raw      string
}

var itemRe = regexp.MustCompile(`^([01])([st])(\d+)(?:=([01])([st])(\d+))?$`)

// Compile parses a pattern string of the form
// "[tag:][name:]item[,item]*" (spec.md 4.3). When the tag segment is
// omitted, tag defaults to 0; callers that take tags from a separate
// CLI token (--pattern T:STR) should prepend "T:" before calling, or
// use CompileWithTag.
func Compile(raw string) (*Pattern, error) {
	return compile(raw, -1)
}

// CompileWithTag parses a pattern string as the body following an
// externally-supplied tag (the common CLI shape "--pattern T:STR"),
// so the string itself need not repeat the tag.
func CompileWithTag(tag uint8, raw string) (*Pattern, error) {
	return compile(raw, int(tag))
}

func compile(raw string, externalTag int) (*Pattern, error) {
	parts := strings.SplitN(raw, ":", 3)

	var tagStr, nameStr, itemsStr string
	switch len(parts) {
	case 1:
		itemsStr = parts[0]
	case 2:
		if externalTag >= 0 {
			nameStr, itemsStr = parts[0], parts[1]
		} else if _, err := strconv.ParseUint(parts[0], 10, 8); err == nil {
			tagStr, itemsStr = parts[0], parts[1]
		} else {
			nameStr, itemsStr = parts[0], parts[1]
		}
	case 3:
		tagStr, nameStr, itemsStr = parts[0], parts[1], parts[2]
	}

	tag := uint8(0)
	switch {
	case externalTag >= 0:
		tag = uint8(externalTag)
	case tagStr != "":
		n, err := strconv.ParseUint(tagStr, 10, 8)
		if err != nil || n > 127 {
			return nil, fmt.Errorf("pattern: bad tag %q in %q", tagStr, raw)
		}
		tag = uint8(n)
	}

	items, err := parseItems(itemsStr)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w in %q", err, raw)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("pattern: no items in %q", raw)
	}

	kind := classify(items)

	return &Pattern{
		Tag:     tag,
		HasName: nameStr != "",
		Name:    nameStr,
		Kind:    kind,
		Items:   items,
		Raw:     raw,
	}, nil
}

func parseItems(s string) ([]item, error) {
	if s == "" {
		return nil, fmt.Errorf("empty item list")
	}
	fields := strings.Split(s, ",")
	items := make([]item, 0, len(fields))
	for _, f := range fields {
		m := itemRe.FindStringSubmatch(f)
		if m == nil {
			return nil, fmt.Errorf("malformed item %q", f)
		}
		it := item{}
		it.Arc = mustAtoi(m[1])
		it.Side = Side(m[2][0])
		it.TokenIndex = mustAtoi(m[3])
		if m[4] != "" {
			it.IsEquality = true
			it.Arc2 = mustAtoi(m[4])
			it.Side2 = Side(m[5][0])
			it.TokenIndex2 = mustAtoi(m[6])
		}
		items = append(items, it)
	}
	return items, nil
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// classify determines whether items reference arc index 1 (bigram);
// a bigram pattern whose items reference only arc index 1 (never 0)
// is normalized down to a unigram pattern over arc 0 (spec.md 4.3).
func classify(items []item) Kind {
	hasArc0, hasArc1 := false, false
	for _, it := range items {
		noteArc(it.Arc, &hasArc0, &hasArc1)
		if it.IsEquality {
			noteArc(it.Arc2, &hasArc0, &hasArc1)
		}
	}
	if hasArc1 && !hasArc0 {
		for i := range items {
			items[i].Arc = 0
			if items[i].IsEquality {
				items[i].Arc2 = 0
			}
		}
		return Unigram
	}
	if hasArc1 {
		return Bigram
	}
	return Unigram
}

func noteArc(a int, hasArc0, hasArc1 *bool) {
	if a == 0 {
		*hasArc0 = true
	} else {
		*hasArc1 = true
	}
}
