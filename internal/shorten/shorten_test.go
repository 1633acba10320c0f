package shorten

import (
	"maps"
	"slices"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
)

func TestNames_Abbreviations(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		preserve []string
		want     map[string]string
	}{
		{
			name:  "distinct first letters",
			names: []string{"aaaaa", "bbbbb", "cc", "aaaax"},
			want:  map[string]string{"aaaaa": "a*", "bbbbb": "b*", "cc": "cc", "aaaax": "a*x"},
		},
		{
			name:  "most frequent name goes first",
			names: []string{"aaaaa", "aaaax", "aaaax"},
			want:  map[string]string{"aaaax": "a*", "aaaaa": "a*a"},
		},
		{
			name:  "grows prefix or suffix by shorter shared run",
			names: []string{"aaabx", "aaaax", "aaaax", "axaax"},
			want:  map[string]string{"aaaax": "a*", "aaabx": "a*bx", "axaax": "ax*"},
		},
		{
			name:     "preserved names stay literal",
			names:    []string{"aaab"},
			preserve: []string{"aaaa"},
			want:     map[string]string{"aaaa": "aaaa", "aaab": "a*b"},
		},
		{
			name:     "name inside a preserved name cannot shrink",
			names:    []string{"aaa"},
			preserve: []string{"aaaa"},
			want:     map[string]string{"aaaa": "aaaa", "aaa": "aaa"},
		},
		{
			name:     "name both preserved and shortened",
			names:    []string{"aaa"},
			preserve: []string{"aaa"},
			want:     map[string]string{"aaa": "a*"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Names(tt.names, tt.preserve)
			if !maps.Equal(got, tt.want) {
				t.Errorf("Names(%v, %v) = %v, want %v", tt.names, tt.preserve, got, tt.want)
			}
		})
	}
}

func TestNames_MatchesOwnName(t *testing.T) {
	names := []string{"alpha", "alphabet", "beta", "betamax", "gamma", "go", "gopher", "x"}
	got := Names(names, nil)

	seen := make(map[string]string)
	for _, n := range names {
		short, ok := got[n]
		if !ok {
			t.Fatalf("no abbreviation for %q", n)
		}
		if !doublestar.ValidatePattern(short) {
			t.Errorf("abbreviation %q for %q is not a valid glob", short, n)
		}
		if ok, _ := doublestar.Match(short, n); !ok {
			t.Errorf("abbreviation %q does not match its own name %q", short, n)
		}
		if len(short) > len(n) {
			t.Errorf("abbreviation %q is longer than %q", short, n)
		}
		if other, dup := seen[short]; dup {
			t.Errorf("%q and %q share abbreviation %q", n, other, short)
		}
		seen[short] = n
	}
}

// An abbreviation may match a sibling too ("a*" matches "aaaax"). With
// the abbreviations sorted and the last match winning, every name must
// still resolve to its own abbreviation.
func TestNames_SortedLastMatchResolvesOwnName(t *testing.T) {
	for _, names := range [][]string{
		{"aaaaa", "bbbbb", "cc", "aaaax"},
		{"aaaaa", "aaaax", "aaaax"},
		{"aaabx", "aaaax", "aaaax", "axaax"},
	} {
		got := Names(names, nil)
		patterns := slices.Sorted(maps.Values(got))
		for _, n := range names {
			var last string
			for _, p := range patterns {
				if ok, _ := doublestar.Match(p, n); ok {
					last = p
				}
			}
			if last != got[n] {
				t.Errorf("%v: %q resolves to %q, want its own %q (sorted: %v)", names, n, last, got[n], patterns)
			}
		}
	}
}

func TestNames_Deterministic(t *testing.T) {
	names := []string{"service-a", "service-b", "scripts", "src", "service-a"}
	first := Names(names, []string{"shared"})
	for range 10 {
		if got := Names(names, []string{"shared"}); !maps.Equal(got, first) {
			t.Fatalf("Names is not deterministic: %v then %v", first, got)
		}
	}
}

func TestNames_MetacharactersStayLiteral(t *testing.T) {
	got := Names([]string{"a[1]bcdef", "what?ever", "plain-name"}, nil)
	for _, n := range []string{"a[1]bcdef", "what?ever"} {
		if got[n] != n {
			t.Errorf("Names()[%q] = %q, want it unchanged", n, got[n])
		}
	}
	if got["plain-name"] != "p*" {
		t.Errorf("Names()[plain-name] = %q, want p*", got["plain-name"])
	}
}

func TestNames_Empty(t *testing.T) {
	if got := Names(nil, nil); len(got) != 0 {
		t.Errorf("Names(nil, nil) = %v, want empty", got)
	}
}
