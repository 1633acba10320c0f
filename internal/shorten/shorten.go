// Package shorten abbreviates sibling names into "prefix*suffix" globs.
package shorten

import (
	"slices"
	"strings"
)

// globMeta are the characters that would change meaning inside a glob.
const globMeta = `*?[]{}\`

// Names maps each of names to the shortest "prefix*suffix" abbreviation
// that does not collide with any name assigned before it. Names in
// preserve are assigned first and map to themselves.
//
// Names are processed most frequent first, ties in first-seen order, so
// the same input always yields the same mapping. A name that cannot be
// abbreviated to something strictly shorter than itself, or that holds
// glob metacharacters, stays literal.
//
// An abbreviation can still match a name processed after it; emitting
// rules sorted by pattern puts the longer, more specific abbreviation
// last, where it wins.
func Names(names []string, preserve []string) map[string]string {
	type freq struct {
		name  string
		count int
	}
	var order []*freq
	seen := make(map[string]*freq)
	for _, n := range names {
		f, ok := seen[n]
		if !ok {
			f = &freq{name: n}
			seen[n] = f
			order = append(order, f)
		}
		f.count++
	}
	slices.SortStableFunc(order, func(a, b *freq) int {
		return b.count - a.count
	})

	a := newAssignment()
	for _, p := range preserve {
		a.set(p, p)
	}
	for _, f := range order {
		a.set(f.name, a.abbreviate(f.name))
	}
	return a.result
}

// assignment keeps names in assignment order so collision lookups are
// deterministic.
type assignment struct {
	result map[string]string
	order  []string
}

func newAssignment() *assignment {
	return &assignment{result: make(map[string]string)}
}

func (a *assignment) set(name, short string) {
	if _, ok := a.result[name]; !ok {
		a.order = append(a.order, name)
	}
	a.result[name] = short
}

// conflict returns the first assigned name other than name that starts
// with prefix and ends with suffix.
func (a *assignment) conflict(name, prefix, suffix string) (string, bool) {
	for _, other := range a.order {
		if other != name && strings.HasPrefix(other, prefix) && strings.HasSuffix(other, suffix) {
			return other, true
		}
	}
	return "", false
}

func (a *assignment) abbreviate(name string) string {
	if strings.ContainsAny(name, globMeta) {
		return name
	}

	runes := []rune(name)
	start, end := 1, 0
	if len(runes) == 0 {
		return name
	}

	for start+1+end < len(runes) {
		prefix := string(runes[:start])
		suffix := string(runes[len(runes)-end:])

		other, ok := a.conflict(name, prefix, suffix)
		if !ok {
			return prefix + "*" + suffix
		}
		same := []rune(other)

		// How far the shared run extends from the front and the back.
		front := start
		for front < len(runes) && front < len(same) && runes[front] == same[front] {
			front++
		}
		back := end
		for back < len(runes) && back < len(same) && runes[len(runes)-back-1] == same[len(same)-back-1] {
			back++
		}

		if front <= back {
			start = min(front+1, len(runes))
		} else {
			end = min(back+1, len(runes))
		}
	}
	return name
}
