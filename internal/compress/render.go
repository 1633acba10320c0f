package compress

import (
	"fmt"
	"slices"
	"strings"
)

// Rule is one emitted CODEOWNERS line.
type Rule struct {
	Pattern string   `json:"pattern"`
	Owners  []string `json:"owners"`
}

// Result is the outcome of Compress.
type Result struct {
	Stats Stats

	c *compressor
}

// entries returns every materialized entry sorted by printed path.
func (r *Result) entries() []*entry {
	if r.c.root == nil {
		return nil
	}
	var all []*entry
	r.c.root.walk(func(e *entry) { all = append(all, e) })
	slices.SortStableFunc(all, comparePrinted)
	return all
}

// Rules returns the emitted rules in output order.
func (r *Result) Rules() []Rule {
	var out []Rule
	for _, e := range r.entries() {
		if len(e.visible) == 0 {
			continue
		}
		owners := make([]string, len(e.visible))
		for i, t := range e.visible {
			owners[i] = "#" + t
		}
		out = append(out, Rule{Pattern: r.c.pattern(e), Owners: owners})
	}
	return out
}

// Render returns the CODEOWNERS text. Its length is Stats.Bytes, which
// never exceeds the budget.
func (r *Result) Render() string {
	var b strings.Builder
	for _, e := range r.entries() {
		b.WriteString(r.c.line(e))
	}
	return b.String()
}

// RenderDebug is Render with a comment above each materialized entry.
// The comments are not counted against the budget.
//
// Each comment gives the entry's materialization position and
// the fate of every team in its subtree: kept, lossy (dropped by the
// lossy filter) or narrowed (fully delegated to child entries).
func (r *Result) RenderDebug() string {
	var b strings.Builder
	for _, e := range r.entries() {
		node := r.c.tree.Node(e.node)
		fmt.Fprintf(&b, "# [%d] %s files=%d", e.position, node.Path, node.Size)
		for _, s := range node.Ownership {
			fmt.Fprintf(&b, " %s:%s", s.Team, r.fate(e, s.Team))
		}
		b.WriteByte('\n')
		b.WriteString(r.c.line(e))
	}
	return b.String()
}

func (r *Result) fate(e *entry, team string) string {
	if slices.Contains(e.lossy, team) {
		if slices.Contains(e.visible, team) {
			return "kept"
		}
		return "inherited"
	}
	for _, tc := range e.full {
		if tc.team == team {
			return "lossy"
		}
	}
	return "narrowed"
}
