// Package compress turns an ownership tree into a CODEOWNERS file that
// fits a byte budget, spending bytes on the largest subtrees first.
package compress

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/shrinkowners/internal/ownership"
	"github.com/unbound-force/shrinkowners/internal/rules"
	"github.com/unbound-force/shrinkowners/internal/shorten"
)

// ErrInvariant is returned when the materialized entries claim more
// files than the tree says a node holds.
var ErrInvariant = errors.New("compression invariant violated")

// Defaults used when the caller does not choose.
const (
	DefaultLossy1 = 0.8
	DefaultLossy2 = 0.5
	DefaultBudget = 100000
)

// Options configures a compression run.
type Options struct {
	// Lossy1 drops teams whose count is not above Lossy1 times the
	// largest count in the same entry. 0 keeps every team.
	Lossy1 float64
	// Lossy2 drops teams whose count is below Lossy2 times the sum of
	// the other teams' counts.
	Lossy2 float64
	// Budget is the maximum output size in bytes.
	Budget int
	// UseGlobs prints intermediate directories as "*" and abbreviates
	// names into prefix*suffix globs.
	UseGlobs bool
	// Logger receives per-iteration debug output. Nil means log.Default().
	Logger *log.Logger
}

// DefaultOptions returns the default lossy thresholds and budget.
func DefaultOptions() Options {
	return Options{Lossy1: DefaultLossy1, Lossy2: DefaultLossy2, Budget: DefaultBudget}
}

// Stats summarizes a compression run.
type Stats struct {
	Nodes      int `json:"nodes"`
	Iterations int `json:"iterations"`
	Accepted   int `json:"accepted"`
	RolledBack int `json:"rolled_back"`
	Rules      int `json:"rules"`
	Bytes      int `json:"bytes"`
	Budget     int `json:"budget"`
}

type compressor struct {
	tree    *ownership.Tree
	opts    Options
	logger  *log.Logger
	parents []ownership.NodeID
	root    *entry
}

// Compress materializes entries largest subtree first, keeping each one
// only while the rendered output stays within opts.Budget.
func Compress(tree *ownership.Tree, opts Options) (*Result, error) {
	if opts.Budget < 0 {
		return nil, fmt.Errorf("budget must not be negative, got %d", opts.Budget)
	}
	c := &compressor{tree: tree, opts: opts, logger: opts.Logger}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.parents = make([]ownership.NodeID, tree.Len())
	for i := range tree.Len() {
		for _, child := range tree.Node(ownership.NodeID(i)).Children {
			c.parents[child] = ownership.NodeID(i)
		}
	}

	stats := Stats{Nodes: tree.Len(), Budget: opts.Budget}
	q := &queue{}
	root := tree.Root()
	q.push(root, tree.Node(root).Size, nil)

	for q.Len() > 0 {
		it := q.pop()
		stats.Iterations++
		node := tree.Node(it.node)

		e := &entry{node: it.node, parent: it.parent, position: stats.Accepted}
		if it.parent == nil {
			c.root = e
		} else {
			it.parent.children = append(it.parent.children, e)
		}

		if err := c.recompute(); err != nil {
			return nil, err
		}
		if size := c.size(); size > opts.Budget {
			if it.parent == nil {
				c.root = nil
			} else {
				e.detach()
			}
			if err := c.recompute(); err != nil {
				return nil, err
			}
			stats.RolledBack++
			c.logger.Debug("rolled back", "path", node.Path, "size", size, "budget", opts.Budget)
			continue
		}
		stats.Accepted++
		c.logger.Debug("materialized", "path", node.Path, "files", node.Size, "position", e.position)

		if !node.Ownership.HasVary() {
			continue
		}
		for _, child := range node.Children {
			child = c.unwrap(child)
			n := tree.Node(child)
			if n.Ownership.OnlyNone() {
				continue
			}
			q.push(child, n.Size, e)
		}
	}

	r := &Result{c: c}
	stats.Rules = len(r.Rules())
	stats.Bytes = c.size()
	r.Stats = stats
	return r, nil
}

// unwrap descends through directories that hold exactly one child.
func (c *compressor) unwrap(id ownership.NodeID) ownership.NodeID {
	for {
		n := c.tree.Node(id)
		if n.IsFile || len(n.Children) != 1 {
			return id
		}
		id = n.Children[0]
	}
}

// recompute rebuilds every entry's ownership and printed path from the
// current set of entries.
func (c *compressor) recompute() error {
	if c.root == nil {
		return nil
	}
	if err := c.bottomUp(c.root); err != nil {
		return err
	}
	c.topDown(c.root, nil)
	return nil
}

func (c *compressor) bottomUp(e *entry) error {
	for _, child := range e.children {
		if err := c.bottomUp(child); err != nil {
			return err
		}
	}

	node := c.tree.Node(e.node)
	full := make([]teamCount, 0, len(node.Ownership))
	for _, s := range node.Ownership {
		if s.Count > 0 {
			full = append(full, teamCount{team: s.Team, count: s.Count})
		}
	}
	for _, child := range e.children {
		for _, s := range c.tree.Node(child.node).Ownership {
			if s.Count == 0 || (s.Team == rules.NoneTeam && !child.claimed) {
				continue
			}
			var err error
			if full, err = subtract(full, s.Team, s.Count); err != nil {
				return fmt.Errorf("%s: %w", node.Path, err)
			}
		}
	}

	e.full = full
	e.lossy = lossyFilter(full, c.opts.Lossy1, c.opts.Lossy2)
	e.visible = withoutNone(e.lossy)
	if len(e.lossy) == 0 {
		e.visible = majority(e.children)
	}
	e.claimed = len(e.visible) > 0
	return nil
}

// topDown clears entries that repeat the nearest printing ancestor and
// assigns printed paths.
func (c *compressor) topDown(e *entry, inherited []string) {
	if len(inherited) > 0 && sameTeams(e.visible, inherited) {
		e.visible = nil
	}
	next := inherited
	if len(e.visible) > 0 {
		next = e.visible
	}

	c.printChildren(e)
	for _, child := range e.children {
		c.topDown(child, next)
	}
}

func (c *compressor) printChildren(e *entry) {
	if len(e.children) == 0 {
		return
	}
	if !c.opts.UseGlobs {
		for _, child := range e.children {
			segs := c.tree.Node(child.node).Segments()
			child.segs = make([]segment, len(segs))
			for i, s := range segs {
				child.segs[i] = segment{text: s}
			}
		}
		return
	}

	names := make([]string, 0, len(e.children))
	materialized := make(map[string]bool, len(e.children))
	for _, child := range e.children {
		name := c.tree.Node(child.node).Name()
		names = append(names, name)
		materialized[name] = true
	}
	var preserve []string
	kept := make(map[string]bool)
	for _, child := range e.children {
		for _, sibling := range c.tree.Node(c.parents[child.node]).Children {
			name := c.tree.Node(sibling).Name()
			if !materialized[name] && !kept[name] {
				kept[name] = true
				preserve = append(preserve, name)
			}
		}
	}
	short := shorten.Names(names, preserve)

	depth := len(e.segs)
	for _, child := range e.children {
		node := c.tree.Node(child.node)
		segs := node.Segments()
		child.segs = append(make([]segment, 0, len(segs)), e.segs...)
		for range segs[depth : len(segs)-1] {
			child.segs = append(child.segs, segment{text: "*", wild: true})
		}
		name := node.Name()
		child.segs = append(child.segs, segment{text: short[name], wild: short[name] != name})
	}
}

// pattern renders the entry's printed path. Literal segments are escaped
// once any segment is a glob.
func (c *compressor) pattern(e *entry) string {
	glob := false
	for _, s := range e.segs {
		glob = glob || s.wild
	}
	var b strings.Builder
	for _, s := range e.segs {
		b.WriteByte('/')
		if glob && !s.wild {
			b.WriteString(escape(s.text))
		} else {
			b.WriteString(s.text)
		}
	}
	if !c.tree.Node(e.node).IsFile {
		b.WriteByte('/')
	}
	return b.String()
}

// comparePrinted orders entries by printed path one segment at a time,
// ignoring escapes. An entry sorts after its ancestors, and a file
// after any sibling whose name is a prefix of its own, so the more
// specific prefix rule comes later and wins.
func comparePrinted(a, b *entry) int {
	return slices.CompareFunc(a.segs, b.segs, func(x, y segment) int {
		return strings.Compare(x.text, y.text)
	})
}

func (c *compressor) line(e *entry) string {
	if len(e.visible) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(c.pattern(e))
	for _, t := range e.visible {
		b.WriteString(" #")
		b.WriteString(t)
	}
	b.WriteByte('\n')
	return b.String()
}

func (c *compressor) size() int {
	if c.root == nil {
		return 0
	}
	n := 0
	c.root.walk(func(e *entry) {
		n += len(c.line(e))
	})
	return n
}

func escape(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
