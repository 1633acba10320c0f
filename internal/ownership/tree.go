// Package ownership builds the ownership tree: the file list arranged as a
// directory trie whose nodes carry per-team file counts aggregated from
// the resolved owners of every file below them.
//
// A Tree is built once and never mutated afterwards. Nodes live in a flat
// arena and refer to each other by NodeID.
package ownership

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/unbound-force/shrinkowners/internal/rules"
)

// Sentinel errors for tree construction and lookup.
var (
	// ErrUnknownPath indicates a lookup for a file that is not in the tree.
	ErrUnknownPath = errors.New("unknown path")
	// ErrInvariant indicates a broken aggregation invariant.
	ErrInvariant = errors.New("ownership invariant violated")
	// ErrCorruptCache indicates a cache file that cannot be trusted.
	ErrCorruptCache = errors.New("corrupt ownership cache")
)

// NodeID indexes a node in a Tree's arena.
type NodeID int32

// Share is one team's portion of a node.
type Share struct {
	// Team is the canonical team identifier, or rules.NoneTeam.
	Team string `json:"team"`

	// Count is the number of files below the node owned by Team.
	Count int `json:"count"`

	// Key fingerprints the set of files behind Count. Two shares of
	// the same node have equal keys exactly when they cover the same
	// files.
	Key string `json:"key"`
}

// Ownership lists shares in first-appearance order.
type Ownership []Share

// Get returns the share of team.
func (o Ownership) Get(team string) (Share, bool) {
	for _, s := range o {
		if s.Team == team {
			return s, true
		}
	}
	return Share{}, false
}

// Teams returns the team identifiers in order.
func (o Ownership) Teams() []string {
	teams := make([]string, len(o))
	for i, s := range o {
		teams[i] = s.Team
	}
	return teams
}

// OnlyNone reports whether every file below the node is unowned.
func (o Ownership) OnlyNone() bool {
	return len(o) == 1 && o[0].Team == rules.NoneTeam
}

// HasVary reports whether the shares cover more than one distinct set of
// files, i.e. whether ownership is not uniform below the node.
func (o Ownership) HasVary() bool {
	first := ""
	for _, s := range o {
		if s.Count == 0 || s.Key == "" {
			continue
		}
		if first == "" {
			first = s.Key
			continue
		}
		if s.Key != first {
			return true
		}
	}
	return false
}

// Node is a file or directory. Directory paths end with "/"; the root
// path is "/".
type Node struct {
	Path      string    `json:"path"`
	IsFile    bool      `json:"file"`
	Size      int       `json:"size"`
	Children  []NodeID  `json:"children,omitempty"`
	Ownership Ownership `json:"ownership"`
}

// Name returns the last path segment without a trailing slash.
func (n *Node) Name() string {
	p := strings.TrimSuffix(n.Path, "/")
	return p[strings.LastIndex(p, "/")+1:]
}

// Segments splits the path into its names. The root has none.
func (n *Node) Segments() []string {
	p := strings.Trim(n.Path, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Tree is an immutable ownership tree.
type Tree struct {
	nodes []Node
	files map[string]NodeID
}

func newTree(nodes []Node) *Tree {
	t := &Tree{nodes: nodes, files: make(map[string]NodeID)}
	for i := range nodes {
		if nodes[i].IsFile {
			t.files[nodes[i].Path] = NodeID(i)
		}
	}
	return t
}

// Root returns the root node's ID.
func (t *Tree) Root() NodeID {
	return 0
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns a node. Callers must not modify it.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// FileOwnership returns the ownership of a single file. The path may be
// given with or without its leading "/". Asking for a file that was not
// in the list the tree was built from is a caller bug and returns
// ErrUnknownPath.
func (t *Tree) FileOwnership(path string) (Ownership, error) {
	id, ok := t.files[rules.RootPath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return t.nodes[id].Ownership, nil
}

// FileTeams returns the owning teams of a file, including rules.NoneTeam
// for unowned files.
func (t *Tree) FileTeams(path string) ([]string, error) {
	o, err := t.FileOwnership(path)
	if err != nil {
		return nil, err
	}
	return o.Teams(), nil
}

// Files returns the rooted paths of every file node in tree order.
func (t *Tree) Files() []string {
	var out []string
	t.walk(t.Root(), func(n *Node) {
		if n.IsFile {
			out = append(out, n.Path)
		}
	})
	return out
}

func (t *Tree) walk(id NodeID, fn func(*Node)) {
	n := &t.nodes[id]
	fn(n)
	for _, c := range n.Children {
		t.walk(c, fn)
	}
}

// Verify checks the aggregation invariant: every directory's size and
// per-team counts equal the sums over its children, no team counts more
// files than its node holds, and every file carries distinct teams with
// count 1, none only on its own.
func (t *Tree) Verify() error {
	if len(t.nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrInvariant)
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.IsFile {
			if n.Size != 1 || len(n.Children) != 0 || len(n.Ownership) == 0 {
				return fmt.Errorf("%w: malformed file node %s", ErrInvariant, n.Path)
			}
			seen := make(map[string]bool, len(n.Ownership))
			for _, s := range n.Ownership {
				if s.Count != 1 {
					return fmt.Errorf("%w: file %s has count %d for %s", ErrInvariant, n.Path, s.Count, s.Team)
				}
				if seen[s.Team] {
					return fmt.Errorf("%w: file %s lists %s twice", ErrInvariant, n.Path, s.Team)
				}
				if s.Team == rules.NoneTeam && len(n.Ownership) > 1 {
					return fmt.Errorf("%w: file %s is owned by %s alongside other teams", ErrInvariant, n.Path, s.Team)
				}
				seen[s.Team] = true
			}
			continue
		}

		children := make([]*Node, 0, len(n.Children))
		size := 0
		for _, c := range n.Children {
			if int(c) <= i || int(c) >= len(t.nodes) {
				return fmt.Errorf("%w: %s has out of order child %d", ErrInvariant, n.Path, c)
			}
			child := &t.nodes[c]
			children = append(children, child)
			size += child.Size
		}
		if size != n.Size {
			return fmt.Errorf("%w: %s size %d, children sum %d", ErrInvariant, n.Path, n.Size, size)
		}

		want := aggregate(children)
		if len(want) != len(n.Ownership) {
			return fmt.Errorf("%w: %s has %d teams, children have %d", ErrInvariant, n.Path, len(n.Ownership), len(want))
		}
		for _, s := range want {
			if s.Count > n.Size {
				return fmt.Errorf("%w: %s team %s owns %d of %d files", ErrInvariant, n.Path, s.Team, s.Count, n.Size)
			}
			got, ok := n.Ownership.Get(s.Team)
			if !ok || got.Count != s.Count || got.Key != s.Key {
				return fmt.Errorf("%w: %s team %s count %d, children sum %d", ErrInvariant, n.Path, s.Team, got.Count, s.Count)
			}
		}
	}
	return nil
}

// aggregate sums children's shares team by team, fingerprinting each team
// by the keys of the children that contributed to it.
func aggregate(children []*Node) Ownership {
	var out Ownership
	index := make(map[string]int)
	hashes := make(map[string][]string)
	for _, c := range children {
		for _, s := range c.Ownership {
			i, ok := index[s.Team]
			if !ok {
				i = len(out)
				index[s.Team] = i
				out = append(out, Share{Team: s.Team})
			}
			out[i].Count += s.Count
			hashes[s.Team] = append(hashes[s.Team], s.Key)
		}
	}
	for i := range out {
		out[i].Key = fingerprint(hashes[out[i].Team]...)
	}
	return out
}

func fingerprint(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
