package ownership

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/unbound-force/shrinkowners/internal/rules"
)

// Options configures Build.
type Options struct {
	// Workers is the number of parallel matchers. Zero or less means
	// one fewer than the available parallelism, and at least one.
	Workers int

	// Cache enables reading and writing the on-disk tree cache.
	Cache bool

	// CacheDir is where cache files live. Defaults to ".".
	CacheDir string

	// Logger receives progress and recoverable errors. Defaults to
	// log.Default().
	Logger *log.Logger
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = max(runtime.GOMAXPROCS(0)-1, 1)
	}
	if o.CacheDir == "" {
		o.CacheDir = "."
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

// Build resolves the owners of files under ruleText and returns the
// aggregated ownership tree.
//
// With opts.Cache set, a tree cached for the same files and rule text is
// returned without recomputation; a missing or corrupt cache falls back
// to a full build whose result is then persisted on a best-effort basis.
func Build(ctx context.Context, files []string, ruleText string, opts Options) (*Tree, error) {
	opts.applyDefaults()
	logger := opts.Logger
	files = unique(files)

	var cachePath string
	if opts.Cache {
		cachePath = CachePath(opts.CacheDir, CacheKey(files, ruleText))
		t, err := load(cachePath)
		switch {
		case err == nil:
			logger.Info("using cached ownership tree", "path", cachePath)
			return t, nil
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("no ownership cache", "path", cachePath)
		default:
			logger.Warn("ignoring ownership cache", "path", cachePath, "err", err)
		}
	}

	parsed, err := rules.ParseString(ruleText)
	if err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	// Workers compile their own copies; this only rejects bad patterns
	// before any worker starts.
	if _, err := rules.Compile(parsed); err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	logger.Info("matching files ownership", "files", len(files), "rules", len(parsed.Paths), "workers", opts.Workers)
	owned, err := matchParallel(ctx, parsed, files, opts.Workers)
	if err != nil {
		return nil, err
	}

	t := assemble(files, owned)
	logger.Info("ownership matched", "nodes", t.Len())

	if opts.Cache {
		if err := store(cachePath, t); err != nil {
			logger.Warn("could not write ownership cache", "path", cachePath, "err", err)
		}
	}

	return t, nil
}

// unique drops repeated entries, comparing rooted paths and keeping the
// first spelling.
func unique(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		path := rules.RootPath(f)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, f)
	}
	return out
}

// trie is the mutable intermediate used while arranging the file list.
// Directory children are keyed "name/", files "name".
type trie struct {
	children map[string]*trie
}

func (t *trie) insert(path string) {
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	cur := t
	for i, seg := range segs {
		if seg == "" {
			continue
		}
		key := seg
		if i < len(segs)-1 {
			key += "/"
		}
		next, ok := cur.children[key]
		if !ok {
			next = &trie{children: make(map[string]*trie)}
			cur.children[key] = next
		}
		cur = next
	}
}

// assemble lays the trie out in the arena in pre-order, then fills in
// ownership bottom-up.
func assemble(files []string, owned map[string][]string) *Tree {
	root := &trie{children: make(map[string]*trie)}
	for _, f := range files {
		root.insert(rules.RootPath(f))
	}

	var nodes []Node
	var place func(t *trie, path string, isFile bool) NodeID
	place = func(t *trie, path string, isFile bool) NodeID {
		id := NodeID(len(nodes))
		nodes = append(nodes, Node{Path: path, IsFile: isFile})

		keys := make([]string, 0, len(t.children))
		for k := range t.children {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		children := make([]NodeID, 0, len(keys))
		for _, k := range keys {
			children = append(children, place(t.children[k], path+k, !strings.HasSuffix(k, "/")))
		}
		nodes[id].Children = children
		return id
	}
	place(root, "/", false)

	var fill func(id NodeID)
	fill = func(id NodeID) {
		n := &nodes[id]
		if n.IsFile {
			n.Size = 1
			n.Ownership = leafOwnership(n.Path, owned[n.Path])
			return
		}
		children := make([]*Node, 0, len(n.Children))
		for _, c := range n.Children {
			fill(c)
			children = append(children, &nodes[c])
			n.Size += nodes[c].Size
		}
		n.Ownership = aggregate(children)
	}
	fill(0)

	return newTree(nodes)
}

func leafOwnership(path string, teams []string) Ownership {
	key := fingerprint(path)
	if len(teams) == 0 {
		return Ownership{{Team: rules.NoneTeam, Count: 1, Key: key}}
	}
	o := make(Ownership, 0, len(teams))
	for _, team := range teams {
		o = append(o, Share{Team: team, Count: 1, Key: key})
	}
	return o
}
