package ownership

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// cacheVersion is mixed into every cache key and stored in every cache
// file; bump it whenever the on-disk layout changes.
const cacheVersion = "ownership-tree/v1"

// TreeSchema is the JSON Schema (Draft 2020-12) of a cache file.
const TreeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Ownership tree cache",
  "type": "object",
  "required": ["version", "nodes"],
  "properties": {
    "version": { "type": "string" },
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/Node" }
    }
  },
  "$defs": {
    "Node": {
      "type": "object",
      "required": ["path", "file", "size", "ownership"],
      "properties": {
        "path": { "type": "string", "pattern": "^/" },
        "file": { "type": "boolean" },
        "size": { "type": "integer", "minimum": 0 },
        "children": {
          "type": "array",
          "items": { "type": "integer", "minimum": 1 }
        },
        "ownership": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/Share" }
        }
      }
    },
    "Share": {
      "type": "object",
      "required": ["team", "count", "key"],
      "properties": {
        "team": { "type": "string", "minLength": 1 },
        "count": { "type": "integer", "minimum": 0 },
        "key": { "type": "string" }
      }
    }
  }
}`

type cacheFile struct {
	Version string `json:"version"`
	Nodes   []Node `json:"nodes"`
}

var treeSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(TreeSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tree.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("tree.json")
})

// CacheKey hashes the sorted file list, the rule text and the cache
// layout version with CRC32.
func CacheKey(files []string, ruleText string) string {
	sorted := slices.Clone(files)
	slices.Sort(sorted)

	h := crc32.NewIEEE()
	io.WriteString(h, strings.Join(sorted, "\n"))
	io.WriteString(h, ruleText)
	io.WriteString(h, cacheVersion)
	return fmt.Sprintf("%08x", h.Sum32())
}

// CacheGlob matches cache file names. File list walks exclude it so a
// cache written inside the tree does not change the next run's key.
const CacheGlob = ".raw-ownership-*.json"

// CachePath returns the cache file location for key under dir.
func CachePath(dir, key string) string {
	return filepath.Join(dir, ".raw-ownership-"+key+".json")
}

// load reads a cache file. A missing file yields an fs.ErrNotExist error;
// anything unreadable, off-schema or failing Verify yields ErrCorruptCache.
func load(path string) (*Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sch, err := treeSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling tree schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}

	var cf cacheFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	if cf.Version != cacheVersion {
		return nil, fmt.Errorf("%w: version %q, want %q", ErrCorruptCache, cf.Version, cacheVersion)
	}

	t := newTree(cf.Nodes)
	if err := t.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}
	return t, nil
}

// store writes t atomically: a temporary file in the same directory is
// renamed over path.
func store(path string, t *Tree) error {
	raw, err := json.Marshal(cacheFile{Version: cacheVersion, Nodes: t.nodes})
	if err != nil {
		return fmt.Errorf("encoding tree: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".raw-ownership-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
