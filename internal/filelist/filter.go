// Package filelist gathers the repository file list that ownership is
// computed over, either from a newline-separated list or by walking a
// directory tree.
package filelist

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides whether a path relative to the walk root is part of the
// file list.
type Filter struct {
	// Include patterns; when set, a file must match at least one.
	Include []string
	// Exclude patterns; a file matching any of them is dropped.
	Exclude []string
}

// Keep reports whether rel passes the include and exclude patterns.
func (f Filter) Keep(rel string) bool {
	rel = filepath.ToSlash(rel)

	if len(f.Include) > 0 {
		matched := false
		for _, pattern := range f.Include {
			if matchGlob(pattern, rel) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range f.Exclude {
		if matchGlob(pattern, rel) {
			return false
		}
	}
	return true
}

// prunes reports whether the directory rel, and everything below it, is
// excluded.
func (f Filter) prunes(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range f.Exclude {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if m, _ := doublestar.Match(prefix, rel); m {
				return true
			}
		}
	}
	return false
}

// matchGlob matches rel against a doublestar pattern. Patterns without a
// separator also match the base name, so "*.lock" excludes lock files at
// any depth.
func matchGlob(pattern, rel string) bool {
	if m, err := doublestar.Match(pattern, rel); err == nil && m {
		return true
	}
	if !strings.Contains(pattern, "/") {
		m, err := doublestar.Match(pattern, filepath.Base(rel))
		return err == nil && m
	}
	return false
}
