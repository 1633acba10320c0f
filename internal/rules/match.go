package rules

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher reports whether a rooted file path ("/dir/file.go") is covered
// by a pattern.
type Matcher interface {
	Match(path string) bool
}

// NewMatcher compiles a rule pattern.
//
// Patterns containing "*" use glob semantics; a glob without "/" that is
// not already "**"-anchored matches at any depth. Other patterns fall back
// to substring containment, or to a path prefix test when they start
// with "/".
func NewMatcher(pattern string) (Matcher, error) {
	if !strings.Contains(pattern, "*") {
		if strings.HasPrefix(pattern, "/") {
			return prefixMatcher(pattern), nil
		}
		return substringMatcher(pattern), nil
	}

	glob := pattern
	if !strings.Contains(glob, "/") && !strings.HasPrefix(glob, "**") {
		glob = "**/" + glob
	}
	glob = strings.TrimPrefix(glob, "/")
	if strings.HasSuffix(glob, "/") {
		// Directory globs cover everything below the directory.
		glob += "**"
	}

	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	return globMatcher(glob), nil
}

// Match returns the subset of files covered by pattern, preserving order.
func Match(files []string, pattern string) ([]string, error) {
	m, err := NewMatcher(pattern)
	if err != nil {
		return nil, err
	}
	return filter(files, m), nil
}

func filter(files []string, m Matcher) []string {
	var found []string
	for _, f := range files {
		if m.Match(f) {
			found = append(found, f)
		}
	}
	return found
}

type prefixMatcher string

func (p prefixMatcher) Match(path string) bool {
	return strings.HasPrefix(path, string(p))
}

type substringMatcher string

func (s substringMatcher) Match(path string) bool {
	return strings.Contains(path, string(s))
}

// globMatcher holds a validated doublestar pattern without a leading "/".
type globMatcher string

func (g globMatcher) Match(path string) bool {
	ok, err := doublestar.Match(string(g), strings.TrimPrefix(path, "/"))
	return err == nil && ok
}
