package rules

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// Ruleset is a compiled, immutable view of a File's path rules.
type Ruleset struct {
	rules []compiledRule
}

type compiledRule struct {
	source  CodePath
	teams   []string
	matcher Matcher
}

// Compile builds matchers for every path rule in f, in source order.
func Compile(f *File) (*Ruleset, error) {
	rs := &Ruleset{rules: make([]compiledRule, 0, len(f.Paths))}
	for _, p := range f.Paths {
		m, err := NewMatcher(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", p.Line, err)
		}

		teams := make([]string, 0, len(p.Owners))
		for _, o := range p.Owners {
			id := TeamID(o)
			if id == "" || slices.Contains(teams, id) {
				continue
			}
			teams = append(teams, id)
		}

		rs.rules = append(rs.rules, compiledRule{source: p, teams: teams, matcher: m})
	}
	return rs, nil
}

// Len returns the number of compiled path rules.
func (rs *Ruleset) Len() int {
	return len(rs.rules)
}

// Results is the outcome of resolving a file list against a Ruleset.
type Results struct {
	// Owners maps a team to the set of rooted files it owns.
	Owners map[string]map[string]struct{}

	// Owned maps a rooted file to its owning teams in rule order.
	// Files no rule matched are absent (implicitly owned by NoneTeam).
	Owned map[string][]string

	// Unmatched lists the rules that matched no file.
	Unmatched []CodePath
}

func newResults() *Results {
	return &Results{
		Owners: make(map[string]map[string]struct{}),
		Owned:  make(map[string][]string),
	}
}

func (r *Results) add(team string, files []string) {
	owned, ok := r.Owners[team]
	if !ok {
		owned = make(map[string]struct{}, len(files))
		r.Owners[team] = owned
	}
	for _, file := range files {
		if _, ok := owned[file]; ok {
			continue
		}
		owned[file] = struct{}{}
		r.Owned[file] = append(r.Owned[file], team)
	}
}

func (r *Results) remove(file string) {
	for _, team := range r.Owned[file] {
		files, ok := r.Owners[team]
		if !ok {
			continue
		}
		delete(files, file)
		if len(files) == 0 {
			delete(r.Owners, team)
		}
	}
	delete(r.Owned, file)
}

// Teams returns the owning teams in sorted order.
func (r *Results) Teams() []string {
	teams := make([]string, 0, len(r.Owners))
	for t := range r.Owners {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams
}

// OwnersOf returns the owners of a file, or nil when it is unowned.
func (r *Results) OwnersOf(file string) []string {
	return r.Owned[RootPath(file)]
}

// Find resolves the owners of files. Rules are applied in order and the
// last rule matching a file replaces, rather than merges with, whatever
// earlier rules assigned to it.
func (rs *Ruleset) Find(ctx context.Context, files []string) (*Results, error) {
	seen := make(map[string]struct{}, len(files))
	rooted := make([]string, 0, len(files))
	for _, f := range files {
		path := RootPath(f)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		rooted = append(rooted, path)
	}

	results := newResults()
	for _, rule := range rs.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found := filter(rooted, rule.matcher)
		if len(found) == 0 {
			results.Unmatched = append(results.Unmatched, rule.source)
			continue
		}

		for _, file := range found {
			results.remove(file)
		}
		for _, team := range rule.teams {
			results.add(team, found)
		}
	}

	return results, nil
}
