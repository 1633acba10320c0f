// Package diff measures how ownership moved between two CODEOWNERS files
// evaluated over the same file list.
package diff

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/unbound-force/shrinkowners/internal/ownership"
	"github.com/unbound-force/shrinkowners/internal/rules"
)

// TeamDiff is one team's ownership before and after.
type TeamDiff struct {
	Team     string   `json:"team"`
	Original int      `json:"original"`
	Test     int      `json:"test"`
	Lost     []string `json:"lost"`
	Gained   []string `json:"gained"`
}

// Report compares two ownership trees file by file.
type Report struct {
	Files  int        `json:"files"`
	Lost   int        `json:"lost"`
	Gained int        `json:"gained"`
	Teams  []TeamDiff `json:"teams"`
}

// LostShare is the fraction of file ownerships lost over all files.
func (r *Report) LostShare() float64 {
	return share(r.Lost, r.Files)
}

// GainedShare is the fraction of file ownerships gained over all files.
func (r *Report) GainedShare() float64 {
	return share(r.Gained, r.Files)
}

// Team returns the diff for a team identifier in any of its spellings.
func (r *Report) Team(name string) (*TeamDiff, bool) {
	name = rules.TeamID(name)
	for i := range r.Teams {
		if r.Teams[i].Team == name {
			return &r.Teams[i], true
		}
	}
	return nil, false
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Compare evaluates every file of original against test. Teams are
// ordered by gained share, largest first, then by name.
func Compare(original, test *ownership.Tree) (*Report, error) {
	files := original.Files()
	type sets struct {
		original map[string]bool
		test     map[string]bool
	}
	byTeam := make(map[string]*sets)
	get := func(team string) *sets {
		s, ok := byTeam[team]
		if !ok {
			s = &sets{original: make(map[string]bool), test: make(map[string]bool)}
			byTeam[team] = s
		}
		return s
	}

	for _, f := range files {
		before, err := owners(original, f)
		if err != nil {
			return nil, err
		}
		after, err := owners(test, f)
		if err != nil {
			return nil, err
		}
		for _, t := range before {
			get(t).original[f] = true
		}
		for _, t := range after {
			get(t).test[f] = true
		}
	}

	r := &Report{Files: len(files)}
	for team, s := range byTeam {
		td := TeamDiff{Team: team, Original: len(s.original), Test: len(s.test), Lost: []string{}, Gained: []string{}}
		for _, f := range files {
			switch {
			case s.original[f] && !s.test[f]:
				td.Lost = append(td.Lost, f)
			case s.test[f] && !s.original[f]:
				td.Gained = append(td.Gained, f)
			}
		}
		r.Lost += len(td.Lost)
		r.Gained += len(td.Gained)
		r.Teams = append(r.Teams, td)
	}
	slices.SortFunc(r.Teams, func(a, b TeamDiff) int {
		if len(a.Gained) != len(b.Gained) {
			return len(b.Gained) - len(a.Gained)
		}
		return strings.Compare(a.Team, b.Team)
	})
	return r, nil
}

// FileDiff is one file's owners before and after.
type FileDiff struct {
	Path     string   `json:"path"`
	Original []string `json:"original"`
	Test     []string `json:"test"`
}

// Changed reports whether the owner sets differ.
func (d FileDiff) Changed() bool {
	return !slices.Equal(d.Original, d.Test)
}

// Removed returns owners present only in the original.
func (d FileDiff) Removed() []string {
	var out []string
	for _, t := range d.Original {
		if !slices.Contains(d.Test, t) {
			out = append(out, t)
		}
	}
	return out
}

// Added returns owners present only in the test file.
func (d FileDiff) Added() []string {
	var out []string
	for _, t := range d.Test {
		if !slices.Contains(d.Original, t) {
			out = append(out, t)
		}
	}
	return out
}

// CompareFile compares a single file's owners.
func CompareFile(original, test *ownership.Tree, path string) (FileDiff, error) {
	d := FileDiff{Path: rules.RootPath(path)}
	var err error
	if d.Original, err = owners(original, path); err != nil {
		return FileDiff{}, err
	}
	if d.Test, err = owners(test, path); err != nil {
		return FileDiff{}, err
	}
	return d, nil
}

// owners returns the sorted owning teams of path, without the none team.
func owners(t *ownership.Tree, path string) ([]string, error) {
	teams, err := t.FileTeams(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(teams))
	for _, team := range teams {
		if team != rules.NoneTeam {
			out = append(out, team)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Trees builds the ownership trees of two CODEOWNERS texts over files.
// Only the original tree uses the cache; the test file is usually
// freshly generated.
func Trees(ctx context.Context, files []string, originalText, testText string, opts ownership.Options) (original, test *ownership.Tree, err error) {
	original, err = ownership.Build(ctx, files, originalText, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("original: %w", err)
	}
	opts.Cache = false
	test, err = ownership.Build(ctx, files, testText, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("test: %w", err)
	}
	return original, test, nil
}
