package compress

import (
	"fmt"
	"slices"
	"strings"

	"github.com/unbound-force/shrinkowners/internal/ownership"
	"github.com/unbound-force/shrinkowners/internal/rules"
)

// teamCount is one team's not-yet-delegated file count.
type teamCount struct {
	team  string
	count int
}

// segment is one printed path component. Wild segments are glob text
// ("*" or a shortened name); the rest are literal names.
type segment struct {
	text string
	wild bool
}

// entry is a materialized output rule. It references its ownership tree
// node by ID and is rebuilt from scratch by every recompute.
type entry struct {
	node     ownership.NodeID
	parent   *entry
	children []*entry
	position int

	// full is the node's ownership minus what children entries claim.
	full []teamCount
	// lossy is the subset of full dominant enough to state explicitly.
	lossy []string
	// visible is what the rule prints; emptied when an ancestor already
	// prints the same teams.
	visible []string
	// claimed records whether the bottom-up pass gave the entry owners.
	claimed bool

	segs []segment
}

func (e *entry) detach() {
	if e.parent == nil {
		return
	}
	siblings := e.parent.children
	for i, s := range siblings {
		if s == e {
			e.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			return
		}
	}
}

func (e *entry) walk(fn func(*entry)) {
	fn(e)
	for _, c := range e.children {
		c.walk(fn)
	}
}

// subtract removes n files of team from full. Taking away more than is
// left means the tree and the entries disagree.
func subtract(full []teamCount, team string, n int) ([]teamCount, error) {
	for i, tc := range full {
		if tc.team != team {
			continue
		}
		switch {
		case tc.count > n:
			full[i].count -= n
			return full, nil
		case tc.count == n:
			return append(full[:i], full[i+1:]...), nil
		default:
			return nil, fmt.Errorf("%w: subtracting %d from %d for team %s", ErrInvariant, n, tc.count, team)
		}
	}
	return nil, fmt.Errorf("%w: subtracting %d from absent team %s", ErrInvariant, n, team)
}

// lossyFilter keeps the teams with count > maxCount*lossy1 and
// count >= (sum-count)*lossy2.
func lossyFilter(full []teamCount, lossy1, lossy2 float64) []string {
	maxCount, sum := 0, 0
	for _, tc := range full {
		sum += tc.count
		maxCount = max(maxCount, tc.count)
	}

	var kept []string
	for _, tc := range full {
		c := float64(tc.count)
		if c > float64(maxCount)*lossy1 && c >= float64(sum-tc.count)*lossy2 {
			kept = append(kept, tc.team)
		}
	}
	return kept
}

func withoutNone(teams []string) []string {
	var out []string
	for _, t := range teams {
		if t != rules.NoneTeam {
			out = append(out, t)
		}
	}
	return out
}

// majority returns the most common non-empty visible team list among
// children; ties go to the earliest child.
func majority(children []*entry) []string {
	votes := make(map[string]int)
	first := make(map[string][]string)
	var best string
	for _, c := range children {
		if len(c.visible) == 0 {
			continue
		}
		key := signature(c.visible)
		if _, ok := first[key]; !ok {
			first[key] = c.visible
		}
		votes[key]++
		if votes[key] > votes[best] {
			best = key
		}
	}
	return slices.Clone(first[best])
}

// signature is an order-insensitive key for a team list.
func signature(teams []string) string {
	sorted := slices.Clone(teams)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}

func sameTeams(a, b []string) bool {
	return len(a) == len(b) && signature(a) == signature(b)
}
