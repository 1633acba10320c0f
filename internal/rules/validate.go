package rules

import "fmt"

// Validate checks a parsed rule file before any matching happens.
//
// Failures:
//   - a pattern that does not compile
//   - an owner token that is empty once its "@"/"#" prefix is removed
//   - an owner referencing an undeclared team (only when the file
//     declares teams at all; generated files carry no declarations)
//   - a team declared twice
//
// It returns nil or a *ValidationError.
func Validate(f *File) error {
	var failures []Failure

	declared := make(map[string]int, len(f.Teams))
	for _, t := range f.Teams {
		id := TeamID(t.Name)
		if id == "" {
			failures = append(failures, Failure{Line: t.Line, Message: fmt.Sprintf("malformed team declaration %q", t.Name)})
			continue
		}
		if prev, ok := declared[id]; ok {
			failures = append(failures, Failure{Line: t.Line, Message: fmt.Sprintf("team %q already declared on line %d", id, prev)})
			continue
		}
		declared[id] = t.Line
	}

	for _, p := range f.Paths {
		if _, err := NewMatcher(p.Pattern); err != nil {
			failures = append(failures, Failure{Line: p.Line, Message: err.Error()})
		}
		for _, o := range p.Owners {
			id := TeamID(o)
			if id == "" {
				failures = append(failures, Failure{Line: p.Line, Message: fmt.Sprintf("malformed owner %q", o)})
				continue
			}
			if len(declared) > 0 {
				if _, ok := declared[id]; !ok {
					failures = append(failures, Failure{Line: p.Line, Message: fmt.Sprintf("owner %q references undeclared team", o)})
				}
			}
		}
	}

	if len(failures) > 0 {
		return &ValidationError{Failures: failures}
	}
	return nil
}

// Diagnose reports non-fatal findings for a rule file resolved against a
// complete file list: rules that matched nothing and declared teams that
// no rule references.
func Diagnose(f *File, res *Results) []Failure {
	var out []Failure
	for _, p := range res.Unmatched {
		out = append(out, Failure{Line: p.Line, Message: fmt.Sprintf("no files matched for pattern %q", p.Pattern)})
	}

	referenced := make(map[string]bool)
	for _, p := range f.Paths {
		for _, o := range p.Owners {
			referenced[TeamID(o)] = true
		}
	}
	for _, t := range f.Teams {
		if !referenced[TeamID(t.Name)] {
			out = append(out, Failure{Line: t.Line, Message: fmt.Sprintf("team %q is never referenced", TeamID(t.Name))})
		}
	}
	return out
}
