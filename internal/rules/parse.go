// Package rules implements the ownership rule file format: parsing team
// declarations and path rules, compiling path patterns into matchers, and
// resolving the owners of a file list with last-match-wins semantics.
package rules

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// NoneTeam is the sentinel owner of files that no rule matches.
const NoneTeam = "none"

// Team is a team declaration ("@name member1 member2").
type Team struct {
	// Name is the declared identifier with its first "@" stripped.
	Name string `json:"name"`

	// Members lists the declared members. Not used for matching.
	Members []string `json:"members,omitempty"`

	// Line is the 1-based source line.
	Line int `json:"line"`
}

// CodePath is one path rule ("pattern owner1 owner2").
type CodePath struct {
	// Pattern is the path pattern with any trailing "**/*" removed.
	Pattern string `json:"pattern"`

	// Owners holds the owner tokens exactly as written.
	Owners []string `json:"owners"`

	// Line is the 1-based source line.
	Line int `json:"line"`
}

// File is a parsed rule file. Paths keep their source order, which is
// load-bearing for last-match-wins resolution.
type File struct {
	Teams []Team     `json:"teams"`
	Paths []CodePath `json:"paths"`
}

// Parse reads a rule file.
//
// Semantics:
//   - blank lines and lines starting with "#" are ignored
//   - lines starting with "@" declare a team
//   - any other line is a path rule
func Parse(r io.Reader) (*File, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	f := &File{}
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}

		switch text[0] {
		case '#':
			continue
		case '@':
			f.Teams = append(f.Teams, parseTeam(text, line))
		default:
			f.Paths = append(f.Paths, parseCodePath(text, line))
		}
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan rules: %w", err)
	}

	return f, nil
}

// ParseString parses a rule file held in memory.
func ParseString(src string) (*File, error) {
	return Parse(strings.NewReader(src))
}

func parseTeam(text string, line int) Team {
	fields := strings.Fields(text)
	return Team{
		Name:    strings.TrimPrefix(fields[0], "@"),
		Members: fields[1:],
		Line:    line,
	}
}

func parseCodePath(text string, line int) CodePath {
	fields := strings.Fields(text)
	pattern := fields[0]
	if trimmed, ok := strings.CutSuffix(pattern, "**/*"); ok {
		pattern = trimmed
	}
	return CodePath{
		Pattern: pattern,
		Owners:  fields[1:],
		Line:    line,
	}
}

// TeamID returns the canonical identifier for an owner token or team
// declaration name. "@@web", "@web" and "#web" all denote team "web".
func TeamID(token string) string {
	return strings.TrimLeft(token, "@#")
}

// RootPath converts a file list entry into the rooted form rules are
// matched against: "a/b" and "./a/b" both become "/a/b".
func RootPath(file string) string {
	switch {
	case strings.HasPrefix(file, "/"):
		return file
	case strings.HasPrefix(file, "./"):
		return file[1:]
	default:
		return "/" + file
	}
}
