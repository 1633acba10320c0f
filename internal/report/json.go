// Package report renders diff and compression results as styled text
// and JSON.
package report

import (
	"encoding/json"
	"io"

	"github.com/unbound-force/shrinkowners/internal/compress"
	"github.com/unbound-force/shrinkowners/internal/diff"
)

// JSONDiff is the top-level JSON output of the diff command.
type JSONDiff struct {
	Version string          `json:"version"`
	Files   int             `json:"files"`
	Lost    int             `json:"lost"`
	Gained  int             `json:"gained"`
	Teams   []diff.TeamDiff `json:"teams"`
}

// WriteDiffJSON writes a diff report as formatted JSON.
func WriteDiffJSON(w io.Writer, r *diff.Report, version string) error {
	teams := r.Teams
	if teams == nil {
		teams = []diff.TeamDiff{}
	}
	return encode(w, JSONDiff{
		Version: version,
		Files:   r.Files,
		Lost:    r.Lost,
		Gained:  r.Gained,
		Teams:   teams,
	})
}

// JSONCompress is the JSON form of a compression summary.
type JSONCompress struct {
	Version string          `json:"version"`
	Stats   compress.Stats  `json:"stats"`
	Rules   []compress.Rule `json:"rules"`
}

// WriteCompressJSON writes the compression statistics and emitted rules.
func WriteCompressJSON(w io.Writer, res *compress.Result, version string) error {
	rules := res.Rules()
	if rules == nil {
		rules = []compress.Rule{}
	}
	return encode(w, JSONCompress{Version: version, Stats: res.Stats, Rules: rules})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
