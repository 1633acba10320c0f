package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/shrinkowners/internal/compress"
	"github.com/unbound-force/shrinkowners/internal/diff"
	"github.com/unbound-force/shrinkowners/internal/rules"
)

// maxDetail caps the per-team file listing in text output.
const maxDetail = 50

// WriteDiffText writes a per-team ownership change table followed by the
// total change. When team is set, the files that team lost and gained
// are listed after the table.
func WriteDiffText(w io.Writer, r *diff.Report, team string) error {
	s := DefaultStyles()

	if len(r.Teams) == 0 {
		fmt.Fprintln(w, s.Muted.Render("No owned files in either CODEOWNERS."))
	} else {
		rows := make([][]string, 0, len(r.Teams))
		for _, td := range r.Teams {
			rows = append(rows, []string{
				"#" + td.Team,
				strconv.Itoa(td.Original),
				changeCell(len(td.Lost), len(td.Gained)),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(s.Border).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return s.TableHeader
				}
				if col == 2 && row >= 0 && row < len(r.Teams) {
					td := r.Teams[row]
					return s.ChangeStyle(len(td.Lost), len(td.Gained))
				}
				return s.TableCell
			}).
			Headers("TEAM", "ORIGINAL", "DIFF").
			Rows(rows...)
		fmt.Fprintln(w, t)
	}

	fmt.Fprintf(w, "%s %s %s\n",
		s.Header.Render("Total ownership change:"),
		s.Lost.Render("-"+percent(r.LostShare())),
		s.Gained.Render("+"+percent(r.GainedShare())))

	if team == "" {
		return nil
	}
	td, ok := r.Team(team)
	if !ok {
		return fmt.Errorf("team %q owns no files in either CODEOWNERS", team)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("Team #%s ownership change:", td.Team)))
	if len(td.Lost) == 0 && len(td.Gained) == 0 {
		fmt.Fprintln(w, s.Muted.Render("    no change"))
		return nil
	}
	writeFiles(w, s.Lost, "-", td.Lost)
	writeFiles(w, s.Gained, "+", td.Gained)
	return nil
}

func writeFiles(w io.Writer, style lipgloss.Style, sign string, files []string) {
	for i, f := range files {
		if i == maxDetail {
			fmt.Fprintln(w, style.Render(fmt.Sprintf("  %s ... %d more", sign, len(files)-maxDetail)))
			return
		}
		fmt.Fprintln(w, style.Render(fmt.Sprintf("  %s %s", sign, f)))
	}
}

// changeCell formats "-lost/gained+" with fixed-width halves so the
// slashes line up.
func changeCell(lost, gained int) string {
	return fmt.Sprintf("%5s/%-5s", "-"+strconv.Itoa(lost), strconv.Itoa(gained)+"+")
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// WriteFileDiffText writes a single file's owners before and after.
func WriteFileDiffText(w io.Writer, d diff.FileDiff) error {
	s := DefaultStyles()
	if !d.Changed() {
		fmt.Fprintln(w, "Ownership hasn't changed!")
		return nil
	}
	fmt.Fprintln(w, s.Header.Render(d.Path))
	for _, t := range d.Removed() {
		fmt.Fprintln(w, s.Lost.Render("  - #"+t))
	}
	for _, t := range d.Added() {
		fmt.Fprintln(w, s.Gained.Render("  + #"+t))
	}
	return nil
}

// WriteCompressSummary writes the statistics of a compression run.
func WriteCompressSummary(w io.Writer, st compress.Stats) error {
	s := DefaultStyles()

	status := s.Pass.Render("PASS")
	if st.Bytes > st.Budget {
		status = s.Fail.Render("FAIL")
	}
	used := 0.0
	if st.Budget > 0 {
		used = float64(st.Bytes) / float64(st.Budget)
	}

	rows := [][]string{
		{"Tree nodes", strconv.Itoa(st.Nodes)},
		{"Iterations", strconv.Itoa(st.Iterations)},
		{"Entries kept", strconv.Itoa(st.Accepted)},
		{"Rolled back", strconv.Itoa(st.RolledBack)},
		{"Rules emitted", strconv.Itoa(st.Rules)},
		{"Bytes", fmt.Sprintf("%d / %d (%s) %s", st.Bytes, st.Budget, percent(used), status)},
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 0 {
				return s.SummaryValue.Bold(true)
			}
			return s.TableCell
		}).
		Headers("METRIC", "VALUE").
		Rows(rows...)
	fmt.Fprintln(w, t)
	return nil
}

// WriteLintText lists validation failures, then warnings.
func WriteLintText(w io.Writer, failures, warnings []rules.Failure) error {
	s := DefaultStyles()
	for _, f := range failures {
		fmt.Fprintf(w, "%s %s\n", s.Fail.Render("error"), f)
	}
	for _, f := range warnings {
		fmt.Fprintf(w, "%s %s\n", s.Muted.Render("warn "), f)
	}
	if len(failures) == 0 && len(warnings) == 0 {
		fmt.Fprintln(w, s.Pass.Render("CODEOWNERS looks good"))
		return nil
	}
	fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf(
		"%d error(s), %d warning(s)", len(failures), len(warnings))))
	return nil
}
