package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/shrinkowners/internal/diff"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	NextTeam key.Binding
	PrevTeam key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextTeam, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.NextTeam, k.PrevTeam},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	NextTeam: key.NewBinding(key.WithKeys("tab", "n"), key.WithHelp("tab/n", "next team")),
	PrevTeam: key.NewBinding(key.WithKeys("shift+tab", "p"), key.WithHelp("p", "prev team")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	tuiBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	lostStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	gainedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
)

// diffModel is the Bubble Tea model for browsing a diff report.
type diffModel struct {
	report   *diff.Report
	selected int
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
}

func newDiffModel(r *diff.Report, team string) diffModel {
	m := diffModel{
		report: r,
		help:   help.New(),
		keys:   defaultKeyMap,
	}
	for i, td := range r.Teams {
		if team != "" && td.Team == team {
			m.selected = i
		}
	}
	return m
}

// renderDiffContent lays out the team table with the selected team
// highlighted, followed by that team's lost and gained files.
func renderDiffContent(r *diff.Report, selected int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("Ownership diff: %d file(s), %d team(s), -%d/+%d",
			r.Files, len(r.Teams), r.Lost, r.Gained)))
	sb.WriteString("\n\n")

	if len(r.Teams) == 0 {
		sb.WriteString(statusStyle.Render("No owned files in either CODEOWNERS."))
		sb.WriteString("\n")
		return sb.String()
	}

	rows := make([][]string, 0, len(r.Teams))
	for _, td := range r.Teams {
		rows = append(rows, []string{
			"#" + td.Team,
			strconv.Itoa(td.Original),
			strconv.Itoa(td.Test),
			fmt.Sprintf("-%d", len(td.Lost)),
			fmt.Sprintf("+%d", len(td.Gained)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tuiBorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tuiHeaderStyle
			}
			if row == selected {
				return selectedStyle
			}
			switch col {
			case 3:
				return lostStyle
			case 4:
				return gainedStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("TEAM", "ORIGINAL", "TEST", "LOST", "GAINED").
		Rows(rows...)

	sb.WriteString(t.String())
	sb.WriteString("\n\n")

	if selected < 0 || selected >= len(r.Teams) {
		return sb.String()
	}
	td := r.Teams[selected]
	sb.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("=== #%s ===", td.Team)))
	sb.WriteString("\n")
	if len(td.Lost) == 0 && len(td.Gained) == 0 {
		sb.WriteString(statusStyle.Render("    no change"))
		sb.WriteString("\n")
	}
	for _, f := range td.Lost {
		sb.WriteString(lostStyle.Render("  - " + f))
		sb.WriteString("\n")
	}
	for _, f := range td.Gained {
		sb.WriteString(gainedStyle.Render("  + " + f))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m diffModel) Init() tea.Cmd {
	return nil
}

func (m diffModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(renderDiffContent(m.report, m.selected))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.NextTeam):
			m.selectTeam(1)
		case key.Matches(msg, m.keys.PrevTeam):
			m.selectTeam(-1)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *diffModel) selectTeam(delta int) {
	n := len(m.report.Teams)
	if n == 0 {
		return
	}
	m.selected = (m.selected + delta + n) % n
	if m.ready {
		m.viewport.SetContent(renderDiffContent(m.report, m.selected))
	}
}

func (m diffModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveDiff launches the Bubble Tea TUI for browsing a diff
// report, starting at team when it is set.
func runInteractiveDiff(r *diff.Report, team string) error {
	model := newDiffModel(r, team)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
