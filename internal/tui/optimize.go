// Package tui provides the terminal user interface for factorytune.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"factorytune/internal/batch"
	"factorytune/internal/report"
	"factorytune/pkg/models"
)

// Status icons for file rows.
const (
	iconPending   = "[○]"
	iconOptimized = "[✓]"
	iconClean     = "[-]"
	iconReverted  = "[↺]"
	iconError     = "[✗]"
)

// rowState tracks where a file is in its run.
type rowState int

const (
	rowPending rowState = iota
	rowRunning
	rowFinished
)

// fileRow is one file's line in the live view.
type fileRow struct {
	path     string
	state    rowState
	report   *models.Report
	started  time.Time
	duration time.Duration
}

// keyMap defines the key bindings for the optimize view.
type keyMap struct {
	Quit   key.Binding
	Detail key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Detail: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle detail"),
		),
	}
}

// OptimizeApp is the main bubbletea model for the optimize command TUI.
// Feed it batch events through the program's Send.
type OptimizeApp struct {
	rows  []*fileRow
	index map[string]*fileRow

	spin     spinner.Model
	keys     keyMap
	width    int
	height   int
	detail   bool
	done     bool
	err      error
	summary  report.Summary
	quitting bool

	// Styles
	headerStyle    lipgloss.Style
	pathStyle      lipgloss.Style
	pendingStyle   lipgloss.Style
	optimizedStyle lipgloss.Style
	cleanStyle     lipgloss.Style
	revertedStyle  lipgloss.Style
	errorStyle     lipgloss.Style
	noteStyle      lipgloss.Style
	footerStyle    lipgloss.Style
	progressFull   lipgloss.Style
	progressEmpty  lipgloss.Style
	doneStyle      lipgloss.Style
}

// NewOptimizeApp creates a new OptimizeApp instance.
func NewOptimizeApp() *OptimizeApp {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &OptimizeApp{
		index: make(map[string]*fileRow),
		spin:  spin,
		keys:  defaultKeyMap(),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),

		pathStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		optimizedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		cleanStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		revertedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		noteStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),
	}
}

// Init implements tea.Model.
func (a *OptimizeApp) Init() tea.Cmd {
	return a.spin.Tick
}

// Update implements tea.Model.
func (a *OptimizeApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			a.quitting = true
			return a, tea.Quit
		case key.Matches(msg, a.keys.Detail):
			a.detail = !a.detail
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case batch.Event:
		a.apply(msg)
	}

	return a, nil
}

// apply folds one batch event into the view state.
func (a *OptimizeApp) apply(ev batch.Event) {
	switch ev.Type {
	case batch.EventFileQueued:
		if _, ok := a.index[ev.Path]; ok {
			return
		}
		row := &fileRow{path: ev.Path}
		a.rows = append(a.rows, row)
		a.index[ev.Path] = row

	case batch.EventFileStarted:
		if row, ok := a.index[ev.Path]; ok {
			row.state = rowRunning
			row.started = time.Now()
		}

	case batch.EventFileFinished:
		if row, ok := a.index[ev.Path]; ok {
			row.state = rowFinished
			row.report = ev.Report
			if ev.Report != nil {
				row.duration = ev.Report.Duration
			}
		}

	case batch.EventRunDone:
		a.done = true
		a.err = ev.Err
		reports := make([]models.Report, 0, len(a.rows))
		for _, row := range a.rows {
			if row.report != nil {
				reports = append(reports, *row.report)
			}
		}
		a.summary = report.Summarize(reports)
	}
}

// Done reports whether the batch has finished.
func (a *OptimizeApp) Done() bool {
	return a.done
}

// View implements tea.Model.
func (a *OptimizeApp) View() string {
	if a.quitting && !a.done {
		return "Optimization cancelled.\n"
	}

	var b strings.Builder

	b.WriteString(a.headerStyle.Render("=== factorytune optimize ==="))
	b.WriteString("\n\n")

	finished := 0
	for _, row := range a.rows {
		if row.state == rowFinished {
			finished++
		}
	}
	pct := float64(0)
	if len(a.rows) > 0 {
		pct = float64(finished) / float64(len(a.rows)) * 100
	}
	b.WriteString(fmt.Sprintf("Files: %d/%d", finished, len(a.rows)))
	b.WriteString("\n")
	b.WriteString(a.renderProgressBar(pct, 30))
	b.WriteString("\n\n")

	for _, row := range a.visibleRows() {
		b.WriteString(a.renderRow(row))
		b.WriteString("\n")
		if a.detail && row.report != nil {
			b.WriteString(a.renderDetail(row.report))
		}
	}

	b.WriteString("\n")
	if a.done {
		if a.err != nil {
			b.WriteString(a.errorStyle.Render(fmt.Sprintf("Warning: %v", a.err)))
			b.WriteString("\n")
		}
		b.WriteString(a.doneStyle.Render(a.summary.String()))
		b.WriteString("\n")
		b.WriteString(a.footerStyle.Render("Press q to exit"))
	} else {
		b.WriteString(a.footerStyle.Render("[q] quit  [d] toggle detail"))
	}
	b.WriteString("\n")

	return b.String()
}

// renderRow renders a single file row.
func (a *OptimizeApp) renderRow(row *fileRow) string {
	icon := a.rowIcon(row)
	path := truncate(row.path, 60)

	switch row.state {
	case rowRunning:
		elapsed := formatDuration(time.Since(row.started))
		return fmt.Sprintf("  %s %-60s %s", icon, a.pathStyle.Render(path), a.pendingStyle.Render(elapsed))
	case rowFinished:
		return fmt.Sprintf("  %s %-60s %s", icon, a.pathStyle.Render(path), a.pendingStyle.Render(formatDuration(row.duration)))
	default:
		return fmt.Sprintf("  %s %s", icon, a.pendingStyle.Render(path))
	}
}

// rowIcon returns the styled status marker for a row. Running rows get the
// spinner frame instead of a fixed icon.
func (a *OptimizeApp) rowIcon(row *fileRow) string {
	switch row.state {
	case rowPending:
		return a.pendingStyle.Render(iconPending)
	case rowRunning:
		return " " + a.spin.View() + " "
	}

	if row.report == nil {
		return a.errorStyle.Render(iconError)
	}
	switch row.report.Status {
	case models.StatusOptimized:
		return a.optimizedStyle.Render(iconOptimized)
	case models.StatusClean:
		return a.cleanStyle.Render(iconClean)
	case models.StatusReverted:
		return a.revertedStyle.Render(iconReverted)
	default:
		return a.errorStyle.Render(iconError)
	}
}

// renderDetail renders the per-decision breakdown under a finished row.
func (a *OptimizeApp) renderDetail(r *models.Report) string {
	var b strings.Builder
	for _, d := range r.Decisions {
		var line string
		switch {
		case d.NoOp():
			line = fmt.Sprintf("      %s: %s (kept)", d.SchemaName, d.From)
		case d.Applied:
			line = fmt.Sprintf("      %s: %s -> %s (applied)", d.SchemaName, d.From, d.To)
		default:
			line = fmt.Sprintf("      %s: %s -> %s", d.SchemaName, d.From, d.To)
		}
		b.WriteString(a.noteStyle.Render(line))
		b.WriteString("\n")
	}
	for _, note := range r.Notes {
		b.WriteString(a.noteStyle.Render("      note: " + truncate(note, 100)))
		b.WriteString("\n")
	}
	return b.String()
}

// visibleRows caps the row list to what fits, keeping the most recent
// activity at the tail.
func (a *OptimizeApp) visibleRows() []*fileRow {
	limit := a.height - 10
	if limit < 5 {
		limit = 5
	}
	if len(a.rows) <= limit {
		return a.rows
	}
	return a.rows[len(a.rows)-limit:]
}

// renderProgressBar renders a progress bar.
func (a *OptimizeApp) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := a.progressFull.Render(strings.Repeat("█", filled)) +
		a.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  %s %.0f%%", bar, pct)
}

// truncate shortens a string to fit in a column.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// NewOptimizeProgram creates a new bubbletea program for the optimize TUI.
func NewOptimizeProgram() (*tea.Program, *OptimizeApp) {
	app := NewOptimizeApp()
	p := tea.NewProgram(app)
	return p, app
}
