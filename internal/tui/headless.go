package tui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"factorytune/internal/batch"
	"factorytune/internal/report"
	"factorytune/pkg/models"
)

// Headless prints batch events as plain lines for non-TTY runs. It shows
// the same information as the live view, one line per finished file.
type Headless struct {
	w       io.Writer
	detail  bool
	reports []models.Report
}

// NewHeadless creates a headless event printer. With detail set it prints
// the per-decision breakdown under each file.
func NewHeadless(w io.Writer, detail bool) *Headless {
	return &Headless{w: w, detail: detail}
}

// HandleEvent prints one batch event. Queued and started events are quiet;
// finished files get a status line, the run end gets the summary.
func (h *Headless) HandleEvent(ev batch.Event) {
	switch ev.Type {
	case batch.EventFileFinished:
		if ev.Report == nil {
			return
		}
		h.reports = append(h.reports, *ev.Report)
		h.printReport(ev.Report)

	case batch.EventRunDone:
		if ev.Err != nil {
			color.New(color.FgYellow).Fprintf(h.w, "warning: %v\n", ev.Err)
		}
		fmt.Fprintln(h.w, h.Summary().String())
	}
}

// Summary aggregates everything seen so far.
func (h *Headless) Summary() report.Summary {
	return report.Summarize(h.reports)
}

// Reports returns the collected per-file reports in finish order.
func (h *Headless) Reports() []models.Report {
	return h.reports
}

// printReport writes one file's result line, colored by status.
func (h *Headless) printReport(r *models.Report) {
	if h.detail {
		fmt.Fprint(h.w, report.Detail(r))
		return
	}

	line := report.Line(r)
	switch r.Status {
	case models.StatusOptimized:
		color.New(color.FgGreen).Fprintln(h.w, line)
	case models.StatusReverted:
		color.New(color.FgYellow).Fprintln(h.w, line)
	case models.StatusError:
		color.New(color.FgRed).Fprintln(h.w, line)
	default:
		fmt.Fprintln(h.w, line)
	}
}
