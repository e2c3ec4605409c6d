// Package report renders optimization outcomes for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"factorytune/pkg/models"
)

// Summary aggregates per-file reports into run totals.
type Summary struct {
	Files     int           `json:"files"`
	Clean     int           `json:"clean"`
	Optimized int           `json:"optimized"`
	Reverted  int           `json:"reverted"`
	Errors    int           `json:"errors"`
	Sites     int           `json:"sites"`
	Applied   int           `json:"applied"`
	Duration  time.Duration `json:"duration"`
}

// Summarize folds per-file reports into run totals. Duration is the sum of
// per-file durations, not wall time; the batch runner tracks wall time
// separately.
func Summarize(reports []models.Report) Summary {
	var s Summary
	for i := range reports {
		r := &reports[i]
		s.Files++
		switch r.Status {
		case models.StatusClean:
			s.Clean++
		case models.StatusOptimized:
			s.Optimized++
		case models.StatusReverted:
			s.Reverted++
		case models.StatusError:
			s.Errors++
		}
		s.Sites += len(r.Decisions)
		s.Applied += r.AppliedRewrites()
		s.Duration += r.Duration
	}
	return s
}

// String renders the one-line run total.
func (s Summary) String() string {
	return fmt.Sprintf("%d files: %d optimized, %d clean, %d reverted, %d error; %d of %d sites rewritten",
		s.Files, s.Optimized, s.Clean, s.Reverted, s.Errors, s.Applied, s.Sites)
}

// Failed reports whether any file ended in an error status.
func (s Summary) Failed() bool {
	return s.Errors > 0
}

// StatusIcon returns the bracketed marker for a per-file result line.
func StatusIcon(status models.Status) string {
	switch status {
	case models.StatusOptimized:
		return "[OK]"
	case models.StatusClean:
		return "[CLEAN]"
	case models.StatusReverted:
		return "[REVERTED]"
	case models.StatusError:
		return "[ERROR]"
	default:
		return "[?]"
	}
}

// Line renders the single-line per-file result.
func Line(r *models.Report) string {
	where := fmt.Sprintf("(%s, %s)", r.Granularity, r.GranularitySource)
	switch r.Status {
	case models.StatusOptimized:
		return fmt.Sprintf("%s %s: %d of %d sites rewritten %s in %s",
			StatusIcon(r.Status), r.Path, r.AppliedRewrites(), len(r.Decisions), where, r.Duration.Round(time.Millisecond))
	case models.StatusClean:
		return fmt.Sprintf("%s %s: %d sites, no rewrites needed %s",
			StatusIcon(r.Status), r.Path, len(r.Decisions), where)
	case models.StatusReverted:
		return fmt.Sprintf("%s %s: %d rewrites rolled back after failed verification %s",
			StatusIcon(r.Status), r.Path, r.Rewrites(), where)
	case models.StatusError:
		reason := "run failed"
		if len(r.Notes) > 0 {
			reason = r.Notes[0]
		}
		return fmt.Sprintf("%s %s: %s", StatusIcon(r.Status), r.Path, reason)
	default:
		return fmt.Sprintf("%s %s", StatusIcon(r.Status), r.Path)
	}
}

// Detail renders the multi-line per-file result with one line per decision
// and trailing notes.
func Detail(r *models.Report) string {
	var b strings.Builder
	fmt.Fprintln(&b, Line(r))
	for _, d := range r.Decisions {
		applied := ""
		if d.Applied {
			applied = " (applied)"
		}
		fmt.Fprintf(&b, "   [%s] %s: %s%s\n", d.SiteID, d.SchemaName, d.Rationale, applied)
	}
	for _, note := range r.Notes {
		fmt.Fprintf(&b, "   note: %s\n", note)
	}
	return b.String()
}

// WriteJSON writes the reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []models.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}
