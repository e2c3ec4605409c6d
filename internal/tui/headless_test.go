package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"factorytune/internal/batch"
	"factorytune/pkg/models"
)

// plainColors disables ANSI output so assertions see bare text.
func plainColors(t *testing.T) {
	t.Helper()
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })
}

func TestHeadless_PrintsFinishedLines(t *testing.T) {
	plainColors(t)

	var buf bytes.Buffer
	h := NewHeadless(&buf, false)

	h.HandleEvent(batch.Event{Type: batch.EventFileQueued, Path: "a_spec.rb"})
	h.HandleEvent(batch.Event{Type: batch.EventFileStarted, Path: "a_spec.rb"})
	if buf.Len() != 0 {
		t.Errorf("queued/started events should be quiet, got %q", buf.String())
	}

	h.HandleEvent(batch.Event{
		Type:   batch.EventFileFinished,
		Path:   "a_spec.rb",
		Report: finishedReport("a_spec.rb", models.StatusOptimized),
	})

	out := buf.String()
	if !strings.Contains(out, "[OK] a_spec.rb") {
		t.Errorf("expected a status line for the finished file, got %q", out)
	}
}

func TestHeadless_RunDonePrintsSummary(t *testing.T) {
	plainColors(t)

	var buf bytes.Buffer
	h := NewHeadless(&buf, false)

	h.HandleEvent(batch.Event{
		Type:   batch.EventFileFinished,
		Path:   "a_spec.rb",
		Report: finishedReport("a_spec.rb", models.StatusOptimized),
	})
	h.HandleEvent(batch.Event{Type: batch.EventRunDone})

	if !strings.Contains(buf.String(), "1 files: 1 optimized") {
		t.Errorf("expected summary line, got %q", buf.String())
	}
}

func TestHeadless_RunDoneWarnsOnError(t *testing.T) {
	plainColors(t)

	var buf bytes.Buffer
	h := NewHeadless(&buf, false)

	h.HandleEvent(batch.Event{Type: batch.EventRunDone, Err: errors.New("history write failed")})

	if !strings.Contains(buf.String(), "warning: history write failed") {
		t.Errorf("expected run warning, got %q", buf.String())
	}
}

func TestHeadless_DetailMode(t *testing.T) {
	plainColors(t)

	var buf bytes.Buffer
	h := NewHeadless(&buf, true)

	h.HandleEvent(batch.Event{
		Type:   batch.EventFileFinished,
		Path:   "a_spec.rb",
		Report: finishedReport("a_spec.rb", models.StatusOptimized),
	})

	out := buf.String()
	if !strings.Contains(out, "[site-1] user:") {
		t.Errorf("expected per-decision detail, got %q", out)
	}
}

func TestHeadless_CollectsReports(t *testing.T) {
	plainColors(t)

	var buf bytes.Buffer
	h := NewHeadless(&buf, false)

	h.HandleEvent(batch.Event{
		Type:   batch.EventFileFinished,
		Path:   "a_spec.rb",
		Report: finishedReport("a_spec.rb", models.StatusClean),
	})
	h.HandleEvent(batch.Event{
		Type:   batch.EventFileFinished,
		Path:   "b_spec.rb",
		Report: finishedReport("b_spec.rb", models.StatusError),
	})

	reports := h.Reports()
	if len(reports) != 2 {
		t.Fatalf("expected 2 collected reports, got %d", len(reports))
	}
	if !h.Summary().Failed() {
		t.Error("expected summary to report failure with an error status present")
	}
}
