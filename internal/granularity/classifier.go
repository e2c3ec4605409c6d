// Package granularity resolves how broad a scope a test file exercises.
package granularity

import (
	"fmt"
	"regexp"

	"factorytune/pkg/models"
)

// cue ties one textual marker to a granularity.
type cue struct {
	granularity models.Granularity
	pattern     *regexp.Regexp
	label       string
}

// metaPattern builds a matcher covering both RSpec metadata syntaxes,
// `type: :request` and `:type => :request`.
func metaPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?:\btype:\s*|:type\s*=>\s*):` + tag + `\b`)
}

// defaultCues are checked in order, broadest scope first, so a file carrying
// several markers resolves to the most conservative one.
var defaultCues = []cue{
	{models.GranularityEndToEnd, metaPattern("system"), "type: :system"},
	{models.GranularityEndToEnd, metaPattern("feature"), "type: :feature"},
	{models.GranularityRequest, metaPattern("request"), "type: :request"},
	{models.GranularityIntegration, metaPattern("controller"), "type: :controller"},
	{models.GranularityIntegration, metaPattern("integration"), "type: :integration"},
	{models.GranularityUnit, metaPattern("model"), "type: :model"},
}

// Resolution is the outcome of granularity resolution for one file.
type Resolution struct {
	// Granularity is the resolved value, always valid.
	Granularity models.Granularity
	// Source records which rule decided.
	Source models.GranularitySource
	// Notes carries warnings for the report, such as a defaulted file or
	// an ignored invalid explicit value.
	Notes []string
}

// Classifier resolves file granularity from explicit input, textual cues,
// and a configured fallback.
type Classifier struct {
	cues     []cue
	fallback models.Granularity
}

// New creates a Classifier with the default cue table. The fallback applies
// when neither explicit input nor cues decide. An invalid fallback is
// replaced with integration, the most conservative practical default.
func New(fallback models.Granularity) *Classifier {
	if !fallback.Valid() {
		fallback = models.GranularityIntegration
	}
	return &Classifier{cues: defaultCues, fallback: fallback}
}

// Resolve determines the granularity for a file.
// Resolution order:
//  1. A valid explicit value wins unconditionally.
//  2. The first cue hit decides, broadest scope first.
//  3. The configured fallback applies, with a note on the report.
func (c *Classifier) Resolve(text string, explicit models.Granularity) Resolution {
	var notes []string

	if explicit != "" {
		if explicit.Valid() {
			return Resolution{Granularity: explicit, Source: models.SourceExplicit}
		}
		notes = append(notes, fmt.Sprintf("ignoring invalid explicit granularity %q", explicit))
	}

	for _, cu := range c.cues {
		if cu.pattern.MatchString(text) {
			return Resolution{
				Granularity: cu.granularity,
				Source:      models.SourceClassified,
				Notes:       append(notes, fmt.Sprintf("classified as %s from %s marker", cu.granularity, cu.label)),
			}
		}
	}

	return Resolution{
		Granularity: c.fallback,
		Source:      models.SourceDefault,
		Notes:       append(notes, fmt.Sprintf("no granularity marker found; defaulting to %s", c.fallback)),
	}
}
