// Package rewrite assembles candidate texts and applies them to disk
// transactionally. A file either ends up fully rewritten and verified, or
// byte-identical to where it started.
package rewrite

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"factorytune/pkg/models"
)

// ErrOverlappingSpans reports two patches claiming the same bytes.
var ErrOverlappingSpans = errors.New("patch spans overlap")

// ErrSpanOutOfBounds reports a patch outside the text.
var ErrSpanOutOfBounds = errors.New("patch span out of bounds")

// Patch replaces one span of the original text.
type Patch struct {
	Span        models.Span
	Replacement string
}

// Render produces the replacement text for a site rewritten to a variant.
// Only the method head changes; the receiver and the argument text are
// carried over verbatim.
func Render(site models.CallSite, to models.Variant) string {
	head := to.MethodName(site.List)
	if site.Receiver != "" {
		head = site.Receiver + "." + head
	}
	return head + "(" + site.ArgumentText + ")"
}

// Apply splices patches into text. Patches may arrive in any order but
// must be disjoint and in bounds; a single bad span rejects the whole
// batch, because a partially patched candidate must never exist.
func Apply(text string, patches []Patch) (string, error) {
	if len(patches) == 0 {
		return text, nil
	}

	sorted := append([]Patch{}, patches...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	var b strings.Builder
	last := 0
	for i, p := range sorted {
		if p.Span.Start < 0 || p.Span.End > len(text) || p.Span.Start > p.Span.End {
			return "", fmt.Errorf("%w: %s against %d bytes", ErrSpanOutOfBounds, p.Span, len(text))
		}
		if i > 0 && sorted[i-1].Span.End > p.Span.Start {
			return "", fmt.Errorf("%w: %s and %s", ErrOverlappingSpans, sorted[i-1].Span, p.Span)
		}
		b.WriteString(text[last:p.Span.Start])
		b.WriteString(p.Replacement)
		last = p.Span.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
