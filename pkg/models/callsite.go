package models

import "fmt"

// Span is a half-open byte range [Start, End) into file text.
type Span struct {
	// Start is the byte offset of the first byte covered.
	Start int `json:"start"`
	// End is the byte offset one past the last byte covered.
	End int `json:"end"`
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// String renders the span in [start,end) form for notes and logs.
func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// CallSite is one factory invocation found in a test file.
type CallSite struct {
	// ID is a deterministic document-order identifier (site-1, site-2, ...).
	ID string `json:"id"`
	// SchemaName is the factory symbol without the leading colon.
	SchemaName string `json:"schema_name"`
	// Variant is the construction strategy currently in use.
	Variant Variant `json:"variant"`
	// List is true for the collection (_list) helper form.
	List bool `json:"list,omitempty"`
	// Receiver is the explicit receiver when the helper is called through
	// one ("FactoryBot" or "::FactoryBot"). Empty for the bare DSL form.
	Receiver string `json:"receiver,omitempty"`
	// Span covers the entire invocation, receiver and method head through
	// the closing paren.
	Span Span `json:"span"`
	// ArgumentText is the verbatim text between the outer parentheses.
	ArgumentText string `json:"argument_text"`
	// Binding is the receiver name the result is bound to, when the call
	// sits in a let/let! block or a plain assignment. Empty for inline sites.
	Binding string `json:"binding,omitempty"`
	// ParseErr is non-empty when the site was recognized but could not be
	// captured. Such sites are reported and never rewritten.
	ParseErr string `json:"parse_err,omitempty"`
}

// Parsed reports whether the site was captured cleanly.
func (c CallSite) Parsed() bool {
	return c.ParseErr == ""
}

// Evidence is the outcome of one detector probe against one call site.
type Evidence struct {
	// Detector names the probe that produced this evidence.
	Detector string `json:"detector"`
	// Matched is true when the probe found its usage pattern.
	Matched bool `json:"matched"`
	// Detail describes the match in human-readable terms.
	Detail string `json:"detail,omitempty"`
}

// Signal is the aggregate persistence requirement over a site's evidence.
type Signal string

const (
	// SignalNoEvidence means no detector found a persistence-requiring usage.
	SignalNoEvidence Signal = "no_evidence"
	// SignalRequiresPersistence means at least one detector matched.
	SignalRequiresPersistence Signal = "requires_persistence"
)

// AggregateSignal folds evidence into a signal. Any match wins; evidence
// only ever strengthens the requirement, never weakens it.
func AggregateSignal(evidence []Evidence) Signal {
	for _, ev := range evidence {
		if ev.Matched {
			return SignalRequiresPersistence
		}
	}
	return SignalNoEvidence
}
