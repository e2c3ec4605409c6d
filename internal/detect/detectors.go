// Package detect probes call sites for usages that require real persistence.
//
// Each detector checks one usage pattern. Detection is conservative: a false
// positive keeps a site persisted and merely costs runtime, while a false
// negative would break the test suite. Aggregation is a pure OR over all
// evidence, so adding detectors can only strengthen the signal.
package detect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"factorytune/pkg/models"
)

// Detector probes one persistence-requiring usage pattern.
type Detector interface {
	// Name identifies the detector in evidence records.
	Name() string
	// Detect probes the file text for the pattern. Sites without a binding
	// are probed over their argument text where that makes sense.
	Detect(site models.CallSite, text string) models.Evidence
}

// AccessorDetector finds reads of identity or persisted state through the
// site's binding, like user.id or user.persisted?.
type AccessorDetector struct {
	accessors []string
}

// NewAccessorDetector builds the detector with the default accessor
// vocabulary plus any extras.
func NewAccessorDetector(extra ...string) *AccessorDetector {
	return &AccessorDetector{accessors: withExtras(DefaultAccessors, extra)}
}

func (d *AccessorDetector) Name() string { return "persistence-accessor" }

func (d *AccessorDetector) Detect(site models.CallSite, text string) models.Evidence {
	ev := models.Evidence{Detector: d.Name()}
	if site.Binding == "" {
		return ev
	}
	re, err := regexp.Compile(bindingRef(site.Binding) + `\.(` + alternates(d.accessors) + `)(?:[^\w?!]|$)`)
	if err != nil {
		return ev
	}
	if m := re.FindStringSubmatch(text); m != nil {
		ev.Matched = true
		ev.Detail = fmt.Sprintf("%s.%s reads persisted state", site.Binding, m[1])
	}
	return ev
}

// AssociationDetector finds persistence-creating operations through an
// association on the binding, like post.comments.create(...) or
// post.tags << tag.
type AssociationDetector struct {
	mutators []string
}

// NewAssociationDetector builds the detector with the default mutator
// vocabulary plus any extras.
func NewAssociationDetector(extra ...string) *AssociationDetector {
	return &AssociationDetector{mutators: withExtras(DefaultAssociationMutators, extra)}
}

func (d *AssociationDetector) Name() string { return "association-mutation" }

func (d *AssociationDetector) Detect(site models.CallSite, text string) models.Evidence {
	ev := models.Evidence{Detector: d.Name()}
	if site.Binding == "" {
		return ev
	}
	ref := bindingRef(site.Binding)
	call, err := regexp.Compile(ref + `\.(\w+)\.(?:` + alternates(d.mutators) + `)\s*\(`)
	if err != nil {
		return ev
	}
	if m := call.FindStringSubmatch(text); m != nil {
		ev.Matched = true
		ev.Detail = fmt.Sprintf("%s.%s gains records through the association", site.Binding, m[1])
		return ev
	}
	shovel, err := regexp.Compile(ref + `\.(\w+)\s*<<`)
	if err != nil {
		return ev
	}
	if m := shovel.FindStringSubmatch(text); m != nil {
		ev.Matched = true
		ev.Detail = fmt.Sprintf("%s.%s gains records through the association", site.Binding, m[1])
	}
	return ev
}

// QueryDetector finds the binding inside the argument list of a storage
// lookup or filter, like where(author: user) or find_by(owner: user).
// For inline sites the probe runs over the construction's own arguments.
type QueryDetector struct {
	methods []string
}

// NewQueryDetector builds the detector with the default query vocabulary
// plus any extras.
func NewQueryDetector(extra ...string) *QueryDetector {
	return &QueryDetector{methods: withExtras(DefaultQueryMethods, extra)}
}

func (d *QueryDetector) Name() string { return "query-dependency" }

func (d *QueryDetector) Detect(site models.CallSite, text string) models.Evidence {
	ev := models.Evidence{Detector: d.Name()}
	alts := alternates(d.methods)

	if site.Binding == "" {
		re, err := regexp.Compile(`\b(?:` + alts + `)\s*\(`)
		if err != nil {
			return ev
		}
		if re.MatchString(site.ArgumentText) {
			ev.Matched = true
			ev.Detail = "storage lookup inside the construction arguments"
		}
		return ev
	}

	re, err := regexp.Compile(`\b(` + alts + `)\s*\([^)]*` + bindingRef(site.Binding))
	if err != nil {
		return ev
	}
	if m := re.FindStringSubmatch(text); m != nil {
		ev.Matched = true
		ev.Detail = fmt.Sprintf("%s feeds a %s lookup", site.Binding, m[1])
	}
	return ev
}

// ConsumerDetector finds the binding handed to an external consumer such as
// SyncJob.perform_later(user) or PaymentService.call(user). For inline
// sites the probe runs over the construction's own arguments.
type ConsumerDetector struct {
	suffixes []string
}

// NewConsumerDetector builds the detector with the default suffix
// vocabulary plus any extras.
func NewConsumerDetector(extra ...string) *ConsumerDetector {
	return &ConsumerDetector{suffixes: withExtras(DefaultConsumerSuffixes, extra)}
}

func (d *ConsumerDetector) Name() string { return "external-consumption" }

func (d *ConsumerDetector) Detect(site models.CallSite, text string) models.Evidence {
	ev := models.Evidence{Detector: d.Name()}
	class := `([A-Z]\w*(?:` + alternates(d.suffixes) + `))(?:\.\w+)?\s*\(`

	if site.Binding == "" {
		re, err := regexp.Compile(`\b` + class)
		if err != nil {
			return ev
		}
		if m := re.FindStringSubmatch(site.ArgumentText); m != nil {
			ev.Matched = true
			ev.Detail = fmt.Sprintf("%s consumes the construction inline", m[1])
		}
		return ev
	}

	re, err := regexp.Compile(`\b` + class + `[^)]*` + bindingRef(site.Binding))
	if err != nil {
		return ev
	}
	if m := re.FindStringSubmatch(text); m != nil {
		ev.Matched = true
		ev.Detail = fmt.Sprintf("%s receives %s", m[1], site.Binding)
	}
	return ev
}

// bindingRef builds a sub-pattern matching the binding as a whole word.
func bindingRef(binding string) string {
	ref := regexp.QuoteMeta(binding) + `\b`
	if c := binding[0]; c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
		ref = `\b` + ref
	}
	return ref
}

// alternates joins vocabulary into a regex alternation, longest entries
// first so create! wins over create at the same offset.
func alternates(vocab []string) string {
	sorted := append([]string{}, vocab...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	escaped := make([]string, len(sorted))
	for i, v := range sorted {
		escaped[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(escaped, "|")
}

func withExtras(defaults, extra []string) []string {
	out := append([]string{}, defaults...)
	return append(out, extra...)
}
