package models

// Granularity represents the scope of behavior a test file exercises.
type Granularity string

const (
	// GranularityUnit exercises a single object in isolation.
	GranularityUnit Granularity = "unit"
	// GranularityIntegration exercises several collaborators together.
	GranularityIntegration Granularity = "integration"
	// GranularityRequest exercises a full request/response cycle.
	GranularityRequest Granularity = "request"
	// GranularityEndToEnd drives the whole system from the outside.
	GranularityEndToEnd Granularity = "end_to_end"
)

// Valid returns true if the granularity is a known value.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityUnit, GranularityIntegration, GranularityRequest, GranularityEndToEnd:
		return true
	default:
		return false
	}
}

// AllowsDowngrade reports whether construction calls in a file of this
// granularity may be replaced with cheaper variants. Only unit-scope files
// qualify; everything broader depends on real storage round-trips.
func (g Granularity) AllowsDowngrade() bool {
	return g == GranularityUnit
}

// GranularitySource records how a file's granularity was determined.
type GranularitySource string

const (
	// SourceExplicit means the caller supplied the granularity.
	SourceExplicit GranularitySource = "explicit"
	// SourceClassified means textual cues in the file decided it.
	SourceClassified GranularitySource = "classified"
	// SourceDefault means nothing decided it and the configured default applied.
	SourceDefault GranularitySource = "default"
)
