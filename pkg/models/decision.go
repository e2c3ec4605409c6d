package models

// Decision records what the policy chose for one call site.
type Decision struct {
	// SiteID is the ID of the call site this decision covers.
	SiteID string `json:"site_id"`
	// SchemaName is the factory symbol of the site, for reporting.
	SchemaName string `json:"schema_name"`
	// From is the variant currently written in the file.
	From Variant `json:"from"`
	// To is the variant the policy chose. To == From is a no-op.
	To Variant `json:"to"`
	// Rationale explains the decision in human-readable terms.
	Rationale string `json:"rationale"`
	// Applied is true only after the rewrite was verified and committed.
	Applied bool `json:"applied"`
	// Evidence holds every detector probe that informed the decision,
	// matched or not.
	Evidence []Evidence `json:"evidence,omitempty"`
}

// NoOp reports whether the decision leaves the site unchanged.
func (d Decision) NoOp() bool {
	return d.To == d.From
}
