// Package policy chooses the target construction variant for call sites.
// Decisions are pure functions of granularity, signal, and current variant.
// The policy never proposes an upgrade: a cheaper call that turns out to
// need persistence is a pre-existing defect, not this engine's to fix.
package policy

import (
	"fmt"

	"factorytune/pkg/models"
)

// target returns the cheapest variant the policy considers safe before the
// never-upgrade clamp is applied.
func target(g models.Granularity, sig models.Signal) models.Variant {
	if !g.AllowsDowngrade() {
		return models.VariantPersisted
	}
	if sig == models.SignalRequiresPersistence {
		return models.VariantPersisted
	}
	return models.VariantStubPersisted
}

// Decide produces the decision for one call site. Sites that failed to
// parse are left untouched; everything else gets the cheapest safe variant,
// clamped so the result never costs more than what is already written.
func Decide(g models.Granularity, sig models.Signal, evidence []models.Evidence, site models.CallSite) models.Decision {
	d := models.Decision{
		SiteID:     site.ID,
		SchemaName: site.SchemaName,
		From:       site.Variant,
		To:         site.Variant,
		Evidence:   evidence,
	}

	if !site.Parsed() {
		d.Rationale = fmt.Sprintf("parse error: %s; site left untouched", site.ParseErr)
		return d
	}

	want := target(g, sig)
	if want.Cost() >= site.Variant.Cost() {
		d.Rationale = keepRationale(g, sig, site.Variant, want)
		return d
	}

	d.To = want
	d.Rationale = fmt.Sprintf("%s granularity with no persistence evidence; %s downgraded to %s",
		g, site.Variant, want)
	return d
}

// keepRationale explains a no-op in terms of the rule that produced it.
func keepRationale(g models.Granularity, sig models.Signal, from, want models.Variant) string {
	switch {
	case !g.AllowsDowngrade() && from == models.VariantPersisted:
		return fmt.Sprintf("%s granularity requires persisted records", g)
	case !g.AllowsDowngrade():
		return fmt.Sprintf("%s granularity forbids downgrades; keeping %s", g, from)
	case sig == models.SignalRequiresPersistence && from == models.VariantPersisted:
		return "persistence evidence found; persisted construction stands"
	case sig == models.SignalRequiresPersistence:
		return fmt.Sprintf("persistence evidence found but upgrades are out of scope; keeping %s", from)
	case from == want:
		return fmt.Sprintf("already the cheapest safe variant (%s)", from)
	default:
		return fmt.Sprintf("%s is already cheaper than the safe target %s", from, want)
	}
}
