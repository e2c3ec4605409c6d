package policy

import (
	"strings"
	"testing"

	"factorytune/pkg/models"
)

func site(v models.Variant) models.CallSite {
	return models.CallSite{ID: "site-1", SchemaName: "user", Variant: v, Binding: "user"}
}

func TestDecide_DecisionTable(t *testing.T) {
	tests := []struct {
		name   string
		g      models.Granularity
		sig    models.Signal
		from   models.Variant
		wantTo models.Variant
	}{
		{"unit no evidence downgrades persisted", models.GranularityUnit, models.SignalNoEvidence, models.VariantPersisted, models.VariantStubPersisted},
		{"unit no evidence keeps stub", models.GranularityUnit, models.SignalNoEvidence, models.VariantStubPersisted, models.VariantStubPersisted},
		{"unit no evidence keeps transient", models.GranularityUnit, models.SignalNoEvidence, models.VariantTransient, models.VariantTransient},
		{"unit evidence keeps persisted", models.GranularityUnit, models.SignalRequiresPersistence, models.VariantPersisted, models.VariantPersisted},
		{"unit evidence never upgrades stub", models.GranularityUnit, models.SignalRequiresPersistence, models.VariantStubPersisted, models.VariantStubPersisted},
		{"unit evidence never upgrades transient", models.GranularityUnit, models.SignalRequiresPersistence, models.VariantTransient, models.VariantTransient},
		{"integration clamps persisted", models.GranularityIntegration, models.SignalNoEvidence, models.VariantPersisted, models.VariantPersisted},
		{"request clamps persisted", models.GranularityRequest, models.SignalNoEvidence, models.VariantPersisted, models.VariantPersisted},
		{"end_to_end clamps persisted", models.GranularityEndToEnd, models.SignalNoEvidence, models.VariantPersisted, models.VariantPersisted},
		{"integration never upgrades transient", models.GranularityIntegration, models.SignalNoEvidence, models.VariantTransient, models.VariantTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.g, tt.sig, nil, site(tt.from))
			if d.To != tt.wantTo {
				t.Errorf("Decide() to = %q, want %q (rationale: %s)", d.To, tt.wantTo, d.Rationale)
			}
			if d.From != tt.from {
				t.Errorf("Decide() from = %q, want %q", d.From, tt.from)
			}
			if d.Applied {
				t.Error("fresh decisions must not be marked applied")
			}
			if d.Rationale == "" {
				t.Error("every decision needs a rationale")
			}
		})
	}
}

func TestDecide_NeverUpgrades(t *testing.T) {
	granularities := []models.Granularity{
		models.GranularityUnit, models.GranularityIntegration,
		models.GranularityRequest, models.GranularityEndToEnd,
	}
	signals := []models.Signal{models.SignalNoEvidence, models.SignalRequiresPersistence}
	variants := []models.Variant{models.VariantTransient, models.VariantStubPersisted, models.VariantPersisted}

	for _, g := range granularities {
		for _, sig := range signals {
			for _, from := range variants {
				d := Decide(g, sig, nil, site(from))
				if d.To.Cost() > d.From.Cost() {
					t.Errorf("Decide(%s, %s, from %s) upgraded to %s", g, sig, from, d.To)
				}
			}
		}
	}
}

func TestDecide_EvidenceBlocksDowngrade(t *testing.T) {
	evidence := []models.Evidence{
		{Detector: "persistence-accessor", Matched: true, Detail: "user.id reads persisted state"},
	}
	d := Decide(models.GranularityUnit, models.SignalRequiresPersistence, evidence, site(models.VariantPersisted))

	if !d.NoOp() {
		t.Fatalf("evidence should block the downgrade, got to=%q", d.To)
	}
	if len(d.Evidence) != 1 || !d.Evidence[0].Matched {
		t.Errorf("decision should carry its evidence: %+v", d.Evidence)
	}
	if !strings.Contains(d.Rationale, "persistence evidence") {
		t.Errorf("rationale should name the evidence rule: %q", d.Rationale)
	}
}

func TestDecide_ParseErrorIsUntouched(t *testing.T) {
	s := site(models.VariantPersisted)
	s.ParseErr = "unterminated argument list"

	d := Decide(models.GranularityUnit, models.SignalNoEvidence, nil, s)
	if !d.NoOp() {
		t.Error("unparsed sites must never be rewritten")
	}
	if !strings.Contains(d.Rationale, "parse error") {
		t.Errorf("rationale = %q", d.Rationale)
	}
}

func TestDecide_DowngradeRationaleNamesVariants(t *testing.T) {
	d := Decide(models.GranularityUnit, models.SignalNoEvidence, nil, site(models.VariantPersisted))
	if d.NoOp() {
		t.Fatal("expected a downgrade")
	}
	if !strings.Contains(d.Rationale, string(models.VariantPersisted)) ||
		!strings.Contains(d.Rationale, string(models.VariantStubPersisted)) {
		t.Errorf("rationale should name both variants: %q", d.Rationale)
	}
}
