package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"factorytune/pkg/models"
)

func TestScan_LetBoundCreate(t *testing.T) {
	text := `RSpec.describe User, type: :model do
  let(:user) { create(:user, name: "Ada") }
end
`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}

	got := sites[0]
	want := models.CallSite{
		ID:           "site-1",
		SchemaName:   "user",
		Variant:      models.VariantPersisted,
		Span:         got.Span,
		ArgumentText: `:user, name: "Ada"`,
		Binding:      "user",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("site mismatch (-want +got):\n%s", diff)
	}
	if slice := text[got.Span.Start:got.Span.End]; slice != `create(:user, name: "Ada")` {
		t.Errorf("span slices to %q", slice)
	}
}

func TestScan_AllHelperForms(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantVariant models.Variant
		wantList    bool
	}{
		{"create", `create(:user)`, models.VariantPersisted, false},
		{"create_list", `create_list(:user, 3)`, models.VariantPersisted, true},
		{"build_stubbed", `build_stubbed(:user)`, models.VariantStubPersisted, false},
		{"build_stubbed_list", `build_stubbed_list(:user, 2)`, models.VariantStubPersisted, true},
		{"build", `build(:user)`, models.VariantTransient, false},
		{"build_list", `build_list(:user, 5)`, models.VariantTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := Scan(tt.text)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if len(sites) != 1 {
				t.Fatalf("got %d sites, want 1", len(sites))
			}
			if sites[0].Variant != tt.wantVariant || sites[0].List != tt.wantList {
				t.Errorf("got (%q, list=%v), want (%q, list=%v)",
					sites[0].Variant, sites[0].List, tt.wantVariant, tt.wantList)
			}
		})
	}
}

func TestScan_Bindings(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"let block", "let(:author) { create(:user) }", "author"},
		{"let bang", "let!(:post) { create(:post) }", "post"},
		{"let do block", "let(:post) do\n  create(:post)\nend", "post"},
		{"named subject", "subject(:account) { create(:account) }", "account"},
		{"assignment", "user = create(:user)", "user"},
		{"or-assignment", "record ||= create(:record)", "record"},
		{"ivar assignment", "@user = create(:user)", "@user"},
		{"inline has no binding", "expect(create(:user)).to be_valid", ""},
		{"attribute write is not a binding", "post.author = create(:user)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := Scan(tt.text)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if len(sites) != 1 {
				t.Fatalf("got %d sites, want 1", len(sites))
			}
			if sites[0].Binding != tt.want {
				t.Errorf("Binding = %q, want %q", sites[0].Binding, tt.want)
			}
		})
	}
}

func TestScan_ReceiverForms(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantReceiver string
		wantSites    int
	}{
		{"explicit receiver", `FactoryBot.create(:user)`, "FactoryBot", 1},
		{"root-scoped receiver", `::FactoryBot.build(:post)`, "::FactoryBot", 1},
		{"foreign receiver", `repo.create(:user)`, "", 0},
		{"association mutation", `post.comments.create(title: "x")`, "", 0},
		{"namespaced foreign constant", `Legacy::FactoryBot.create(:user)`, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := Scan(tt.text)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if len(sites) != tt.wantSites {
				t.Fatalf("got %d sites, want %d", len(sites), tt.wantSites)
			}
			if tt.wantSites == 1 {
				if sites[0].Receiver != tt.wantReceiver {
					t.Errorf("Receiver = %q, want %q", sites[0].Receiver, tt.wantReceiver)
				}
				if slice := tt.text[sites[0].Span.Start:sites[0].Span.End]; slice != tt.text {
					t.Errorf("span should cover the full invocation, got %q", slice)
				}
			}
		})
	}
}

func TestScan_IgnoresStringsAndComments(t *testing.T) {
	text := `# create(:user) would be expensive here
note = "calling create(:user) in a loop"
other = 'create(:admin)'
build(:post)
`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}
	if sites[0].Variant != models.VariantTransient || sites[0].SchemaName != "post" {
		t.Errorf("unexpected site: %+v", sites[0])
	}
}

func TestScan_WordBoundaries(t *testing.T) {
	// Helper names embedded in longer identifiers are not calls.
	text := `recreate(:user)
rebuild(:post)
creates(:thing)
:create
@build = 1
`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(sites) != 0 {
		t.Fatalf("got %d sites, want 0: %+v", len(sites), sites)
	}
}

func TestScan_NestedConstructionTravelsWithOuter(t *testing.T) {
	text := `let(:user) { create(:user, profile: build(:profile)) }`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1 (nested call is part of the outer)", len(sites))
	}
	if sites[0].ArgumentText != `:user, profile: build(:profile)` {
		t.Errorf("ArgumentText = %q", sites[0].ArgumentText)
	}
}

func TestScan_BlockAfterCallIsScannedSeparately(t *testing.T) {
	text := `create(:user) { |u| u.posts << build(:post) }`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("got %d sites, want 2", len(sites))
	}
	if sites[0].SchemaName != "user" || sites[1].SchemaName != "post" {
		t.Errorf("unexpected schemas: %q, %q", sites[0].SchemaName, sites[1].SchemaName)
	}
}

func TestScan_ParseErrors(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantErrSub string
	}{
		{"unterminated", `let(:u) { create(:user`, "unterminated argument list"},
		{"non-symbol first arg", `create(user_attrs)`, "not a factory symbol"},
		{"empty args", `create()`, "not a factory symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := Scan(tt.text)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if len(sites) != 1 {
				t.Fatalf("got %d sites, want 1", len(sites))
			}
			if sites[0].Parsed() {
				t.Fatal("site should carry a parse error")
			}
			if got := sites[0].ParseErr; !strings.Contains(got, tt.wantErrSub) {
				t.Errorf("ParseErr = %q, want substring %q", got, tt.wantErrSub)
			}
		})
	}
}

func TestScan_ParseErrorIsLocal(t *testing.T) {
	text := `let(:a) { create(no_symbol) }
let(:b) { create(:post) }
`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("got %d sites, want 2", len(sites))
	}
	if sites[0].Parsed() {
		t.Error("first site should carry a parse error")
	}
	if !sites[1].Parsed() || sites[1].SchemaName != "post" {
		t.Errorf("second site should parse cleanly: %+v", sites[1])
	}
}

func TestScan_DocumentOrderIDs(t *testing.T) {
	text := `a = create(:a)
b = build(:b)
c = create_list(:c, 2)
`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	wantIDs := []string{"site-1", "site-2", "site-3"}
	if len(sites) != len(wantIDs) {
		t.Fatalf("got %d sites, want %d", len(sites), len(wantIDs))
	}
	for i, want := range wantIDs {
		if sites[i].ID != want {
			t.Errorf("sites[%d].ID = %q, want %q", i, sites[i].ID, want)
		}
		if sites[i].Span.Start < 0 || sites[i].Span.End > len(text) {
			t.Errorf("sites[%d] span out of bounds: %v", i, sites[i].Span)
		}
		if i > 0 && sites[i].Span.Start < sites[i-1].Span.End {
			t.Errorf("sites out of document order at %d", i)
		}
	}
}

func TestScan_EscapedQuotesInArguments(t *testing.T) {
	text := `create(:user, bio: "says \"hi\" (often)")`
	sites, err := Scan(text)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}
	if sites[0].ArgumentText != `:user, bio: "says \"hi\" (often)"` {
		t.Errorf("ArgumentText = %q", sites[0].ArgumentText)
	}
	if !sites[0].Parsed() {
		t.Errorf("unexpected parse error: %s", sites[0].ParseErr)
	}
}

func TestScan_NotText(t *testing.T) {
	_, err := Scan("create(:user)\xff\xfe")
	if !errors.Is(err, ErrNotText) {
		t.Errorf("err = %v, want ErrNotText", err)
	}
}

