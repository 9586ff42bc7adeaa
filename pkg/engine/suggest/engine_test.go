package suggest

import (
	"reflect"
	"testing"

	"github.com/pitchline/pitchline/pkg/engine/intent"
	"github.com/pitchline/pitchline/pkg/engine/salescontext"
)

func TestSuggest_ExcludesUsedCapabilitiesAndCapsAtThree(t *testing.T) {
	ctx := salescontext.New("s1")
	ctx.RecordCapability("roi")

	got := Suggest(ctx, intent.Detection{Type: intent.TypeWorkshop})
	if len(got) > 3 {
		t.Fatalf("len=%d, want <= 3", len(got))
	}
	for _, s := range got {
		if s.Capability == "roi" {
			t.Fatalf("already-used capability suggested: %+v", got)
		}
	}
}

func TestSuggest_DeterministicOrdering(t *testing.T) {
	ctx := salescontext.New("s1")
	first := Suggest(ctx, intent.Detection{Type: intent.TypeConsulting})
	for i := 0; i < 10; i++ {
		again := Suggest(ctx, intent.Detection{Type: intent.TypeConsulting})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking not deterministic:\n%v\n%v", first, again)
		}
	}
	want := []string{"audit", "roi", "case_studies"}
	for i, s := range first {
		if s.Capability != want[i] {
			t.Fatalf("order=%v, want capabilities %v", first, want)
		}
	}
}

func TestSuggest_SeniorityBoostsROIAndAudit(t *testing.T) {
	ctx := salescontext.New("s1")
	ctx.Person = &salescontext.PersonProfile{Title: "VP of Engineering"}

	got := Suggest(ctx, intent.Detection{Type: intent.TypeWorkshop})
	if len(got) == 0 {
		t.Fatalf("no suggestions")
	}
	// roi scores 40+20 with the boost, ahead of the outline at 50.
	if got[0].Capability != "roi" {
		t.Fatalf("top=%s, want roi; full=%v", got[0].Capability, got)
	}
}

func TestSuggest_RegulatedIndustryBoostsCompliance(t *testing.T) {
	ctx := salescontext.New("s1")
	ctx.Company = &salescontext.CompanyProfile{Industry: "Healthcare"}

	got := Suggest(ctx, intent.Detection{Type: intent.TypeConsulting})
	if got[0].Capability != "compliance_export" {
		t.Fatalf("top=%s, want compliance_export; full=%v", got[0].Capability, got)
	}
}

func TestSuggest_ObjectionInjectsExecutiveMemoAtTop(t *testing.T) {
	ctx := salescontext.New("s1")
	got := Suggest(ctx, intent.Detection{Type: intent.TypeWorkshop, Objection: "pricing"})
	if got[0].Capability != "executive_memo" {
		t.Fatalf("top=%s, want executive_memo; full=%v", got[0].Capability, got)
	}
	if got[0].Payload["objection"] != "pricing" {
		t.Fatalf("payload=%v", got[0].Payload)
	}

	// Once the memo has been sent its capability is recorded and it is
	// not injected again.
	ctx.RecordCapability("executive_memo")
	got = Suggest(ctx, intent.Detection{Type: intent.TypeWorkshop, Objection: "pricing"})
	for _, s := range got {
		if s.Capability == "executive_memo" {
			t.Fatalf("memo re-suggested after use: %v", got)
		}
	}
}

func TestSuggest_UnknownIntentFallsBackToOtherPool(t *testing.T) {
	ctx := salescontext.New("s1")
	got := Suggest(ctx, intent.Detection{Type: intent.Type("mystery")})
	if len(got) == 0 || got[0].Capability != "demo" {
		t.Fatalf("fallback pool not used: %v", got)
	}
}

func TestSuggest_NilContext(t *testing.T) {
	got := Suggest(nil, intent.Detection{Type: intent.TypeOther})
	if len(got) == 0 {
		t.Fatalf("nil context should still produce pool suggestions")
	}
}
