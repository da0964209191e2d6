package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/hanzhi-dmd/companion/internal/profile"
)

func TestResult_StatusVariants(t *testing.T) {
	fallback := []Article{{ID: "fallback"}}

	ok := Ok([]Article{{ID: "1"}})
	if ok.Status != StatusOK || len(ok.OrElse(fallback)) != 1 || ok.OrElse(fallback)[0].ID != "1" {
		t.Fatalf("unexpected ok result: %+v", ok)
	}

	empty := Ok[Article](nil)
	if empty.Status != StatusEmpty {
		t.Fatalf("expected empty status, got %q", empty.Status)
	}
	if got := empty.OrElse(fallback); got[0].ID != "fallback" {
		t.Fatalf("empty result should fall back")
	}

	failed := Failed[Article](errors.New("boom"))
	if failed.Status != StatusFailed || failed.Err == nil {
		t.Fatalf("unexpected failed result: %+v", failed)
	}
}

func TestDecode_Variants(t *testing.T) {
	a, err := Decode(KindArticle, []byte(`{"id":"123","title":"T","abstract":"A"}`))
	if err != nil {
		t.Fatalf("decode article: %v", err)
	}
	if a.Kind() != KindArticle || a.EntityID() != "123" {
		t.Fatalf("unexpected article: %+v", a)
	}

	tr, err := Decode(KindTrial, []byte(`{"nctId":"NCT01","title":"Trial","regions":["asia"]}`))
	if err != nil {
		t.Fatalf("decode trial: %v", err)
	}
	if !strings.Contains(tr.PromptContext(), "亚洲") {
		t.Fatalf("trial context should name its regions: %q", tr.PromptContext())
	}

	if _, err := Decode(KindDrug, []byte(`{"genericName":"x"}`)); err == nil {
		t.Fatalf("expected error for drug without brand name")
	}
	if _, err := Decode("device", []byte(`{}`)); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDrug_DisplayTitlePrefersLocalName(t *testing.T) {
	d := Drug{BrandName: "Agamree", BrandNameLocal: "阿加瑞"}
	if d.DisplayTitle() != "阿加瑞" {
		t.Fatalf("unexpected title %q", d.DisplayTitle())
	}
	d.BrandNameLocal = ""
	if d.DisplayTitle() != "Agamree" {
		t.Fatalf("unexpected title %q", d.DisplayTitle())
	}
	if !strings.Contains(d.PromptContext(), "(N/A)") {
		t.Fatalf("missing local name should render as N/A: %q", d.PromptContext())
	}
}

func TestClinicalTrial_DisplayFields(t *testing.T) {
	tr := ClinicalTrial{NCTID: "NCT9", Title: "T", Status: "RECRUITING", Regions: []profile.Region{profile.RegionEurope}}
	f := tr.DisplayFields()
	if f.Subtitle != "Phase: N/A" {
		t.Fatalf("unexpected subtitle %q", f.Subtitle)
	}
	if len(f.Badges) != 2 {
		t.Fatalf("unexpected badges %v", f.Badges)
	}
}
