package pubmed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hanzhi-dmd/companion/internal/content"
)

const efetchFixture = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">111</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><Year>2025</Year><Month>Mar</Month><Day>04</Day></PubDate></JournalIssue>
          <Title>Neuromuscular Disorders</Title>
          <ISOAbbreviation>Neuromuscul Disord</ISOAbbreviation>
        </Journal>
        <ArticleTitle>A phase 2 study of <i>givinostat</i> in boys with DMD</ArticleTitle>
        <Abstract>
          <AbstractText Label="BACKGROUND">Background text.</AbstractText>
          <AbstractText Label="RESULTS">Results text.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Rossi</LastName><Initials>M</Initials></Author>
          <Author><CollectiveName>DMD Group</CollectiveName></Author>
        </AuthorList>
        <PublicationTypeList><PublicationType>Journal Article</PublicationType></PublicationTypeList>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">222</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><MedlineDate>2024 Nov-Dec</MedlineDate></PubDate></JournalIssue>
          <ISOAbbreviation>J Child Neurol</ISOAbbreviation>
        </Journal>
        <ArticleTitle>Cardiac care in Duchenne</ArticleTitle>
        <PublicationTypeList><PublicationType>Review</PublicationType></PublicationTypeList>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func newTestServer(t *testing.T, ids []string, efetch string, efetchStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			if r.URL.Query().Get("retmode") != "json" {
				t.Errorf("esearch should request json")
			}
			json.NewEncoder(w).Encode(map[string]any{
				"esearchresult": map[string]any{"idlist": ids},
			})
		case "/efetch.fcgi":
			if efetchStatus != 0 {
				w.WriteHeader(efetchStatus)
				return
			}
			w.Write([]byte(efetch))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
}

func TestSearch_NormalizesRecords(t *testing.T) {
	srv := newTestServer(t, []string{"111", "222"}, efetchFixture, 0)
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, 0, nil)
	res := c.Search(context.Background(), 3)
	if res.Status != content.StatusOK {
		t.Fatalf("expected ok, got %s (%v)", res.Status, res.Err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(res.Items))
	}

	first := res.Items[0]
	if first.Title != "A phase 2 study of givinostat in boys with DMD" {
		t.Errorf("nested markup lost: %q", first.Title)
	}
	if first.Abstract != "BACKGROUND: Background text.\n\nRESULTS: Results text." {
		t.Errorf("unexpected abstract: %q", first.Abstract)
	}
	if len(first.Authors) != 1 || first.Authors[0] != "Rossi M" {
		t.Errorf("unexpected authors: %v", first.Authors)
	}
	if first.PublicationDate != "2025-Mar-04" {
		t.Errorf("unexpected date: %q", first.PublicationDate)
	}
	if first.URL != "https://pubmed.ncbi.nlm.nih.gov/111/" {
		t.Errorf("unexpected url: %q", first.URL)
	}

	second := res.Items[1]
	if second.PublicationDate != "2024 Nov-Dec" {
		t.Errorf("MedlineDate should win: %q", second.PublicationDate)
	}
	if second.Journal != "J Child Neurol" {
		t.Errorf("journal should fall back to abbreviation: %q", second.Journal)
	}
	if second.Abstract != noAbstract {
		t.Errorf("missing abstract placeholder: %q", second.Abstract)
	}

	for _, a := range res.Items {
		if len(a.Tags) != 1 {
			t.Errorf("article %s should carry one tag, got %v", a.ID, a.Tags)
		}
	}
	if first.Tags[0] != content.TagClinicalTrial || second.Tags[0] != content.TagReview {
		t.Errorf("unexpected tags: %v %v", first.Tags, second.Tags)
	}
}

func TestArticles_FallsBackOnEmptyAndFailure(t *testing.T) {
	empty := newTestServer(t, nil, "", 0)
	defer empty.Close()

	c := NewClient(empty.URL, "", 0, 0, nil)
	if res := c.Search(context.Background(), 1); res.Status != content.StatusEmpty {
		t.Fatalf("expected empty status, got %s", res.Status)
	}
	if got := c.Articles(context.Background(), 1); len(got) == 0 || got[0].ID != "mock1" {
		t.Fatalf("expected sample articles, got %v", got)
	}

	broken := newTestServer(t, []string{"1"}, "", http.StatusBadGateway)
	defer broken.Close()

	c = NewClient(broken.URL, "", 0, 0, nil)
	if res := c.Search(context.Background(), 1); res.Status != content.StatusFailed {
		t.Fatalf("expected failed status, got %s", res.Status)
	}
	if got := c.Articles(context.Background(), 12); len(got) != len(SampleArticles()) {
		t.Fatalf("expected sample articles on failure, got %d", len(got))
	}
}

func TestArticles_FallsBackOnMalformedBodies(t *testing.T) {
	truncated := newTestServer(t, []string{"111"}, `<PubmedArticleSet><PubmedArticle>`, 0)
	defer truncated.Close()

	c := NewClient(truncated.URL, "", 0, 0, nil)
	if res := c.Search(context.Background(), 1); res.Status != content.StatusFailed || res.Err == nil {
		t.Fatalf("truncated efetch should fail, got %s (%v)", res.Status, res.Err)
	}
	if got := c.Articles(context.Background(), 1); len(got) != len(SampleArticles()) {
		t.Fatalf("expected sample articles on bad xml, got %d", len(got))
	}

	notJSON := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/esearch.fcgi" {
			t.Errorf("efetch should not run after a bad search: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>rate limited</html>"))
	}))
	defer notJSON.Close()

	c = NewClient(notJSON.URL, "", 0, 0, nil)
	if res := c.Search(context.Background(), 3); res.Status != content.StatusFailed {
		t.Fatalf("non-json esearch should fail, got %s", res.Status)
	}
	if got := c.Articles(context.Background(), 3); len(got) != len(SampleArticles()) {
		t.Fatalf("expected sample articles on bad json, got %d", len(got))
	}
}

func TestTerm_DateWindow(t *testing.T) {
	now := time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)
	term := Term(now, 3)
	if !strings.Contains(term, `"2025/3/9"[Date - Publication] : "2025/6/9"[Date - Publication]`) {
		t.Fatalf("unexpected term: %s", term)
	}
	if !strings.HasPrefix(term, diseaseTerm) {
		t.Fatalf("term should start with the disease filter: %s", term)
	}
}

func TestClassify_Priority(t *testing.T) {
	cases := []struct {
		title string
		types []string
		want  content.Tag
	}{
		{"Exon skipping outcomes", []string{"Clinical Trial, Phase III"}, content.TagClinicalTrial},
		{"A review of trial designs", nil, content.TagClinicalTrial},
		{"Steroid regimens", []string{"Systematic Review"}, content.TagReview},
		{"Care considerations", []string{"Practice Guideline"}, content.TagGuideline},
		{"Consensus on respiratory care", []string{"Consensus Development Conference"}, content.TagGuideline},
		{"Dystrophin expression in mice", []string{"Journal Article"}, content.TagResearch},
	}
	for _, tc := range cases {
		if got := Classify(tc.title, tc.types); got != tc.want {
			t.Errorf("Classify(%q, %v) = %s, want %s", tc.title, tc.types, got, tc.want)
		}
	}
}
