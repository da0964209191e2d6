// Package pubmed normalizes NCBI E-utilities search results into articles.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/logger"
)

const (
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	defaultRetMax  = 15
	diseaseTerm    = `("Duchenne Muscular Dystrophy"[MeSH Terms] OR "Duchenne"[All Fields])`
)

type Client struct {
	BaseURL string
	APIKey  string
	RetMax  int
	HTTP    *http.Client
	Now     func() time.Time
	Log     *logger.Logger
}

func NewClient(baseURL, apiKey string, retMax int, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if retMax <= 0 {
		retMax = defaultRetMax
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		RetMax:  retMax,
		HTTP:    &http.Client{Timeout: timeout},
		Now:     time.Now,
		Log:     logger.OrNop(log).With("source", "pubmed"),
	}
}

// Articles never returns an empty list: fetch failures and empty result sets
// both fall back to the built-in sample articles.
func (c *Client) Articles(ctx context.Context, months int) []content.Article {
	res := c.Search(ctx, months)
	switch res.Status {
	case content.StatusFailed:
		c.Log.Warn("pubmed unavailable, serving sample articles", "months", months, "err", res.Err)
	case content.StatusEmpty:
		c.Log.Info("pubmed returned no articles, serving sample articles", "months", months)
	}
	return res.OrElse(SampleArticles())
}

// Search runs esearch then efetch and reports the outcome without applying
// any fallback.
func (c *Client) Search(ctx context.Context, months int) content.Result[content.Article] {
	if months <= 0 {
		months = 1
	}
	ids, err := c.searchIDs(ctx, months)
	if err != nil {
		return content.Failed[content.Article](err)
	}
	if len(ids) == 0 {
		return content.Ok[content.Article](nil)
	}
	articles, err := c.fetchArticles(ctx, ids)
	if err != nil {
		return content.Failed[content.Article](err)
	}
	return content.Ok(articles)
}

// Term builds the esearch query for a lookback window ending at now.
func Term(now time.Time, months int) string {
	start := now.AddDate(0, -months, 0)
	format := func(t time.Time) string {
		return fmt.Sprintf("%d/%d/%d", t.Year(), int(t.Month()), t.Day())
	}
	return fmt.Sprintf(`%s AND ("%s"[Date - Publication] : "%s"[Date - Publication])`,
		diseaseTerm, format(start), format(now))
}

type esearchResp struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (c *Client) searchIDs(ctx context.Context, months int) ([]string, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", Term(c.now(), months))
	q.Set("retmode", "json")
	q.Set("retmax", strconv.Itoa(c.RetMax))
	q.Set("sort", "date")
	c.withKey(q)

	body, err := c.get(ctx, "/esearch.fcgi", q)
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	defer body.Close()

	var decoded esearchResp
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("pubmed search: decode: %w", err)
	}
	return lo.Compact(decoded.Result.IDList), nil
}

func (c *Client) fetchArticles(ctx context.Context, ids []string) ([]content.Article, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(ids, ","))
	q.Set("retmode", "xml")
	c.withKey(q)

	body, err := c.get(ctx, "/efetch.fcgi", q)
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}
	defer body.Close()

	return ParseArticles(body)
}

// ParseArticles normalizes an efetch XML document.
func ParseArticles(r io.Reader) ([]content.Article, error) {
	var set articleSet
	if err := xml.NewDecoder(r).Decode(&set); err != nil {
		return nil, fmt.Errorf("pubmed fetch: decode xml: %w", err)
	}
	out := make([]content.Article, 0, len(set.Articles))
	for _, pa := range set.Articles {
		pmid := string(pa.Citation.PMID)
		if pmid == "" {
			continue
		}
		art := pa.Citation.Article
		title := string(art.Title)
		pubTypes := lo.Map(art.PublicationTypes, func(t innerText, _ int) string { return string(t) })

		out = append(out, content.Article{
			ID:              pmid,
			Title:           title,
			Abstract:        joinAbstract(art.Abstract),
			Authors:         authorNames(art.Authors),
			PublicationDate: formatPubDate(art.Journal.Issue.PubDate),
			Journal:         lo.Ternary(art.Journal.Title != "", string(art.Journal.Title), string(art.Journal.ISOAbbreviation)),
			URL:             "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
			Tags:            []content.Tag{Classify(title, pubTypes)},
		})
	}
	return out, nil
}

// Classify picks exactly one tag; the first matching rule wins:
// clinical trial, then review, then guideline, else research.
func Classify(title string, publicationTypes []string) content.Tag {
	t := strings.ToLower(title)
	types := lo.Map(publicationTypes, func(s string, _ int) string { return strings.ToLower(s) })
	anyType := func(needles ...string) bool {
		return lo.SomeBy(types, func(pt string) bool {
			return lo.SomeBy(needles, func(n string) bool { return strings.Contains(pt, n) })
		})
	}

	switch {
	case anyType("clinical trial") || strings.Contains(t, "trial") || strings.Contains(t, "phase"):
		return content.TagClinicalTrial
	case anyType("review") || strings.Contains(t, "review"):
		return content.TagReview
	case anyType("guideline", "consensus") || strings.Contains(t, "guideline"):
		return content.TagGuideline
	default:
		return content.TagResearch
	}
}

const noAbstract = "No abstract available."

func joinAbstract(parts []abstractText) string {
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Label != "" && p.Label != "UNLABELLED" {
			chunks = append(chunks, p.Label+": "+p.Text)
			continue
		}
		chunks = append(chunks, p.Text)
	}
	s := strings.TrimSpace(strings.Join(chunks, "\n\n"))
	if s == "" {
		return noAbstract
	}
	return s
}

func authorNames(authors []authorXML) []string {
	return lo.FilterMap(authors, func(a authorXML, _ int) (string, bool) {
		last := strings.TrimSpace(a.LastName)
		if last == "" {
			return "", false
		}
		return strings.TrimSpace(last + " " + strings.TrimSpace(a.Initials)), true
	})
}

func formatPubDate(d *pubDate) string {
	if d == nil {
		return "Unknown Date"
	}
	if md := strings.TrimSpace(d.MedlineDate); md != "" {
		return md
	}
	parts := lo.Compact([]string{strings.TrimSpace(d.Year), strings.TrimSpace(d.Month), strings.TrimSpace(d.Day)})
	return strings.Join(parts, "-")
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) withKey(q url.Values) {
	if c.APIKey != "" {
		q.Set("api_key", c.APIKey)
	}
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
