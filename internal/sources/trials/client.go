// Package trials normalizes ClinicalTrials.gov v2 study records.
package trials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

const (
	DefaultBaseURL = "https://clinicaltrials.gov/api/v2/studies"
	condition      = "Duchenne Muscular Dystrophy"
	statusFilter   = "RECRUITING|ENROLLING_BY_INVITATION|ACTIVE_NOT_RECRUITING"
	defaultPage    = 25
)

type Client struct {
	BaseURL  string
	PageSize int
	HTTP     *http.Client
	Log      *logger.Logger
}

func NewClient(baseURL string, pageSize int, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pageSize <= 0 {
		pageSize = defaultPage
	}
	return &Client{
		BaseURL:  baseURL,
		PageSize: pageSize,
		HTTP:     &http.Client{Timeout: timeout},
		Log:      logger.OrNop(log).With("source", "clinicaltrials"),
	}
}

// Trials has no offline fallback: any failure yields an empty list.
func (c *Client) Trials(ctx context.Context) []content.ClinicalTrial {
	res := c.Search(ctx)
	if res.Status == content.StatusFailed {
		c.Log.Warn("clinical trials unavailable", "err", res.Err)
	}
	return res.OrElse([]content.ClinicalTrial{})
}

func (c *Client) Search(ctx context.Context) content.Result[content.ClinicalTrial] {
	q := url.Values{}
	q.Set("query.cond", condition)
	q.Set("filter.overallStatus", statusFilter)
	q.Set("pageSize", strconv.Itoa(lo.Ternary(c.PageSize > 0, c.PageSize, defaultPage)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return content.Failed[content.ClinicalTrial](fmt.Errorf("trials: build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return content.Failed[content.ClinicalTrial](fmt.Errorf("trials: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return content.Failed[content.ClinicalTrial](fmt.Errorf("trials: status %d", resp.StatusCode))
	}

	var page studiesPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return content.Failed[content.ClinicalTrial](fmt.Errorf("trials: decode: %w", err))
	}

	out := make([]content.ClinicalTrial, 0, len(page.Studies))
	for _, s := range page.Studies {
		t, ok := normalize(s)
		if !ok {
			c.Log.Debug("skipping study without nctId")
			continue
		}
		out = append(out, t)
	}
	return content.Ok(out)
}

type studiesPage struct {
	Studies []study `json:"studies"`
}

type study struct {
	Protocol struct {
		Identification struct {
			NCTID         string `json:"nctId"`
			OfficialTitle string `json:"officialTitle"`
			BriefTitle    string `json:"briefTitle"`
		} `json:"identificationModule"`
		Status struct {
			OverallStatus string `json:"overallStatus"`
			LastUpdate    struct {
				Date string `json:"date"`
			} `json:"lastUpdatePostDateStruct"`
		} `json:"statusModule"`
		Design struct {
			Phases []string `json:"phases"`
		} `json:"designModule"`
		Conditions struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
		Locations struct {
			Locations []Location `json:"locations"`
		} `json:"contactsLocationsModule"`
		Description struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
		Eligibility struct {
			Criteria string `json:"eligibilityCriteria"`
		} `json:"eligibilityModule"`
	} `json:"protocolSection"`
}

// Location is one study site as reported upstream.
type Location struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

func normalize(s study) (content.ClinicalTrial, bool) {
	p := s.Protocol
	if p.Identification.NCTID == "" {
		return content.ClinicalTrial{}, false
	}
	title := p.Identification.OfficialTitle
	if title == "" {
		title = p.Identification.BriefTitle
	}
	return content.ClinicalTrial{
		NCTID:       p.Identification.NCTID,
		Title:       title,
		Status:      p.Status.OverallStatus,
		Phases:      nonNil(p.Design.Phases),
		Conditions:  nonNil(p.Conditions.Conditions),
		Locations:   lo.FilterMap(p.Locations.Locations, func(l Location, _ int) (string, bool) { return l.Facility, l.Facility != "" }),
		Regions:     InferRegions(p.Locations.Locations),
		Summary:     p.Description.BriefSummary,
		Eligibility: p.Eligibility.Criteria,
		LastUpdate:  p.Status.LastUpdate.Date,
	}, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// regionTable is matched in order; the order also fixes the output order.
var regionTable = []struct {
	region  profile.Region
	needles []string
}{
	{profile.RegionAsia, []string{"china", "japan", "korea", "taiwan"}},
	{profile.RegionNorthAmerica, []string{"united states", "canada"}},
	{profile.RegionEurope, []string{"france", "germany", "united kingdom", "italy", "spain"}},
	{profile.RegionOceania, []string{"australia", "zealand"}},
	{profile.RegionSouthAmerica, []string{"brazil", "argentina"}},
}

// InferRegions maps site text to coarse regions by case-insensitive substring
// match. Each region appears at most once.
func InferRegions(locs []Location) []profile.Region {
	texts := lo.Map(locs, func(l Location, _ int) string {
		return strings.ToLower(strings.Join([]string{l.Facility, l.City, l.State, l.Country}, " "))
	})
	haystack := strings.Join(texts, "\n")

	out := []profile.Region{}
	for _, row := range regionTable {
		if lo.SomeBy(row.needles, func(n string) bool { return strings.Contains(haystack, n) }) {
			out = append(out, row.region)
		}
	}
	return out
}

// IsRecruiting reports whether new participants can currently enter.
func IsRecruiting(status string) bool {
	switch strings.ToUpper(status) {
	case "RECRUITING", "ENROLLING_BY_INVITATION":
		return true
	}
	return false
}

func StatusLabel(status string) string {
	if IsRecruiting(status) {
		return "正在招募"
	}
	return "活跃未招募"
}

func MatchesRegion(t content.ClinicalTrial, r profile.Region) bool {
	return r != "" && lo.Contains(t.Regions, r)
}
