// Package content defines the canonical entity shapes every upstream provider
// is normalized into.
package content

import (
	"fmt"
	"strings"

	"github.com/hanzhi-dmd/companion/internal/profile"
)

type Kind string

const (
	KindArticle Kind = "article"
	KindTrial   Kind = "trial"
	KindDrug    Kind = "drug"
)

// Tag classifies an article. Normalized articles carry exactly one.
type Tag string

const (
	TagClinicalTrial Tag = "clinical_trial"
	TagReview        Tag = "review"
	TagGuideline     Tag = "guideline"
	TagResearch      Tag = "research"
)

var tagLabels = map[Tag]string{
	TagClinicalTrial: "临床试验",
	TagReview:        "综述",
	TagGuideline:     "指南/共识",
	TagResearch:      "研究论文",
}

func (t Tag) Label() string {
	if l, ok := tagLabels[t]; ok {
		return l
	}
	return "文章"
}

// Fields is what a card shows for an entity.
type Fields struct {
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Badges   []string `json:"badges,omitempty"`
	Link     string   `json:"link,omitempty"`
}

// Analyzable is the one capability the consultation engine needs from an
// entity, whatever its variant.
type Analyzable interface {
	Kind() Kind
	EntityID() string
	DisplayTitle() string
	PromptContext() string
	DisplayFields() Fields
}

type Article struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract"`
	Authors         []string `json:"authors"`
	PublicationDate string   `json:"publicationDate"`
	Journal         string   `json:"journal"`
	URL             string   `json:"url"`
	Tags            []Tag    `json:"tags"`
}

func (a Article) Kind() Kind           { return KindArticle }
func (a Article) EntityID() string     { return a.ID }
func (a Article) DisplayTitle() string { return a.Title }

func (a Article) PromptContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Article title: %s\n", a.Title)
	if a.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s (%s)\n", a.Journal, a.PublicationDate)
	}
	if len(a.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(a.Authors, ", "))
	}
	fmt.Fprintf(&b, "Abstract: %s", a.Abstract)
	return b.String()
}

func (a Article) DisplayFields() Fields {
	badges := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		badges = append(badges, t.Label())
	}
	return Fields{
		Kind:     KindArticle,
		ID:       a.ID,
		Title:    a.Title,
		Subtitle: strings.TrimSpace(a.Journal + " · " + a.PublicationDate),
		Badges:   badges,
		Link:     a.URL,
	}
}

type ClinicalTrial struct {
	NCTID       string           `json:"nctId"`
	Title       string           `json:"title"`
	Status      string           `json:"status"`
	Phases      []string         `json:"phase"`
	Conditions  []string         `json:"conditions"`
	Locations   []string         `json:"locations"`
	Regions     []profile.Region `json:"regions"`
	Summary     string           `json:"summary"`
	Eligibility string           `json:"eligibility"`
	LastUpdate  string           `json:"lastUpdate"`
}

func (t ClinicalTrial) Kind() Kind           { return KindTrial }
func (t ClinicalTrial) EntityID() string     { return t.NCTID }
func (t ClinicalTrial) DisplayTitle() string { return t.Title }

func (t ClinicalTrial) PromptContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clinical trial: %s\n", t.Title)
	fmt.Fprintf(&b, "ID: %s\n", t.NCTID)
	fmt.Fprintf(&b, "Status: %s\n", t.Status)
	if len(t.Phases) > 0 {
		fmt.Fprintf(&b, "Phase: %s\n", strings.Join(t.Phases, ", "))
	}
	if len(t.Regions) > 0 {
		labels := make([]string, 0, len(t.Regions))
		for _, r := range t.Regions {
			labels = append(labels, r.Label())
		}
		fmt.Fprintf(&b, "Site regions: %s\n", strings.Join(labels, ", "))
	}
	fmt.Fprintf(&b, "Eligibility: %s\n", t.Eligibility)
	fmt.Fprintf(&b, "Summary: %s", t.Summary)
	return b.String()
}

func (t ClinicalTrial) DisplayFields() Fields {
	phase := "N/A"
	if len(t.Phases) > 0 {
		phase = strings.Join(t.Phases, ", ")
	}
	badges := []string{t.Status}
	for _, r := range t.Regions {
		badges = append(badges, r.Label())
	}
	return Fields{
		Kind:     KindTrial,
		ID:       t.NCTID,
		Title:    t.Title,
		Subtitle: "Phase: " + phase,
		Badges:   badges,
		Link:     "https://clinicaltrials.gov/study/" + t.NCTID,
	}
}

type Drug struct {
	BrandName        string `json:"brandName" yaml:"brand_name"`
	BrandNameLocal   string `json:"brandNameCn,omitempty" yaml:"brand_name_local"`
	GenericName      string `json:"genericName" yaml:"generic_name"`
	GenericNameLocal string `json:"genericNameCn,omitempty" yaml:"generic_name_local"`
	Manufacturer     string `json:"manufacturer" yaml:"manufacturer"`
	ApprovalDate     string `json:"approvalDate" yaml:"approval_date"`
	ApprovalYear     string `json:"approvalYear" yaml:"approval_year"`
	Indication       string `json:"indication" yaml:"indication"`
	Dosage           string `json:"dosage" yaml:"dosage"`
	LabelURL         string `json:"labelUrl" yaml:"label_url"`
}

func (d Drug) Kind() Kind       { return KindDrug }
func (d Drug) EntityID() string { return d.BrandName }

// DisplayTitle prefers the localized brand name.
func (d Drug) DisplayTitle() string {
	if d.BrandNameLocal != "" {
		return d.BrandNameLocal
	}
	return d.BrandName
}

func (d Drug) PromptContext() string {
	local := d.BrandNameLocal
	if local == "" {
		local = "N/A"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Drug: %s (%s)\n", d.BrandName, local)
	fmt.Fprintf(&b, "Generic name: %s\n", d.GenericName)
	fmt.Fprintf(&b, "Manufacturer: %s, approved %s\n", d.Manufacturer, d.ApprovalYear)
	fmt.Fprintf(&b, "Indication: %s\n", d.Indication)
	fmt.Fprintf(&b, "Dosage: %s", d.Dosage)
	return b.String()
}

func (d Drug) DisplayFields() Fields {
	return Fields{
		Kind:     KindDrug,
		ID:       d.BrandName,
		Title:    d.DisplayTitle(),
		Subtitle: d.GenericName + " · " + d.Manufacturer,
		Badges:   []string{"FDA " + d.ApprovalYear},
		Link:     d.LabelURL,
	}
}
