package profile

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// NotProvided fills the optional mutation descriptor when the form leaves it blank.
const NotProvided = "未填写"

// Draft is the settings form while the user is filling it in. Every field is
// optional here; Submit decides whether the result is usable.
type Draft struct {
	Age            int              `json:"age,omitempty"`
	AgeGroup       AgeGroup         `json:"ageGroup,omitempty"`
	GeneticProfile string           `json:"geneticProfile,omitempty"`
	Ambulatory     AmbulatoryStatus `json:"ambulatoryStatus,omitempty"`
	OnSteroids     SteroidUse       `json:"onSteroids,omitempty"`
	Region         Region           `json:"region,omitempty"`
	Interests      []InterestArea   `json:"interests,omitempty"`
	ClinicalNotes  string           `json:"clinicalNotes,omitempty"`
}

// DraftFrom seeds the form from a stored profile.
func DraftFrom(p *Profile) Draft {
	if p == nil {
		return Draft{}
	}
	return Draft{
		Age:            p.Age,
		AgeGroup:       p.AgeGroup,
		GeneticProfile: p.GeneticProfile,
		Ambulatory:     p.Ambulatory,
		OnSteroids:     p.OnSteroids,
		Region:         p.Region,
		Interests:      append([]InterestArea(nil), p.Interests...),
		ClinicalNotes:  p.ClinicalNotes,
	}
}

// Toggle adds or removes an interest, like the multi-select chips.
func (d *Draft) Toggle(area InterestArea) {
	if lo.Contains(d.Interests, area) {
		d.Interests = lo.Without(d.Interests, area)
		return
	}
	d.Interests = append(d.Interests, area)
}

// Complete reports whether the submit button would be enabled.
func (d Draft) Complete() bool {
	return (d.Age > 0 || d.AgeGroup != "") && d.Ambulatory != "" && d.Region != ""
}

// Submit turns the draft into a configured profile. An incomplete draft
// yields ErrIncomplete and a zero Profile.
func (d Draft) Submit() (Profile, error) {
	if !d.Complete() {
		return Profile{}, ErrIncomplete
	}
	group := d.AgeGroup
	if d.Age > 0 {
		group = AgeGroupFor(d.Age)
	}
	genetic := strings.TrimSpace(d.GeneticProfile)
	if genetic == "" {
		genetic = NotProvided
	}
	steroids := d.OnSteroids
	if steroids == "" {
		steroids = SteroidsUnsure
	}
	p := Profile{
		Configured:     true,
		Age:            d.Age,
		AgeGroup:       group,
		GeneticProfile: genetic,
		Ambulatory:     d.Ambulatory,
		OnSteroids:     steroids,
		Region:         d.Region,
		Interests:      lo.Uniq(append([]InterestArea{}, d.Interests...)),
		ClinicalNotes:  strings.TrimSpace(d.ClinicalNotes),
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("submit profile: %w", err)
	}
	return p, nil
}
