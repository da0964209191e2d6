// Package profile holds the patient context used to personalize every
// generated explanation.
package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned when age, ambulatory status or region is missing.
	ErrIncomplete = errors.New("profile: age, ambulatory status and region are required")
	// ErrInvalidValue is returned for values outside a closed enum.
	ErrInvalidValue = errors.New("profile: invalid value")
)

type AgeGroup string

const (
	AgeChild AgeGroup = "child"
	AgeAdult AgeGroup = "adult"
)

// AgeGroupFor maps an age in years to its bracket.
func AgeGroupFor(age int) AgeGroup {
	if age < 18 {
		return AgeChild
	}
	return AgeAdult
}

type AmbulatoryStatus string

const (
	Ambulatory AmbulatoryStatus = "ambulatory"
	Wheelchair AmbulatoryStatus = "wheelchair"
	Mixed      AmbulatoryStatus = "mixed"
)

type SteroidUse string

const (
	SteroidsYes    SteroidUse = "yes"
	SteroidsNo     SteroidUse = "no"
	SteroidsUnsure SteroidUse = "unsure"
)

type Region string

const (
	RegionAsia         Region = "asia"
	RegionNorthAmerica Region = "north_america"
	RegionEurope       Region = "europe"
	RegionOceania      Region = "oceania"
	RegionSouthAmerica Region = "south_america"
	RegionOther        Region = "other"
)

var regionLabels = map[Region]string{
	RegionAsia:         "亚洲 (Asia)",
	RegionNorthAmerica: "北美 (North America)",
	RegionEurope:       "欧洲 (Europe)",
	RegionOceania:      "大洋洲 (Oceania)",
	RegionSouthAmerica: "南美 (South America)",
	RegionOther:        "其他 (Other)",
}

// Regions lists the closed region enum in display order.
func Regions() []Region {
	return []Region{RegionAsia, RegionNorthAmerica, RegionEurope, RegionOceania, RegionSouthAmerica, RegionOther}
}

// Label is the bilingual display name.
func (r Region) Label() string {
	if l, ok := regionLabels[r]; ok {
		return l
	}
	return string(r)
}

func (r Region) Valid() bool {
	_, ok := regionLabels[r]
	return ok
}

type InterestArea string

const (
	InterestMedications  InterestArea = "medications"
	InterestDailyCare    InterestArea = "daily_care"
	InterestHeartLungs   InterestArea = "heart_lungs"
	InterestGeneTherapy  InterestArea = "gene_therapy"
	InterestBasicScience InterestArea = "basic_science"
)

var interestLabels = map[InterestArea]string{
	InterestMedications:  "新药与临床试验",
	InterestDailyCare:    "日常护理与康复",
	InterestHeartLungs:   "心脏与肺部健康",
	InterestGeneTherapy:  "基因疗法动态",
	InterestBasicScience: "基础科学研究",
}

func Interests() []InterestArea {
	return []InterestArea{InterestMedications, InterestDailyCare, InterestHeartLungs, InterestGeneTherapy, InterestBasicScience}
}

func (i InterestArea) Label() string {
	if l, ok := interestLabels[i]; ok {
		return l
	}
	return string(i)
}

func (i InterestArea) Valid() bool {
	_, ok := interestLabels[i]
	return ok
}

// Profile is only ever stored fully configured; see Draft.Submit.
type Profile struct {
	Configured     bool             `json:"isConfigured"`
	Age            int              `json:"age,omitempty"`
	AgeGroup       AgeGroup         `json:"ageGroup"`
	GeneticProfile string           `json:"geneticProfile"`
	Ambulatory     AmbulatoryStatus `json:"ambulatoryStatus"`
	OnSteroids     SteroidUse       `json:"onSteroids"`
	Region         Region           `json:"region"`
	Interests      []InterestArea   `json:"interests"`
	ClinicalNotes  string           `json:"clinicalNotes"`
}

// Validate checks the invariants a stored profile must satisfy.
func (p Profile) Validate() error {
	if !p.Configured || p.AgeGroup == "" || p.Ambulatory == "" || p.Region == "" {
		return ErrIncomplete
	}
	switch p.AgeGroup {
	case AgeChild, AgeAdult:
	default:
		return fmt.Errorf("%w: age group %q", ErrInvalidValue, p.AgeGroup)
	}
	switch p.Ambulatory {
	case Ambulatory, Wheelchair, Mixed:
	default:
		return fmt.Errorf("%w: ambulatory status %q", ErrInvalidValue, p.Ambulatory)
	}
	switch p.OnSteroids {
	case SteroidsYes, SteroidsNo, SteroidsUnsure:
	default:
		return fmt.Errorf("%w: steroid use %q", ErrInvalidValue, p.OnSteroids)
	}
	if !p.Region.Valid() {
		return fmt.Errorf("%w: region %q", ErrInvalidValue, p.Region)
	}
	for _, i := range p.Interests {
		if !i.Valid() {
			return fmt.Errorf("%w: interest %q", ErrInvalidValue, i)
		}
	}
	return nil
}
