// Package consult turns an entity and a patient profile into LLM prompts and
// runs the follow-up conversation about that one entity.
package consult

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

// Assembler builds prompts in one output language. It holds no state beyond
// the locale, so one value can be shared freely.
type Assembler struct {
	Locale Locale
}

func NewAssembler(l Locale) Assembler {
	return Assembler{Locale: l}
}

// AnalysisPrompt is the one-shot prompt for the initial analysis.
func (a Assembler) AnalysisPrompt(e content.Analyzable, p profile.Profile) string {
	pb := a.Locale.book()
	var b strings.Builder

	b.WriteString(pb.persona)
	b.WriteString(pb.language)
	b.WriteString("\n\n")

	a.writeProfile(&b, p)
	b.WriteString("\n")

	b.WriteString(pb.entityHeader)
	b.WriteString("\n")
	b.WriteString(e.PromptContext())
	b.WriteString("\n\n")

	b.WriteString(pb.taskHeader)
	b.WriteString("\n")
	b.WriteString(pb.taskIntro)
	b.WriteString("\n\n")

	headings, ok := pb.headings[e.Kind()]
	if !ok {
		headings = pb.headings[content.KindArticle]
	}
	for _, h := range headings {
		fmt.Fprintf(&b, "**%s**\n(%s)\n\n", h.title, h.instruction)
	}

	b.WriteString(pb.closing)
	return b.String()
}

// SystemInstruction scopes a follow-up conversation to e and p.
func (a Assembler) SystemInstruction(e content.Analyzable, p profile.Profile) string {
	pb := a.Locale.book()
	var b strings.Builder

	b.WriteString(pb.chatPersona)
	b.WriteString("\n\n")
	b.WriteString(pb.entityHeader)
	b.WriteString("\n")
	b.WriteString(e.PromptContext())
	b.WriteString("\n\n")

	a.writeProfile(&b, p)
	b.WriteString("\n")

	for _, r := range pb.chatRules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "- %q\n", pb.disclaimer)
	return b.String()
}

func (a Assembler) Disclaimer() string { return a.Locale.book().disclaimer }

func (a Assembler) writeProfile(b *strings.Builder, p profile.Profile) {
	pb := a.Locale.book()
	f := pb.fields

	interests := lo.Map(p.Interests, func(i profile.InterestArea, _ int) string { return label(pb.interests, i) })
	mutation := strings.TrimSpace(p.GeneticProfile)
	if mutation == "" {
		mutation = pb.none
	}

	b.WriteString(pb.profileHeader)
	b.WriteString("\n")
	fmt.Fprintf(b, "- %s: %s\n", f.ageGroup, ageLine(pb, p))
	fmt.Fprintf(b, "- %s: %s\n", f.mutation, mutation)
	fmt.Fprintf(b, "- %s: %s\n", f.ambulatory, label(pb.ambulatory, p.Ambulatory))
	fmt.Fprintf(b, "- %s: %s\n", f.steroids, label(pb.steroids, p.OnSteroids))
	fmt.Fprintf(b, "- %s: %s\n", f.region, label(pb.regions, p.Region))
	fmt.Fprintf(b, "- %s: %s\n", f.interests, lo.Ternary(len(interests) > 0, strings.Join(interests, ", "), pb.none))
	if notes := strings.TrimSpace(p.ClinicalNotes); notes != "" {
		fmt.Fprintf(b, "- %s: %s\n", f.notes, notes)
	}
}

func ageLine(pb *phrasebook, p profile.Profile) string {
	group := label(pb.ageGroups, p.AgeGroup)
	if p.Age > 0 {
		return fmt.Sprintf("%s (%d)", group, p.Age)
	}
	return group
}
