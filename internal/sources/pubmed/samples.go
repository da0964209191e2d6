package pubmed

import "github.com/hanzhi-dmd/companion/internal/content"

// SampleArticles is served whenever PubMed is unreachable or has nothing in
// the requested window. A fresh slice is returned on every call.
func SampleArticles() []content.Article {
	return []content.Article{
		{
			ID:    "mock1",
			Title: "Safety and Efficacy of Next-Gen Exon Skipping in Duchenne Muscular Dystrophy",
			Abstract: "BACKGROUND: Duchenne muscular dystrophy (DMD) is characterized by progressive muscle weakness. " +
				"METHODS: This Phase 3 trial evaluated the safety of a new antisense oligonucleotide. " +
				"RESULTS: Participants showed statistically significant improvement in dystrophin production compared to placebo. 6-minute walk test stabilized. " +
				"CONCLUSIONS: The therapy appears safe and effective for patients with exon 51 skipping amenable mutations.",
			Authors:         []string{"Smith J.", "Doe A.", "Gupta R."},
			PublicationDate: "2024-05-15",
			Journal:         "New England Journal of Medicine",
			URL:             "https://pubmed.ncbi.nlm.nih.gov/",
			Tags:            []content.Tag{content.TagClinicalTrial},
		},
		{
			ID:    "mock2",
			Title: "Cardiac Management Standards in Duchenne: A Consensus Statement",
			Abstract: "Cardiomyopathy is a leading cause of mortality in DMD. This systematic review updates the 2018 guidelines. " +
				"We recommend starting ACE inhibitors earlier in the disease course, prior to onset of left ventricular dysfunction. " +
				"Regular MRI monitoring is suggested annually starting at age 10.",
			Authors:         []string{"Heart Working Group", "Miller T."},
			PublicationDate: "2024-04-20",
			Journal:         "The Lancet Neurology",
			URL:             "https://pubmed.ncbi.nlm.nih.gov/",
			Tags:            []content.Tag{content.TagGuideline},
		},
		{
			ID:    "mock3",
			Title: "AAV Micro-dystrophin Gene Therapy: 5 Year Follow-up",
			Abstract: "Long term data from the initial cohort of gene therapy recipients. " +
				"We observed sustained expression of micro-dystrophin in skeletal muscle, though viral load shedding has ceased. " +
				"Functional outcomes remain stable in 60% of the cohort.",
			Authors:         []string{"Chen L.", "Weiss P."},
			PublicationDate: "2024-06-01",
			Journal:         "Nature Medicine",
			URL:             "https://pubmed.ncbi.nlm.nih.gov/",
			Tags:            []content.Tag{content.TagResearch},
		},
	}
}
