package pubmed

import (
	"encoding/xml"
	"strings"
)

// efetch returns a PubmedArticleSet; only the fields we normalize are mapped.
type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    innerText  `xml:"PMID"`
		Article articleXML `xml:"Article"`
	} `xml:"MedlineCitation"`
}

type articleXML struct {
	Journal struct {
		Title           innerText `xml:"Title"`
		ISOAbbreviation innerText `xml:"ISOAbbreviation"`
		Issue           struct {
			PubDate *pubDate `xml:"PubDate"`
		} `xml:"JournalIssue"`
	} `xml:"Journal"`
	Title            innerText      `xml:"ArticleTitle"`
	Abstract         []abstractText `xml:"Abstract>AbstractText"`
	Authors          []authorXML    `xml:"AuthorList>Author"`
	PublicationTypes []innerText    `xml:"PublicationTypeList>PublicationType"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type authorXML struct {
	LastName string `xml:"LastName"`
	Initials string `xml:"Initials"`
}

// innerText keeps the text of nested markup (<i>, <sup>, ...) that a plain
// string field would drop.
type innerText string

func (t *innerText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	s, err := collectText(d)
	if err != nil {
		return err
	}
	*t = innerText(strings.TrimSpace(s))
	return nil
}

type abstractText struct {
	Label string
	Text  string
}

func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	s, err := collectText(d)
	if err != nil {
		return err
	}
	a.Text = strings.TrimSpace(s)
	return nil
}

// collectText consumes tokens up to the end of the current element.
func collectText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch v := tok.(type) {
		case xml.CharData:
			b.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}
