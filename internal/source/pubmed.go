package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mhultman/oncodigest/internal/article"
)

const defaultEutilsBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Pubmed pulls recent journal articles via the NCBI E-utilities API:
// esearch for PMIDs matching journals+terms in the window, then efetch
// for the article metadata.
type Pubmed struct {
	journals []string
	terms    []string
	maxItems int
	baseURL  string
	client   *http.Client
}

// NewPubmed creates an adapter searching the given journals for the
// given terms. An empty journal list searches all of PubMed.
func NewPubmed(journals, terms []string, maxItems int) *Pubmed {
	return &Pubmed{
		journals: journals,
		terms:    terms,
		maxItems: maxItems,
		baseURL:  defaultEutilsBaseURL,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *Pubmed) Name() string             { return "PubMed" }
func (p *Pubmed) Kind() article.SourceKind { return article.SourceLiterature }

// Fetch searches and retrieves articles published within the window.
func (p *Pubmed) Fetch(ctx context.Context, w Window) ([]article.RawRecord, error) {
	pmids, err := p.search(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("%w: pubmed search: %v", ErrUnavailable, err)
	}
	if len(pmids) == 0 {
		return nil, nil
	}

	records, err := p.fetchDetails(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("%w: pubmed fetch: %v", ErrUnavailable, err)
	}
	log.Printf("PubMed: %d records for %d PMIDs", len(records), len(pmids))
	return records, nil
}

// buildTerm assembles the esearch query:
// (J1[Journal] OR ...) AND (term1 OR ...) AND start:end[dp]
func (p *Pubmed) buildTerm(w Window) string {
	var parts []string

	if len(p.journals) > 0 {
		var js []string
		for _, j := range p.journals {
			js = append(js, fmt.Sprintf("%q[Journal]", j))
		}
		parts = append(parts, "("+strings.Join(js, " OR ")+")")
	}

	if len(p.terms) > 0 {
		var ts []string
		for _, t := range p.terms {
			ts = append(ts, fmt.Sprintf("%q", t))
		}
		parts = append(parts, "("+strings.Join(ts, " OR ")+")")
	}

	dateRange := fmt.Sprintf("%s:%s[dp]",
		w.Start.Format("2006/01/02"), w.End.Format("2006/01/02"))
	parts = append(parts, dateRange)

	return strings.Join(parts, " AND ")
}

func (p *Pubmed) search(ctx context.Context, w Window) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {p.buildTerm(w)},
		"retmax":  {fmt.Sprintf("%d", p.maxItems)},
		"retmode": {"json"},
		"sort":    {"pub_date"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/esearch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esearch returned %d", resp.StatusCode)
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding esearch response: %w", err)
	}
	return result.ESearchResult.IDList, nil
}

func (p *Pubmed) fetchDetails(ctx context.Context, pmids []string) ([]article.RawRecord, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/efetch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch returned %d", resp.StatusCode)
	}

	var set pubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding efetch response: %w", err)
	}

	var records []article.RawRecord
	for _, pa := range set.Articles {
		if rec, ok := pa.toRecord(); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// --- efetch XML mapping ---

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID          string         `xml:"MedlineCitation>PMID"`
	Title         string         `xml:"MedlineCitation>Article>ArticleTitle"`
	AbstractParts []string       `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Journal       string         `xml:"MedlineCitation>Article>Journal>Title"`
	Authors       []pubmedAuthor `xml:"MedlineCitation>Article>AuthorList>Author"`
	PubDate       pubmedDate     `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate"`
	ArticleIDs    []pubmedID     `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type pubmedAuthor struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubmedDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type pubmedID struct {
	Type  string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

func (pa pubmedArticle) toRecord() (article.RawRecord, bool) {
	if pa.PMID == "" {
		return article.RawRecord{}, false
	}

	var authors []string
	for _, a := range pa.Authors {
		name := strings.TrimSpace(a.ForeName + " " + a.LastName)
		if name != "" {
			authors = append(authors, name)
		}
	}

	var doi string
	for _, id := range pa.ArticleIDs {
		if id.Type == "doi" {
			doi = strings.TrimSpace(id.Value)
			break
		}
	}
	link := "https://pubmed.ncbi.nlm.nih.gov/" + pa.PMID + "/"
	if doi != "" {
		link = "https://doi.org/" + doi
	}

	var parsed *time.Time
	if t, ok := pa.PubDate.parse(); ok {
		parsed = &t
	}

	return article.RawRecord{
		Source:   article.SourceLiterature,
		NativeID: "PMID:" + pa.PMID,
		Title:    pa.Title,
		Authors:  authors,
		Abstract: strings.Join(pa.AbstractParts, " "),
		ParsedAt: parsed,
		URL:      link,
		Venue:    pa.Journal,
	}, true
}

var pubmedMonths = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// parse handles PubMed's loose date encoding: numeric or month-name
// months, with month/day optional.
func (d pubmedDate) parse() (time.Time, bool) {
	if d.Year == "" {
		return time.Time{}, false
	}

	month := time.January
	if m, ok := pubmedMonths[d.Month]; ok {
		month = m
	} else if d.Month != "" {
		var n int
		if _, err := fmt.Sscanf(d.Month, "%d", &n); err == nil && n >= 1 && n <= 12 {
			month = time.Month(n)
		}
	}

	day := 1
	if d.Day != "" {
		fmt.Sscanf(d.Day, "%d", &day)
	}

	var year int
	if _, err := fmt.Sscanf(d.Year, "%d", &year); err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
