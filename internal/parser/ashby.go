package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// AshbyPosting is the structured posting shape returned by the Ashby job
// board API and carried as a candidate payload.
type AshbyPosting struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	LocationName         string `json:"locationName"`
	EmploymentType       string `json:"employmentType,omitempty"`
	DescriptionPlainText string `json:"descriptionPlainText,omitempty"`
}

// ashbyAppData is the part of window.__appData that describes the posting.
type ashbyAppData struct {
	Posting *struct {
		Title                string `json:"title"`
		LocationName         string `json:"locationName"`
		DescriptionPlainText string `json:"descriptionPlainText"`
		DescriptionHTML      string `json:"descriptionHtml"`
	} `json:"posting"`
	Organization *struct {
		Name          string `json:"name"`
		PublicWebsite string `json:"publicWebsite"`
	} `json:"organization"`
}

// Ashby parses jobs.ashbyhq.com postings from either a structured API payload
// or the rendered page.
type Ashby struct{}

// Platform implements Parser.
func (Ashby) Platform() jobs.Platform { return jobs.PlatformAshby }

// Parse implements Parser. With a payload the title and location come from
// it and the page, when fetched, only contributes description and links.
func (Ashby) Parse(in Input) (jobs.JobPosting, error) {
	const p = jobs.PlatformAshby
	segs := pathSegments(in.URL)
	if len(segs) < 2 {
		return jobs.JobPosting{}, failf(p, in.URL, nil, "url has no posting id")
	}
	posting := jobs.JobPosting{Company: segs[0]}

	if len(in.Payload) > 0 {
		var api AshbyPosting
		if err := json.Unmarshal(in.Payload, &api); err != nil {
			return jobs.JobPosting{}, failf(p, in.URL, err, "decode structured payload")
		}
		if api.ID != "" && api.ID != segs[1] {
			return jobs.JobPosting{}, failf(p, in.URL, nil, "payload id %q does not match url", api.ID)
		}
		posting.Title = cleanText(api.Title)
		posting.Location = normalizeLocation(api.LocationName)
		posting.Description = cleanText(api.DescriptionPlainText)
	} else if len(in.Body) == 0 {
		return jobs.JobPosting{}, failf(p, in.URL, nil, "empty body")
	}

	if len(in.Body) == 0 {
		return posting, nil
	}
	doc, err := newDocument(in.Body)
	if err != nil {
		if len(in.Payload) > 0 {
			return posting, nil
		}
		return jobs.JobPosting{}, failf(p, in.URL, err, "read html")
	}
	fillAshbyFromPage(&posting, doc, in.URL)
	return posting, nil
}

func fillAshbyFromPage(posting *jobs.JobPosting, doc *goquery.Document, pageURL string) {
	app, _ := ashbyAppDataFrom(doc)

	if posting.Title == "" {
		switch {
		case app.Posting != nil && app.Posting.Title != "":
			posting.Title = cleanText(app.Posting.Title)
		default:
			posting.Title = ashbyTitle(metaContent(doc, "og:title"))
		}
	}
	if posting.Location == "" && app.Posting != nil {
		posting.Location = normalizeLocation(app.Posting.LocationName)
	}
	if posting.Description == "" {
		if app.Posting != nil {
			posting.Description = firstNonEmpty(cleanText(app.Posting.DescriptionPlainText), htmlToText(app.Posting.DescriptionHTML))
		}
		if posting.Description == "" {
			posting.Description = firstText(doc, "div.job-description", `[data-testid="job-description"]`, "div.posting-description")
		}
		if posting.Description == "" {
			posting.Description = firstNonEmpty(metaContent(doc, "og:description", "description"), bodyText(doc))
		}
	}
	if app.Organization != nil {
		posting.Signals.WebsiteHint = strings.TrimSpace(app.Organization.PublicWebsite)
	}
	posting.Signals.Links = outboundLinks(doc, pageURL)
}

// ashbyTitle strips the " @ Company" suffix Ashby appends to og:title.
func ashbyTitle(ogTitle string) string {
	if i := strings.LastIndex(ogTitle, " @ "); i >= 0 {
		ogTitle = ogTitle[:i]
	}
	return cleanText(ogTitle)
}

func ashbyAppDataFrom(doc *goquery.Document) (ashbyAppData, bool) {
	const marker = "window.__appData"
	var (
		data  ashbyAppData
		found bool
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, marker)
		if idx < 0 {
			return true
		}
		rest := text[idx+len(marker):]
		eq := strings.Index(rest, "=")
		if eq < 0 {
			return true
		}
		dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(rest[eq+1:])))
		if err := dec.Decode(&data); err != nil {
			return true
		}
		found = true
		return false
	})
	return data, found
}
