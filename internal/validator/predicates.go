package validator

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/query"
	"github.com/JakeFAU/ats-job-scout/internal/router"
)

// DefaultClosurePhrases are the closure notices the supported platforms render.
var DefaultClosurePhrases = []string{
	"no longer open",
	"job is closed",
	"position has been filled",
	"job not found",
	"no longer accepting applications",
	"no longer available",
}

// PhrasePredicate closes postings whose description contains a closure phrase.
type PhrasePredicate struct {
	phrases []string
}

// NewPhrasePredicate lowercases and de-duplicates phrases.
func NewPhrasePredicate(phrases []string) PhrasePredicate {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, ph := range phrases {
		ph = strings.ToLower(strings.TrimSpace(ph))
		if ph == "" {
			continue
		}
		if _, dup := seen[ph]; dup {
			continue
		}
		seen[ph] = struct{}{}
		out = append(out, ph)
	}
	return PhrasePredicate{phrases: out}
}

// Name implements Predicate.
func (PhrasePredicate) Name() string { return "closure-phrase" }

// Closed implements Predicate.
func (p PhrasePredicate) Closed(posting jobs.JobPosting) bool {
	desc := strings.ToLower(posting.Description)
	for _, ph := range p.phrases {
		if strings.Contains(desc, ph) {
			return true
		}
	}
	return false
}

// RedirectPredicate closes postings whose fetch redirected to a generic
// careers listing instead of the posting itself.
type RedirectPredicate struct{}

// Name implements Predicate.
func (RedirectPredicate) Name() string { return "redirect-to-listing" }

var listingPaths = map[string]struct{}{
	"jobs":      {},
	"careers":   {},
	"openings":  {},
	"positions": {},
}

var platformRoutes = router.NewDefault()

// sameSite reports whether both URLs belong to one host or to one ATS
// platform, such as boards.greenhouse.io and job-boards.greenhouse.io.
func sameSite(from, to *url.URL) bool {
	if strings.EqualFold(from.Hostname(), to.Hostname()) {
		return true
	}
	fp, ok := platformRoutes.Route(from.String())
	if !ok {
		return false
	}
	tp, ok := platformRoutes.Route(to.String())
	return ok && fp == tp
}

// Closed implements Predicate. The redirect counts as a listing when it stays
// on the same site and lands on a shorter path, when it lands on the company
// board named by the first segment of the requested path, or when it lands on
// the site root or a jobs/careers index.
func (RedirectPredicate) Closed(posting jobs.JobPosting) bool {
	if !posting.Signals.Redirected() {
		return false
	}
	from, err := url.Parse(posting.Signals.RequestedURL)
	if err != nil {
		return false
	}
	to, err := url.Parse(posting.Signals.FinalURL)
	if err != nil {
		return false
	}
	fromPath := strings.Trim(from.Path, "/")
	toPath := strings.Trim(to.Path, "/")
	if sameSite(from, to) && len(toPath) < len(fromPath) {
		return true
	}
	if company, _, _ := strings.Cut(fromPath, "/"); company != "" && company != fromPath && strings.EqualFold(toPath, company) {
		return true
	}
	segs := strings.Split(toPath, "/")
	last := strings.ToLower(segs[len(segs)-1])
	_, isListing := listingPaths[last]
	return toPath == "" || isListing
}

// ListingPagePredicate closes postings whose page rendered a list of jobs.
type ListingPagePredicate struct{}

// Name implements Predicate.
func (ListingPagePredicate) Name() string { return "listing-page" }

// Closed implements Predicate.
func (ListingPagePredicate) Closed(posting jobs.JobPosting) bool {
	return posting.Signals.ListingPage
}

// KeywordRelevance accepts postings whose title contains an intent keyword.
type KeywordRelevance struct {
	Keywords []string
}

// Relevant implements Relevance.
func (k KeywordRelevance) Relevant(posting jobs.JobPosting) bool {
	if len(k.Keywords) == 0 {
		return true
	}
	return query.MatchesAny(posting.Title, k.Keywords)
}

// DefaultPredicates returns the standard predicate chain.
func DefaultPredicates(phrases []string) []Predicate {
	if len(phrases) == 0 {
		phrases = DefaultClosurePhrases
	}
	return []Predicate{
		NewPhrasePredicate(phrases),
		RedirectPredicate{},
		ListingPagePredicate{},
	}
}
