package enrich

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

type stubSearcher struct {
	calls   atomic.Int32
	results []string
	err     error
	// failures makes the first n calls return err before results are served.
	failures int32
	queries  []string
	mu       sync.Mutex
}

func (s *stubSearcher) SearchOne(_ context.Context, q string, _ int) ([]string, error) {
	n := s.calls.Add(1)
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.failures > 0 {
		if n <= s.failures {
			return nil, s.err
		}
		return s.results, nil
	}
	return s.results, s.err
}

func TestResolvePriority(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: []string{"https://www.linkedin.com/company/acme", "https://acme-search.com/about"}}
	cases := map[string]struct {
		posting jobs.JobPosting
		want    string
	}{
		"HintWins": {
			posting: jobs.JobPosting{Company: "acme", Signals: jobs.Signals{
				WebsiteHint: "https://Acme.com/en/home",
				Links:       []jobs.Link{{Href: "https://acme-other.com", Text: "Visit our website"}},
			}},
			want: "https://acme.com",
		},
		"ExcludedHintFallsThroughToLink": {
			posting: jobs.JobPosting{Company: "acme", Signals: jobs.Signals{
				WebsiteHint: "https://jobs.lever.co/acme",
				Links: []jobs.Link{
					{Href: "https://twitter.com/acme", Text: "Website"},
					{Href: "https://acme-other.com/x", Text: "Visit our website"},
				},
			}},
			want: "https://acme-other.com",
		},
		"LinkByCompanyName": {
			posting: jobs.JobPosting{Company: "Pear", Signals: jobs.Signals{
				Links: []jobs.Link{{Href: "https://pear.vc", Text: "About Pear"}},
			}},
			want: "https://pear.vc",
		},
		"LinkByHostSlug": {
			posting: jobs.JobPosting{Company: "nightfall-ai", Signals: jobs.Signals{
				Links: []jobs.Link{{Href: "https://privacy.example.org", Text: "Privacy"}, {Href: "https://www.nightfall.ai/blog", Text: "Blog"}},
			}},
			want: "https://www.nightfall.ai",
		},
		"SearchFallback": {
			posting: jobs.JobPosting{Company: "searchco"},
			want:    "https://acme-search.com",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := NewResolver(searcher, nil)
			assert.Equal(t, tc.want, r.Resolve(context.Background(), tc.posting))
		})
	}
}

func TestResolveCachesSearchPerCompany(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{}
	r := NewResolver(searcher, nil)
	posting := jobs.JobPosting{Company: "Globex, Inc."}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Empty(t, r.Resolve(context.Background(), posting))
		}()
	}
	wg.Wait()
	assert.Empty(t, r.Resolve(context.Background(), posting))
	assert.Equal(t, int32(1), searcher.calls.Load())
	assert.Equal(t, []string{`"Globex" official website`}, searcher.queries)
}

func TestResolveRetriesAfterFailedSearch(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{err: errors.New("rate limited"), failures: 1, results: []string{"https://acme.com/"}}
	r := NewResolver(searcher, nil)
	posting := jobs.JobPosting{Company: "Acme"}

	assert.Empty(t, r.Resolve(context.Background(), posting))
	assert.Equal(t, "https://acme.com", r.Resolve(context.Background(), posting))
	assert.Equal(t, "https://acme.com", r.Resolve(context.Background(), posting))
	assert.Equal(t, int32(2), searcher.calls.Load())
}

func TestResolveUnknownCompanySkipsSearch(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: []string{"https://x.com"}}
	assert.Empty(t, NewResolver(searcher, nil).Resolve(context.Background(), jobs.JobPosting{Company: "Unknown"}))
	assert.Zero(t, searcher.calls.Load())
}

type sitePages map[string]string

func (s sitePages) Fetch(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
	body, ok := s[req.URL]
	if !ok {
		return jobs.FetchResponse{RequestedURL: req.URL, StatusCode: http.StatusNotFound}, nil
	}
	if body == "ERR" {
		return jobs.FetchResponse{}, errors.New("connection refused")
	}
	return jobs.FetchResponse{RequestedURL: req.URL, URL: req.URL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func TestContactScraperPrefersHiringAddress(t *testing.T) {
	t.Parallel()

	pages := sitePages{
		"https://acme.com/": `<html><body><img src="logo@2x.png"> Contact chris@acme.com or info@acme.com
			<a href="https://www.linkedin.com/company/acme-corp">LinkedIn</a></body></html>`,
		"https://acme.com/careers": `<html><body>Apply via <a href="mailto:Talent@Acme.com">talent</a></body></html>`,
		"https://acme.com/about":   "ERR",
	}
	email, linkedIn := NewContactScraper(pages, nil, 2, nil).Scrape(context.Background(), "https://acme.com")
	assert.Equal(t, "talent@acme.com", email)
	assert.Equal(t, "https://www.linkedin.com/company/acme-corp", linkedIn)
}

func TestContactScraperFallsBackToFirstPlausible(t *testing.T) {
	t.Parallel()

	pages := sitePages{
		"https://acme.com/":     `<p>errors to bugs@sentry.io</p>`,
		"https://acme.com/team": `<p>hello@acme.com</p><a href="https://linkedin.com/in/jane-doe">Jane</a>`,
	}
	email, linkedIn := NewContactScraper(pages, nil, 0, nil).Scrape(context.Background(), "https://acme.com/")
	assert.Equal(t, "hello@acme.com", email)
	assert.Equal(t, "https://linkedin.com/in/jane-doe", linkedIn)
}

func TestEnrichWithUnreachableSiteLeavesContactsEmpty(t *testing.T) {
	t.Parallel()

	e := &Enricher{
		Resolver: NewResolver(nil, nil),
		Contacts: NewContactScraper(sitePages{}, nil, 0, nil),
	}
	posting := jobs.JobPosting{Title: "AI Engineer", Company: "acme", URL: "https://jobs.lever.co/acme/1",
		Signals: jobs.Signals{WebsiteHint: "https://acme.com"}}
	got := e.Enrich(context.Background(), posting)
	require.Equal(t, posting.Title, got.Title)
	assert.Equal(t, "https://acme.com", got.CompanyWebsite)
	assert.Empty(t, got.HREmail)
	assert.Empty(t, got.HRLinkedIn)
}

func TestPlausibleEmail(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"jobs@acme.com":             true,
		"icon@2x.png":               false,
		"user@example.com":          false,
		"abc@o123.ingest.sentry.io": false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, plausibleEmail(addr), addr)
	}
}
