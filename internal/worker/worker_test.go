package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/parser"
	"github.com/JakeFAU/ats-job-scout/internal/validator"
)

const greenhousePosting = `<html><body>
<h1 class="app-title">Applied AI Engineer</h1>
<span class="company-name">at Acme Robotics</span>
<div class="location">Remote</div>
<div id="content"><p>Ship models to production.</p></div>
</body></html>`

const greenhouseClosed = `<html><body>
<h1 class="app-title">Applied AI Engineer</h1>
<div id="content"><p>Sorry, this job is no longer open.</p></div>
</body></html>`

const greenhouseBoard = `<html><body><h1>Current openings at Acme</h1>
<section class="level-0"><div class="opening"><a href="/acme/jobs/1">Role</a></div></section>
</body></html>`

type pages map[string]jobs.FetchResponse

func (p pages) fetcher(calls *int) jobs.Fetcher {
	return jobs.FetcherFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		if calls != nil {
			*calls++
		}
		resp, ok := p[req.URL]
		if !ok {
			return jobs.FetchResponse{}, errors.New("connection refused")
		}
		resp.RequestedURL = req.URL
		if resp.URL == "" {
			resp.URL = req.URL
		}
		if resp.StatusCode == 0 {
			resp.StatusCode = http.StatusOK
		}
		return resp, nil
	})
}

type stubEnricher struct{}

func (stubEnricher) Enrich(_ context.Context, p jobs.JobPosting) jobs.EnrichedJob {
	return jobs.EnrichedJob{JobPosting: p, Contact: jobs.Contact{CompanyWebsite: "https://acme.com"}}
}

func newWorker(f jobs.Fetcher, cfg Config) *Worker {
	return New(f, parser.Default(), validator.New(validator.DefaultPredicates(nil)), stubEnricher{}, cfg, nil)
}

func TestProcessOutcomes(t *testing.T) {
	t.Parallel()

	const base = "https://boards.greenhouse.io/acme/jobs/"
	site := pages{
		base + "1": {Body: []byte(greenhousePosting)},
		base + "2": {Body: []byte(greenhouseClosed)},
		base + "3": {URL: "https://boards.greenhouse.io/acme", Body: []byte(greenhouseBoard)},
		base + "4": {StatusCode: http.StatusNotFound},
		base + "5": {Body: nil},
	}

	tests := map[string]struct {
		url     string
		outcome Outcome
		reason  string
	}{
		"Open":              {url: base + "1", outcome: OutcomeKept},
		"ClosurePhrase":     {url: base + "2", outcome: OutcomeClosed, reason: "closure-phrase"},
		"RedirectToListing": {url: base + "3", outcome: OutcomeClosed, reason: "redirect-to-listing"},
		"NotFound":          {url: base + "4", outcome: OutcomeFetchFailed},
		"EmptyBody":         {url: base + "5", outcome: OutcomeParseFailed},
		"Unreachable":       {url: base + "6", outcome: OutcomeFetchFailed},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			w := newWorker(site.fetcher(nil), Config{})
			res := w.Process(context.Background(), jobs.PlatformGreenhouse, jobs.Candidate{URL: tc.url})
			assert.Equal(t, tc.outcome, res.Outcome)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, res.Reason)
			}
			if tc.outcome != OutcomeKept {
				assert.Empty(t, res.Record.URL)
			}
		})
	}
}

func TestProcessKeptRecordIsEnriched(t *testing.T) {
	t.Parallel()

	const u = "https://boards.greenhouse.io/acme/jobs/1"
	w := newWorker(pages{u: {Body: []byte(greenhousePosting)}}.fetcher(nil), Config{})

	res := w.Process(context.Background(), jobs.PlatformGreenhouse, jobs.Candidate{URL: u})
	require.Equal(t, OutcomeKept, res.Outcome)
	assert.Equal(t, "Applied AI Engineer", res.Record.Title)
	assert.Equal(t, "Acme Robotics", res.Record.Company)
	assert.Equal(t, jobs.StatusOpen, res.Record.Status)
	assert.Equal(t, "https://acme.com", res.Record.CompanyWebsite)
}

func TestProcessPayloadSurvivesFetchFailure(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(parser.AshbyPosting{ID: "abc", Title: "Founding Engineer", LocationName: "New York"})
	require.NoError(t, err)
	c := jobs.Candidate{URL: "https://jobs.ashbyhq.com/pear/abc", Payload: payload}

	calls := 0
	w := newWorker(pages{}.fetcher(&calls), Config{})
	res := w.Process(context.Background(), jobs.PlatformAshby, c)
	require.Equal(t, OutcomeKept, res.Outcome)
	assert.Equal(t, "Founding Engineer", res.Record.Title)
	assert.Equal(t, "pear", res.Record.Company)
	assert.Equal(t, 1, calls)

	calls = 0
	w = newWorker(pages{}.fetcher(&calls), Config{SkipFetchWithPayload: true})
	res = w.Process(context.Background(), jobs.PlatformAshby, c)
	assert.Equal(t, OutcomeKept, res.Outcome)
	assert.Zero(t, calls, "payload parse skips the fetch")
}

func TestProcessCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	w := newWorker(pages{}.fetcher(&calls), Config{})
	res := w.Process(ctx, jobs.PlatformLever, jobs.Candidate{URL: "https://jobs.lever.co/acme/1"})
	assert.Equal(t, OutcomeCanceled, res.Outcome)
	assert.Zero(t, calls)
}

func TestProcessWithoutEnricher(t *testing.T) {
	t.Parallel()

	const u = "https://boards.greenhouse.io/acme/jobs/1"
	w := New(pages{u: {Body: []byte(greenhousePosting)}}.fetcher(nil), parser.Default(),
		validator.New(validator.DefaultPredicates(nil)), nil, Config{}, nil)

	res := w.Process(context.Background(), jobs.PlatformGreenhouse, jobs.Candidate{URL: u})
	require.Equal(t, OutcomeKept, res.Outcome)
	assert.Equal(t, jobs.Contact{}, res.Record.Contact)
}
