package directapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/parser"
	"github.com/JakeFAU/ats-job-scout/internal/retry"
)

func newBoardServer(t *testing.T, ashbyCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/non-user-graphql", func(w http.ResponseWriter, r *http.Request) {
		if ashbyCalls != nil && ashbyCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Variables["organizationHostedJobsPageName"] {
		case "pear":
			_, _ = fmt.Fprint(w, `{"data":{"jobBoard":{"jobPostings":[
				{"id":"abc-1","title":"Founding Engineer","locationName":"San Francisco"},
				{"id":"abc-2","title":"Office Manager","locationName":"San Francisco"}]}}}`)
		case "missing":
			_, _ = fmt.Fprint(w, `{"data":{"jobBoard":null}}`)
		default:
			_, _ = fmt.Fprint(w, `{"errors":[{"message":"bad board"}]}`)
		}
	})
	mux.HandleFunc("GET /v0/postings/acme", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `[{"id":"l1","text":"Senior AI Engineer","hostedUrl":"https://jobs.lever.co/acme/l1"},
			{"id":"l2","text":"Account Executive","hostedUrl":"https://jobs.lever.co/acme/l2"},
			{"id":"l3","text":"ML Engineer"}]`)
	})
	mux.HandleFunc("GET /v1/boards/globex/jobs", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"jobs":[{"id":4001,"title":"AI/ML Engineer","absolute_url":"https://globex.com/careers?gh_jid=4001"}]}`)
	})
	mux.HandleFunc("GET /v1/companies/Initech/postings", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "0" {
			_, _ = fmt.Fprint(w, `{"content":[],"totalFound":1}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"content":[{"id":"744000","name":"Gen AI Engineer"}],"totalFound":1}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		Endpoints: Endpoints{Ashby: srv.URL, Lever: srv.URL, Greenhouse: srv.URL, SmartRecruiters: srv.URL},
		Retry:     retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}, nil, &retry.Recorder{}, nil)
}

func TestAshbySourceCarriesPayload(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newBoardServer(t, &calls)
	sources := newTestClient(srv).Sources(Companies{Ashby: []string{"pear"}})
	require.Len(t, sources, 1)
	assert.Equal(t, "direct:ashby", sources[0].Name())

	cands, err := sources[0].Discover(context.Background(), []string{"engineer"})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "https://jobs.ashbyhq.com/pear/abc-1", cands[0].URL)
	assert.Equal(t, "direct:ashby", cands[0].Origin)
	assert.Equal(t, int32(2), calls.Load(), "first 503 is retried")

	var payload parser.AshbyPosting
	require.NoError(t, json.Unmarshal(cands[0].Payload, &payload))
	assert.Equal(t, "Founding Engineer", payload.Title)
	assert.Equal(t, "San Francisco", payload.LocationName)
}

func TestAshbyFailingSlugsAreSkipped(t *testing.T) {
	t.Parallel()

	srv := newBoardServer(t, nil)
	src := newTestClient(srv).Sources(Companies{Ashby: []string{"missing", "pear", "broken"}})[0]

	cands, err := src.Discover(context.Background(), []string{"engineer"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing: ashby board not found")
	assert.ErrorContains(t, err, "broken: ashby graphql: bad board")
	require.Len(t, cands, 1)
}

func TestOtherPlatforms(t *testing.T) {
	t.Parallel()

	srv := newBoardServer(t, nil)
	sources := newTestClient(srv).Sources(Companies{
		Lever:           []string{"acme"},
		Greenhouse:      []string{"globex"},
		SmartRecruiters: []string{"Initech"},
	})
	require.Len(t, sources, 3)

	want := map[string][]string{
		"direct:lever":           {"https://jobs.lever.co/acme/l1", "https://jobs.lever.co/acme/l3"},
		"direct:greenhouse":      {"https://boards.greenhouse.io/globex/jobs/4001"},
		"direct:smartrecruiters": {"https://jobs.smartrecruiters.com/Initech/744000"},
	}
	for _, src := range sources {
		cands, err := src.Discover(context.Background(), []string{"ai", "engineer"})
		require.NoError(t, err, src.Name())
		var got []string
		for _, c := range cands {
			got = append(got, c.URL)
			assert.Empty(t, c.Payload)
		}
		assert.Equal(t, want[src.Name()], got, src.Name())
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	src := newTestClient(srv).Sources(Companies{Lever: []string{"nobody"}})[0]
	_, err := src.Discover(context.Background(), []string{"engineer"})
	require.ErrorIs(t, err, jobs.ErrStatus)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSourcesSkipsEmptyPlatforms(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewClient(Config{}, nil, nil, nil).Sources(Companies{}))
}
