package fetcher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/retry"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(jobs.FetchResponse), args.Error(1)
}

type countingWaiter struct {
	calls int
}

func (w *countingWaiter) Wait(context.Context, string) error {
	w.calls++
	return nil
}

type promoteAlways bool

func (p promoteAlways) ShouldPromote(jobs.FetchResponse) bool { return bool(p) }

var testPolicy = retry.Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}

func TestPoliteRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	req := jobs.FetchRequest{URL: "https://jobs.lever.co/acme/1"}
	next := &mockFetcher{}
	next.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{RequestedURL: req.URL, StatusCode: http.StatusServiceUnavailable}, nil).Once()
	next.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{RequestedURL: req.URL, StatusCode: http.StatusOK, Body: []byte("ok")}, nil).Once()

	waiter := &countingWaiter{}
	rec := &retry.Recorder{}
	resp, err := NewPolite(next, waiter, testPolicy, rec, nil).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, 2, waiter.calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, rec.Delays())
	next.AssertExpectations(t)
}

func TestPoliteDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	req := jobs.FetchRequest{URL: "https://jobs.lever.co/acme/1"}
	next := &mockFetcher{}
	next.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{RequestedURL: req.URL, StatusCode: http.StatusNotFound}, nil).Once()

	_, err := NewPolite(next, nil, testPolicy, &retry.Recorder{}, nil).Fetch(context.Background(), req)
	require.ErrorIs(t, err, jobs.ErrStatus)
	next.AssertExpectations(t)
}

func TestPoliteGivesUpAfterPolicy(t *testing.T) {
	t.Parallel()

	req := jobs.FetchRequest{URL: "https://acme.com"}
	next := &mockFetcher{}
	next.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{}, errors.New("connection reset")).Times(3)

	_, err := NewPolite(next, nil, testPolicy, &retry.Recorder{}, nil).Fetch(context.Background(), req)
	require.ErrorContains(t, err, "connection reset")
	next.AssertExpectations(t)
}

func TestPromotingUsesHeadlessWhenDetectorFires(t *testing.T) {
	t.Parallel()

	req := jobs.FetchRequest{URL: "https://jobs.ashbyhq.com/pear/1"}
	plain := &mockFetcher{}
	plain.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{RequestedURL: req.URL, StatusCode: 200, Body: []byte(`<div id="root"></div>`)}, nil)
	headless := &mockFetcher{}
	headless.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{StatusCode: 200, Body: []byte("rendered"), UsedHeadless: true}, nil)

	resp, err := NewPromoting(plain, headless, promoteAlways(true), nil).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(resp.Body))
	assert.Equal(t, req.URL, resp.RequestedURL)
}

func TestPromotingFallsBackOnHeadlessError(t *testing.T) {
	t.Parallel()

	req := jobs.FetchRequest{URL: "https://jobs.ashbyhq.com/pear/1"}
	plain := &mockFetcher{}
	plain.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{StatusCode: 200, Body: []byte("plain")}, nil)
	headless := &mockFetcher{}
	headless.On("Fetch", mock.Anything, req).Return(jobs.FetchResponse{}, errors.New("no chrome"))

	resp, err := NewPromoting(plain, headless, promoteAlways(true), nil).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(resp.Body))
}

func TestNewPromotingWithoutHeadlessReturnsPrimary(t *testing.T) {
	t.Parallel()

	plain := &mockFetcher{}
	assert.Same(t, jobs.Fetcher(plain), NewPromoting(plain, nil, promoteAlways(true), nil))
}
