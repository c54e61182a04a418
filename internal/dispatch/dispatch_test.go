package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

var discoveredAt = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testBatch(urls ...string) Batch {
	b := Batch{RunID: "run-1", DiscoveredAt: discoveredAt}
	for _, u := range urls {
		b.Records = append(b.Records, jobs.EnrichedJob{
			JobPosting: jobs.JobPosting{Title: "AI Engineer", Company: "acme", URL: u, Source: jobs.PlatformGreenhouse},
			Contact:    jobs.Contact{HREmail: "jobs@acme.com"},
		})
	}
	return b
}

func fastWebhook(url string, batch bool) *Webhook {
	return NewWebhook(WebhookConfig{URL: url, Attempts: 3, Delay: time.Millisecond, Factor: 1, Batch: batch}, nil)
}

func TestPayloadKeys(t *testing.T) {
	t.Parallel()

	p := Payload(testBatch("https://boards.greenhouse.io/acme/jobs/1").Records[0], "run-1", discoveredAt)
	assert.Equal(t, map[string]string{
		"Job Title":        "AI Engineer",
		"Company":          "acme",
		"Location":         "",
		"Job URL":          "https://boards.greenhouse.io/acme/jobs/1",
		"Company Website":  "",
		"HR Contact Email": "jobs@acme.com",
		"HR LinkedIn":      "",
		"Source":           "Greenhouse",
		"Run ID":           "run-1",
		"Discovered At":    "2026-10-19T12:00:00Z",
	}, p)
}

func TestWebhookPerRecordIsolatesFailures(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []string
		flaky    atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch body["Job URL"] {
		case "https://x/rejected":
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		case "https://x/flaky":
			if flaky.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
		}
		mu.Lock()
		received = append(received, body["Job URL"])
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	out := fastWebhook(srv.URL, false).Send(context.Background(), testBatch("https://x/1", "https://x/rejected", "https://x/flaky", "https://x/2"))
	assert.Equal(t, Outcome{Delivered: 3, Failed: 1}, out)
	assert.Equal(t, []string{"https://x/1", "https://x/flaky", "https://x/2"}, received)
}

func TestWebhookBatchMode(t *testing.T) {
	t.Parallel()

	var got batchPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	out := fastWebhook(srv.URL, true).Send(context.Background(), testBatch("https://x/1", "https://x/2"))
	assert.Equal(t, Outcome{Delivered: 2}, out)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "2026-10-19T12:00:00Z", got.Timestamp)
	require.Len(t, got.Jobs, 2)
	assert.Equal(t, "https://x/2", got.Jobs[1]["Job URL"])
}

func TestWebhookUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	out := fastWebhook(srv.URL, false).Send(context.Background(), testBatch("https://x/1", "https://x/2"))
	assert.Equal(t, Outcome{Failed: 2}, out)
}

func TestDispatcherSumsSinks(t *testing.T) {
	t.Parallel()

	first, second := NewMemory(), NewMemory()
	d := New(nil, first, second)

	out := d.Dispatch(context.Background(), testBatch("https://x/1"))
	assert.Equal(t, Outcome{Delivered: 2}, out)
	assert.Len(t, first.Batches(), 1)
	assert.Len(t, second.Batches(), 1)

	assert.Equal(t, Outcome{}, d.Dispatch(context.Background(), testBatch()))
	assert.Len(t, first.Batches(), 1, "empty delta is not sent")
}

func TestPubSubPublishesPerRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "new-postings")
	require.NoError(t, err)

	sink := NewPubSub(topic, nil)
	out := sink.Send(ctx, testBatch("https://x/1", "https://x/2"))
	sink.Close()
	assert.Equal(t, Outcome{Delivered: 2}, out)

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "run-1", msgs[0].Attributes["run_id"])
	assert.Equal(t, "Greenhouse", msgs[0].Attributes["source"])
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Contains(t, []string{"https://x/1", "https://x/2"}, payload["Job URL"])
}

func TestPubSubWithoutTopicFailsAll(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Outcome{Failed: 1}, NewPubSub(nil, nil).Send(context.Background(), testBatch("https://x/1")))
}
