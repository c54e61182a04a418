package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, searchURL, dir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobscout.yaml")
	body := fmt.Sprintf(`search:
  duckduckgo_url: %q
  fallback_enabled: false
  retry_attempts: 1
  requests_per_second: 0
direct:
  enabled: false
enrich:
  enabled: false
storage:
  backend: local
  dir: %q
logging:
  level: error
`, searchURL, dir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRootCommandRunsOnce(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		mu.Unlock()
		_, _ = w.Write([]byte(`<html><body><a class="result__a" href="https://example.com/blog">blog</a></body></html>`))
	}))
	t.Cleanup(ddg.Close)

	dir := t.TempDir()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", writeConfig(t, ddg.URL, dir), "founding", "engineer"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "0 new")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, queries)
	for _, q := range queries {
		assert.True(t, strings.Contains(q, "founding engineer"), "query %q should carry the intent", q)
	}
}

func TestRootCommandInterruptedRunWritesNoArtifacts(t *testing.T) {
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a class="result__a" href="https://jobs.lever.co/acme/1">job</a></body></html>`))
	}))
	t.Cleanup(ddg.Close)

	dir := t.TempDir()
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", writeConfig(t, ddg.URL, dir)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cmd.ExecuteContext(ctx)
	require.ErrorIs(t, err, context.Canceled)

	for _, name := range []string{"master_jobs.csv", "delta_jobs.csv"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(statErr), "%s must not be written", name)
	}
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: 0\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.workers")
}

func TestServeRejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "extra"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}
