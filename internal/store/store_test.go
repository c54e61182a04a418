package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/storage/memory"
)

func record(url, title string) jobs.EnrichedJob {
	return jobs.EnrichedJob{
		JobPosting: jobs.JobPosting{Title: title, Company: "acme", Location: "Remote", URL: url, Source: jobs.PlatformLever, Status: jobs.StatusOpen},
		Contact:    jobs.Contact{CompanyWebsite: "https://acme.com", HREmail: "talent@acme.com"},
	}
}

func urls(rows []jobs.EnrichedJob) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.URL)
	}
	return out
}

func TestLoadMissingMasterIsEmpty(t *testing.T) {
	t.Parallel()

	m, err := New(memory.NewBlobStore(), Config{}, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, m.Len())
}

func TestLoadCorruptMasterFails(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"WrongHeader": "Title,Company\nx,y\n",
		"RaggedRow":   "Job Title,Company,Location,Job URL,Company Website,HR Contact Email,HR LinkedIn,Source\nonly,three,fields\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			backend := memory.NewBlobStore()
			require.NoError(t, backend.Write(context.Background(), "master_jobs.csv", []byte(content)))
			_, err := New(backend, Config{}, nil).Load(context.Background())
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestCommitGrowsMasterMonotonically(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.NewBlobStore()
	s := New(backend, Config{}, nil)

	m, err := s.Load(ctx)
	require.NoError(t, err)
	delta, err := s.Commit(ctx, m, []jobs.EnrichedJob{
		record("https://jobs.lever.co/acme/1", "AI Engineer"),
		record("https://jobs.lever.co/acme/2", "ML Engineer"),
		record("https://jobs.lever.co/acme/1/", "AI Engineer (dup)"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://jobs.lever.co/acme/1", "https://jobs.lever.co/acme/2"}, urls(delta))
	assert.Equal(t, []string{"master_jobs.csv", "delta_jobs.csv"}, backend.Writes())

	before := m.Rows()
	m2, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, urls(before), urls(m2.Rows()))

	delta, err = s.Commit(ctx, m2, []jobs.EnrichedJob{
		record("https://jobs.lever.co/acme/2", "changed title"),
		record("https://jobs.lever.co/acme/3", "Gen AI Engineer"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://jobs.lever.co/acme/3"}, urls(delta))

	m3, err := s.Load(ctx)
	require.NoError(t, err)
	rows := m3.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, urls(before), urls(rows[:2]), "existing rows keep their order")
	assert.Equal(t, "ML Engineer", rows[1].Title, "existing rows are never rewritten")
	assert.Equal(t, "talent@acme.com", rows[0].HREmail)
	assert.Equal(t, jobs.PlatformLever, rows[0].Source)
}

func TestCommitIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.NewBlobStore()
	s := New(backend, Config{}, nil)
	m := NewMaster()
	records := []jobs.EnrichedJob{record("https://jobs.lever.co/acme/1", "AI Engineer")}

	_, err := s.Commit(ctx, m, records)
	require.NoError(t, err)
	delta, err := s.Commit(ctx, m, records)
	require.NoError(t, err)
	assert.Empty(t, delta)

	deltaCSV, err := backend.Read(ctx, "delta_jobs.csv")
	require.NoError(t, err)
	assert.Equal(t, "Job Title,Company,Location,Job URL,Company Website,HR Contact Email,HR LinkedIn,Source\n", string(deltaCSV))
	assert.Equal(t, 1, m.Len())
}

func TestCommitFailureLeavesArtifactsUntouched(t *testing.T) {
	t.Parallel()

	for _, failing := range []string{"master_jobs.csv", "delta_jobs.csv"} {
		t.Run(failing, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			backend := memory.NewBlobStore()
			seedMaster, err := Encode([]jobs.EnrichedJob{record("https://jobs.lever.co/acme/1", "AI Engineer")})
			require.NoError(t, err)
			seedDelta, err := Encode([]jobs.EnrichedJob{record("https://jobs.lever.co/acme/1", "AI Engineer")})
			require.NoError(t, err)
			require.NoError(t, backend.Write(ctx, "master_jobs.csv", seedMaster))
			require.NoError(t, backend.Write(ctx, "delta_jobs.csv", seedDelta))
			backend.FailWrites = map[string]error{failing: errors.New("disk full")}

			s := New(backend, Config{}, nil)
			m, err := s.Load(ctx)
			require.NoError(t, err)

			_, err = s.Commit(ctx, m, []jobs.EnrichedJob{record("https://jobs.lever.co/acme/2", "ML Engineer")})
			require.ErrorContains(t, err, "disk full")
			assert.Equal(t, 1, m.Len())
			assert.False(t, m.Contains("https://jobs.lever.co/acme/2"))

			gotMaster, err := backend.Read(ctx, "master_jobs.csv")
			require.NoError(t, err)
			assert.Equal(t, string(seedMaster), string(gotMaster))
			gotDelta, err := backend.Read(ctx, "delta_jobs.csv")
			require.NoError(t, err)
			assert.Equal(t, string(seedDelta), string(gotDelta))
		})
	}
}

func TestCommitKeepsEveryLoadedRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.NewBlobStore()
	seed, err := Encode([]jobs.EnrichedJob{
		record("https://jobs.lever.co/acme/1", "AI Engineer"),
		record("https://jobs.lever.co/acme/1/", "AI Engineer"),
		record("https://jobs.lever.co/acme/1?utm_source=x", "AI Engineer"),
	})
	require.NoError(t, err)
	require.NoError(t, backend.Write(ctx, "master_jobs.csv", seed))

	s := New(backend, Config{}, nil)
	m, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	delta, err := s.Commit(ctx, m, []jobs.EnrichedJob{
		record("https://jobs.lever.co/acme/1/", "AI Engineer"),
		record("https://jobs.lever.co/acme/2", "ML Engineer"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://jobs.lever.co/acme/2"}, urls(delta))

	reloaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.Len())
	assert.Equal(t, []string{
		"https://jobs.lever.co/acme/1",
		"https://jobs.lever.co/acme/1/",
		"https://jobs.lever.co/acme/1?utm_source=x",
		"https://jobs.lever.co/acme/2",
	}, urls(reloaded.Rows()))
}

func TestCommitCanceledWritesNothing(t *testing.T) {
	t.Parallel()

	backend := memory.NewBlobStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(backend, Config{}, nil).Commit(ctx, NewMaster(), []jobs.EnrichedJob{record("https://jobs.lever.co/acme/1", "x")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, backend.Writes())
}

func TestEncodeDecodeQuotesFields(t *testing.T) {
	t.Parallel()

	r := record("https://jobs.lever.co/acme/1", `Engineer, "Applied AI"`)
	data, err := Encode([]jobs.EnrichedJob{r})
	require.NoError(t, err)
	rows, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r.Title, rows[0].Title)
}

func TestMasterContainsCanonicalizes(t *testing.T) {
	t.Parallel()

	m := NewMaster(record("https://jobs.lever.co/acme/1?utm_source=x", "AI Engineer"))
	assert.True(t, m.Contains("https://jobs.lever.co/acme/1"))
	assert.True(t, m.Contains("https://jobs.lever.co/acme/1/apply"))
	assert.False(t, m.Contains("https://jobs.lever.co/acme/2"))
}

func TestReportRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewReportRepository(memory.NewBlobStore(), "")
	_, err := repo.Last(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	report := jobs.RunReport{RunID: "run-1", Intent: "ai", StartedAt: started, FinishedAt: started.Add(time.Minute), Stored: 4}
	require.NoError(t, repo.SaveLast(ctx, report))

	got, err := repo.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, got.RunID)
	assert.Equal(t, 4, got.Stored)
	assert.True(t, report.StartedAt.Equal(got.StartedAt), fmt.Sprint(got.StartedAt))
}
