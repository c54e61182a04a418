// Package pipeline runs one discovery pass end to end: search, dedup, route,
// per-posting processing, commit and dispatch.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/ats-job-scout/internal/dedup"
	"github.com/JakeFAU/ats-job-scout/internal/dispatch"
	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/metrics"
	"github.com/JakeFAU/ats-job-scout/internal/query"
	"github.com/JakeFAU/ats-job-scout/internal/router"
	"github.com/JakeFAU/ats-job-scout/internal/search"
	"github.com/JakeFAU/ats-job-scout/internal/storage"
	"github.com/JakeFAU/ats-job-scout/internal/store"
	"github.com/JakeFAU/ats-job-scout/internal/worker"
)

// Discoverer produces candidate URLs for a set of queries.
type Discoverer interface {
	Discover(ctx context.Context, queries []query.Query, intent string) search.Result
}

// Processor handles one routed candidate.
type Processor interface {
	Process(ctx context.Context, platform jobs.Platform, c jobs.Candidate) worker.Result
}

// Store loads the master snapshot and commits new records.
type Store interface {
	Load(ctx context.Context) (*store.Master, error)
	Commit(ctx context.Context, master *store.Master, records []jobs.EnrichedJob) ([]jobs.EnrichedJob, error)
}

// Dispatcher delivers the delta.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch dispatch.Batch) dispatch.Outcome
}

// Reports persists the last run report.
type Reports interface {
	SaveLast(ctx context.Context, report jobs.RunReport) error
}

// Deps are the collaborators of a Pipeline. Dispatcher, Reports and Locker
// are optional.
type Deps struct {
	Discoverer Discoverer
	Router     *router.Router
	Processor  Processor
	Store      Store
	Dispatcher Dispatcher
	Reports    Reports
	Locker     storage.Locker
	Clock      jobs.Clock
	IDs        jobs.IDGenerator
	Logger     *zap.Logger
}

// Config bounds a run.
type Config struct {
	// Workers is the number of postings processed concurrently.
	Workers int
	// MaxJobs caps how many fresh candidates are processed; 0 means no cap.
	MaxJobs int
}

// Pipeline wires every stage of a run.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Pipeline.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Discoverer == nil || deps.Processor == nil || deps.Store == nil {
		return nil, fmt.Errorf("pipeline requires a discoverer, processor and store")
	}
	if deps.Router == nil {
		deps.Router = router.NewDefault()
	}
	if deps.Clock == nil {
		deps.Clock = wallClock{}
	}
	if deps.IDs == nil {
		return nil, fmt.Errorf("pipeline requires an id generator")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: logging.OrNop(deps.Logger).Named("pipeline")}, nil
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

type work struct {
	platform  jobs.Platform
	candidate jobs.Candidate
}

// Run executes one pass for intent. A blank intent uses the default. The
// returned report is populated even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, intent string) (report jobs.RunReport, err error) {
	report.StartedAt = p.deps.Clock.Now()
	report.Intent = query.Intent(intent)
	report.RunID, err = p.deps.IDs.NewID()
	if err != nil {
		return report, fmt.Errorf("generate run id: %w", err)
	}
	logger := p.logger.With(zap.String("run_id", report.RunID))
	defer func() { p.finish(ctx, logger, &report, err) }()

	if p.deps.Locker != nil {
		unlock, lockErr := p.deps.Locker.Lock(ctx)
		if lockErr != nil {
			return report, fmt.Errorf("acquire store lock: %w", lockErr)
		}
		defer func() {
			if uerr := unlock(); uerr != nil {
				logger.Warn("release store lock", zap.Error(uerr))
			}
		}()
	}

	master, err := p.deps.Store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load master: %w", err)
	}
	logger.Info("run started", zap.String("intent", report.Intent), zap.Int("known", master.Len()))

	found := p.deps.Discoverer.Discover(ctx, query.Generate(report.Intent), report.Intent)
	report.Candidates = len(found.Candidates)
	report.SearchFailures = len(found.Failures)
	report.DirectAPIErrors = len(found.DirectFailures)

	fresh := dedup.Filter(found.Candidates, master)
	report.Duplicates = fresh.Skipped()
	report.Unsupported = fresh.Invalid

	routed, unsupported := p.deps.Router.Split(fresh.Fresh)
	report.Unsupported += len(unsupported)
	for _, c := range unsupported {
		logger.Debug("unsupported url", zap.String("url", c.URL), zap.String("origin", c.Origin))
	}

	queue := p.queue(routed)
	logger.Info("processing postings", zap.Int("fresh", len(fresh.Fresh)), zap.Int("queued", len(queue)))

	results := p.process(ctx, queue)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run canceled before commit: %w", err)
	}

	records := p.tally(&report, results)

	delta, err := p.deps.Store.Commit(ctx, master, records)
	if err != nil {
		return report, fmt.Errorf("commit: %w", err)
	}
	report.Stored = len(delta)

	if p.deps.Dispatcher != nil && len(delta) > 0 {
		out := p.deps.Dispatcher.Dispatch(ctx, dispatch.Batch{
			RunID:        report.RunID,
			DiscoveredAt: report.StartedAt,
			Records:      delta,
		})
		report.Delivered = out.Delivered
		report.DeliveryFailed = out.Failed
	}
	return report, nil
}

// queue flattens routed candidates in platform order and applies the cap.
func (p *Pipeline) queue(routed map[jobs.Platform][]jobs.Candidate) []work {
	var out []work
	for _, platform := range jobs.Platforms() {
		for _, c := range routed[platform] {
			if p.cfg.MaxJobs > 0 && len(out) >= p.cfg.MaxJobs {
				return out
			}
			out = append(out, work{platform: platform, candidate: c})
		}
	}
	return out
}

func (p *Pipeline) process(ctx context.Context, queue []work) []worker.Result {
	results := make([]worker.Result, len(queue))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, w := range queue {
		g.Go(func() error {
			results[i] = p.deps.Processor.Process(gctx, w.platform, w.candidate)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// tally folds per-candidate results into the report and returns kept
// records in queue order.
func (p *Pipeline) tally(report *jobs.RunReport, results []worker.Result) []jobs.EnrichedJob {
	records := make([]jobs.EnrichedJob, 0, len(results))
	for _, r := range results {
		metrics.ObservePosting(string(r.Platform), string(r.Outcome))
		switch r.Outcome {
		case worker.OutcomeKept:
			report.Enriched++
			records = append(records, r.Record)
		case worker.OutcomeFetchFailed:
			report.FetchFailures++
		case worker.OutcomeParseFailed:
			report.ParseFailures++
		case worker.OutcomeMalformed:
			report.Malformed++
		case worker.OutcomeClosed:
			report.Closed++
		case worker.OutcomeIrrelevant:
			report.Irrelevant++
		}
	}
	return records
}

func (p *Pipeline) finish(ctx context.Context, logger *zap.Logger, report *jobs.RunReport, err error) {
	report.FinishedAt = p.deps.Clock.Now()
	if err != nil {
		report.Error = err.Error()
	}
	metrics.ObserveRun(report.Stored, report.Duration(), err)

	if err != nil {
		logger.Error("run failed", zap.Object("report", report), zap.Error(err))
	} else {
		logger.Info("run finished", zap.Object("report", report))
	}

	if p.deps.Reports == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if serr := p.deps.Reports.SaveLast(saveCtx, *report); serr != nil {
		logger.Warn("save run report", zap.Error(serr))
	}
}
