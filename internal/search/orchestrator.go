package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/metrics"
	"github.com/JakeFAU/ats-job-scout/internal/query"
	"github.com/JakeFAU/ats-job-scout/internal/retry"
)

// errNoResults makes an empty primary page count as a retryable miss.
var errNoResults = errors.New("no results")

// Discoverer finds candidates without a search engine, for example through a
// platform's public listing API.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context, keywords []string) ([]jobs.Candidate, error)
}

// Config bounds the orchestrator.
type Config struct {
	// MaxResults caps the URLs taken from each query.
	MaxResults  int
	Concurrency int
	Retry       retry.Policy
}

// Failure records a query (or direct source) that produced nothing because
// every engine failed.
type Failure struct {
	Query  string
	Engine string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %q: %v", f.Engine, f.Query, f.Err)
}

// Result is the outcome of one discovery pass.
type Result struct {
	Candidates     []jobs.Candidate
	Failures       []Failure
	DirectFailures []Failure
}

// Orchestrator runs every query against the primary engine with retries and
// falls back to a second engine per query.
type Orchestrator struct {
	primary  Engine
	fallback Engine
	direct   []Discoverer
	cfg      Config
	sleeper  retry.Sleeper
	logger   *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDirect adds structured discovery sources.
func WithDirect(sources ...Discoverer) Option {
	return func(o *Orchestrator) { o.direct = append(o.direct, sources...) }
}

// WithSleeper replaces the real backoff timer.
func WithSleeper(s retry.Sleeper) Option {
	return func(o *Orchestrator) { o.sleeper = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator builds an orchestrator. fallback may be nil.
func NewOrchestrator(primary, fallback Engine, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	o := &Orchestrator{primary: primary, fallback: fallback, cfg: cfg, sleeper: retry.TimerSleeper{}}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNop(o.logger).Named("search")
	return o
}

// Discover runs all queries and direct sources. It never fails as a whole;
// per-query problems are reported in the Result.
func (o *Orchestrator) Discover(ctx context.Context, queries []query.Query, intent string) Result {
	perQuery := make([][]jobs.Candidate, len(queries))
	perSource := make([][]jobs.Candidate, len(o.direct))
	var (
		mu  sync.Mutex
		res Result
	)

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			urls, engine, err := o.search(ctx, q.Text)
			if err != nil {
				o.logger.Warn("query failed on all engines", zap.String("query", q.Text), zap.Error(err))
				mu.Lock()
				res.Failures = append(res.Failures, Failure{Query: q.Text, Engine: engine, Err: err})
				mu.Unlock()
				return nil
			}
			o.logger.Info("query complete", zap.String("query", q.Text), zap.String("engine", engine), zap.Int("results", len(urls)))
			perQuery[i] = toCandidates(urls, engine)
			return nil
		})
	}

	keywords := query.Keywords(intent)
	for i, src := range o.direct {
		g.Go(func() error {
			found, err := src.Discover(ctx, keywords)
			if err != nil {
				o.logger.Warn("direct discovery failed", zap.String("source", src.Name()), zap.Error(err))
				mu.Lock()
				res.DirectFailures = append(res.DirectFailures, Failure{Query: intent, Engine: src.Name(), Err: err})
				mu.Unlock()
			}
			perSource[i] = found
			return nil
		})
	}
	_ = g.Wait()

	for _, batch := range perQuery {
		res.Candidates = append(res.Candidates, batch...)
	}
	for i, batch := range perSource {
		if len(batch) > 0 {
			metrics.ObserveCandidates(o.direct[i].Name(), len(batch))
		}
		res.Candidates = append(res.Candidates, batch...)
	}
	return res
}

// SearchOne runs a single free-text query through the same retry and fallback
// chain, for lookups outside the discovery pass.
func (o *Orchestrator) SearchOne(ctx context.Context, text string, limit int) ([]string, error) {
	urls, _, err := o.searchLimit(ctx, text, limit)
	if len(urls) > limit && limit > 0 {
		urls = urls[:limit]
	}
	return urls, err
}

func (o *Orchestrator) search(ctx context.Context, text string) ([]string, string, error) {
	return o.searchLimit(ctx, text, o.cfg.MaxResults)
}

// searchLimit returns the URLs, the engine that produced them and, when both
// engines failed, the last error.
func (o *Orchestrator) searchLimit(ctx context.Context, text string, limit int) ([]string, string, error) {
	var urls []string
	primaryErr := retry.Do(ctx, o.cfg.Retry, o.sleeper, func(ctx context.Context, attempt int) error {
		found, err := o.primary.Search(ctx, text, limit)
		observe(o.primary.Name(), len(found), err)
		if err != nil {
			o.logger.Debug("primary engine error", zap.String("query", text), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if len(found) == 0 {
			return errNoResults
		}
		urls = found
		return nil
	})
	if primaryErr == nil {
		metrics.ObserveCandidates(o.primary.Name(), len(urls))
		return urls, o.primary.Name(), nil
	}
	if ctx.Err() != nil {
		return nil, o.primary.Name(), ctx.Err()
	}
	if o.fallback == nil {
		if errors.Is(primaryErr, errNoResults) {
			return nil, o.primary.Name(), nil
		}
		return nil, o.primary.Name(), primaryErr
	}

	o.logger.Info("falling back", zap.String("query", text), zap.String("engine", o.fallback.Name()), zap.Error(primaryErr))
	found, err := o.fallback.Search(ctx, text, limit)
	observe(o.fallback.Name(), len(found), err)
	if err != nil {
		if errors.Is(primaryErr, errNoResults) {
			// The primary answered, just with nothing; the fallback error is the real failure.
			return nil, o.fallback.Name(), err
		}
		return nil, o.fallback.Name(), fmt.Errorf("%w; fallback: %w", primaryErr, err)
	}
	metrics.ObserveCandidates(o.fallback.Name(), len(found))
	return found, o.fallback.Name(), nil
}

func observe(engine string, n int, err error) {
	switch {
	case errors.Is(err, ErrRateLimited):
		metrics.ObserveSearch(engine, "rate_limited")
	case err != nil:
		metrics.ObserveSearch(engine, "error")
	case n == 0:
		metrics.ObserveSearch(engine, "empty")
	default:
		metrics.ObserveSearch(engine, "ok")
	}
}

func toCandidates(urls []string, origin string) []jobs.Candidate {
	out := make([]jobs.Candidate, 0, len(urls))
	for _, u := range urls {
		out = append(out, jobs.Candidate{URL: u, Origin: origin})
	}
	return out
}
