// Package app builds the long-lived services of a jobscout process from
// configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/clock/system"
	"github.com/JakeFAU/ats-job-scout/internal/config"
	"github.com/JakeFAU/ats-job-scout/internal/directapi"
	"github.com/JakeFAU/ats-job-scout/internal/dispatch"
	"github.com/JakeFAU/ats-job-scout/internal/enrich"
	"github.com/JakeFAU/ats-job-scout/internal/fetcher"
	collyfetcher "github.com/JakeFAU/ats-job-scout/internal/fetcher/colly"
	"github.com/JakeFAU/ats-job-scout/internal/fetcher/headless"
	"github.com/JakeFAU/ats-job-scout/internal/headless/detector"
	"github.com/JakeFAU/ats-job-scout/internal/id/uuid"
	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/metrics"
	"github.com/JakeFAU/ats-job-scout/internal/parser"
	"github.com/JakeFAU/ats-job-scout/internal/pipeline"
	"github.com/JakeFAU/ats-job-scout/internal/policy/ratelimit"
	"github.com/JakeFAU/ats-job-scout/internal/query"
	"github.com/JakeFAU/ats-job-scout/internal/retry"
	"github.com/JakeFAU/ats-job-scout/internal/search"
	"github.com/JakeFAU/ats-job-scout/internal/storage"
	"github.com/JakeFAU/ats-job-scout/internal/storage/gcs"
	"github.com/JakeFAU/ats-job-scout/internal/storage/local"
	"github.com/JakeFAU/ats-job-scout/internal/storage/memory"
	"github.com/JakeFAU/ats-job-scout/internal/store"
	"github.com/JakeFAU/ats-job-scout/internal/validator"
	"github.com/JakeFAU/ats-job-scout/internal/worker"
)

// App holds the shared services of one process.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	runner   *pipeline.Runner
	reports  *store.ReportRepository
	closers  []func() error
}

// Runner returns the run serializer every trigger goes through.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// Reports returns the persisted run report repository.
func (a *App) Reports() *store.ReportRepository {
	return a.reports
}

// Pipeline exposes the wired pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// New wires every component. It fails fast when a configured backend or
// sink cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger = logging.OrNop(logger)
	metrics.Init()

	a = &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.PerHostRPS,
		DefaultBurst: cfg.HTTP.PerHostBurst,
		HostRPS:      searchHostRates(cfg),
	})

	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
		MaxBodySize:   cfg.HTTP.MaxBodyBytes,
	})

	var (
		renderer jobs.Fetcher
		promoter fetcher.Promoter
	)
	if cfg.Headless.Enabled {
		hf, herr := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: seconds(cfg.Headless.NavTimeoutSec),
			SettleDelay:       millis(cfg.Headless.SettleMs),
		})
		if herr != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", herr)
		}
		a.closers = append(a.closers, func() error { hf.Close(); return nil })
		renderer = hf
		promoter = detector.NewHeuristic(cfg.Headless.PromotionThresh)
	}

	pages := fetcher.NewPolite(fetcher.NewPromoting(plain, renderer, promoter, logger), limiter, cfg.FetchRetry(), retry.TimerSleeper{}, logger)
	// The orchestrator owns search retries, so engines fetch once.
	searchPages := fetcher.NewPolite(plain, limiter, retry.Policy{MaxAttempts: 1}, retry.TimerSleeper{}, logger)

	orch := buildOrchestrator(cfg, searchPages, limiter, logger)

	v := validator.New(validator.DefaultPredicates(cfg.Validation.ClosurePhrases), validatorOptions(cfg, logger)...)

	var enricher worker.Enricher
	if cfg.Enrich.Enabled {
		var searcher enrich.Searcher
		if cfg.Enrich.SearchFallback {
			searcher = orch
		}
		enricher = &enrich.Enricher{
			Resolver: enrich.NewResolver(searcher, logger),
			Contacts: enrich.NewContactScraper(pages, cfg.Enrich.ContactPaths, cfg.Enrich.ContactConcurrency, logger),
		}
	}

	w := worker.New(pages, parser.Default(), v, enricher, worker.Config{
		SkipFetchWithPayload: cfg.Pipeline.SkipFetchWithPayload,
	}, logger)

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	var locker storage.Locker
	if l, ok := backend.(storage.Locker); ok {
		locker = l
	}
	a.reports = store.NewReportRepository(backend, cfg.Storage.ReportPath)

	sinks, err := a.openSinks(ctx)
	if err != nil {
		return nil, err
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Discoverer: orch,
		Processor:  w,
		Store:      store.New(backend, store.Config{MasterPath: cfg.Storage.MasterPath, DeltaPath: cfg.Storage.DeltaPath}, logger),
		Dispatcher: dispatch.New(logger, sinks...),
		Reports:    a.reports,
		Locker:     locker,
		Clock:      system.New(),
		IDs:        uuid.NewGenerator(),
		Logger:     logger,
	}, pipeline.Config{Workers: cfg.Pipeline.Workers, MaxJobs: cfg.Pipeline.MaxJobs})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	a.runner = pipeline.NewRunner(a.pipeline.Run, logger)

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("sinks", len(sinks)),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Bool("direct_api", cfg.Direct.Enabled),
	)
	return a, nil
}

func buildOrchestrator(cfg config.Config, f jobs.Fetcher, limiter *ratelimit.Limiter, logger *zap.Logger) *search.Orchestrator {
	var fallback search.Engine
	if cfg.Search.FallbackEnabled {
		fallback = search.NewGoogle(f, cfg.Search.GoogleURL)
	}

	opts := []search.Option{search.WithLogger(logger)}
	if cfg.Direct.Enabled {
		client := directapi.NewClient(directapi.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.HTTPTimeout(),
			Retry:     cfg.FetchRetry(),
		}, limiter, retry.TimerSleeper{}, logger)
		for _, src := range client.Sources(directapi.Companies{
			Ashby:           cfg.Direct.Ashby,
			Lever:           cfg.Direct.Lever,
			Greenhouse:      cfg.Direct.Greenhouse,
			SmartRecruiters: cfg.Direct.SmartRecruiters,
		}) {
			opts = append(opts, search.WithDirect(src))
		}
	}

	return search.NewOrchestrator(
		search.NewDuckDuckGo(f, cfg.Search.DuckDuckGoURL),
		fallback,
		search.Config{
			MaxResults:  cfg.Search.MaxResults,
			Concurrency: cfg.Search.Concurrency,
			Retry:       cfg.SearchRetry(),
		},
		opts...,
	)
}

// validatorOptions enables the relevance filter with keywords from the
// configured intent.
func validatorOptions(cfg config.Config, logger *zap.Logger) []validator.Option {
	opts := []validator.Option{validator.WithLogger(logger)}
	if cfg.Validation.RequireKeywordMatch {
		opts = append(opts, validator.WithRelevance(validator.KeywordRelevance{
			Keywords: query.Keywords(query.Intent(cfg.Search.Intent)),
		}))
	}
	return opts
}

func (a *App) openBackend(ctx context.Context) (storage.Backend, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case "local":
		b, err := local.New(local.Config{BaseDir: sc.Dir, KeepBackup: sc.KeepBackup})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return b, nil
	case "gcs":
		b, err := gcs.Open(ctx, gcs.Config{Bucket: sc.GCSBucket, Prefix: sc.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		a.logger.Info("using gcs storage", zap.String("bucket", sc.GCSBucket))
		return b, nil
	case "memory":
		a.logger.Warn("using in-memory storage, artifacts are discarded on exit")
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", sc.Backend)
	}
}

func (a *App) openSinks(ctx context.Context) ([]dispatch.Sink, error) {
	var sinks []dispatch.Sink
	if wc := a.cfg.Webhook; wc.URL != "" {
		sinks = append(sinks, dispatch.NewWebhook(dispatch.WebhookConfig{
			URL:      wc.URL,
			Timeout:  seconds(wc.TimeoutSeconds),
			Attempts: wc.Attempts,
			Delay:    millis(wc.DelayMs),
			Factor:   wc.Factor,
			Batch:    wc.Batch,
		}, a.logger))
		a.logger.Info("webhook delivery enabled", zap.String("host", hostOf(wc.URL)), zap.Bool("batch", wc.Batch))
	}
	if pc := a.cfg.PubSub; pc.ProjectID != "" {
		sink, client, err := dispatch.OpenPubSub(ctx, pc.ProjectID, pc.TopicName, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init pubsub: %w", err)
		}
		a.closers = append(a.closers, func() error { sink.Close(); return nil }, client.Close)
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

// PushMetrics sends the registry to the configured Pushgateway, if any.
func (a *App) PushMetrics(ctx context.Context) error {
	return metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.JobName)
}

// Close waits for background runs and releases clients in reverse order.
func (a *App) Close() error {
	if a.runner != nil {
		a.runner.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
		return err
	}
	return nil
}

func searchHostRates(cfg config.Config) map[string]float64 {
	rates := map[string]float64{
		"html.duckduckgo.com": cfg.Search.RequestsPerSec,
		"www.google.com":      cfg.Search.RequestsPerSec,
	}
	for _, raw := range []string{cfg.Search.DuckDuckGoURL, cfg.Search.GoogleURL} {
		if h := hostOf(raw); h != "" {
			rates[h] = cfg.Search.RequestsPerSec
		}
	}
	return rates
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
