// Package worker processes one routed posting candidate: fetch, parse,
// validate and enrich.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/parser"
	"github.com/JakeFAU/ats-job-scout/internal/validator"
)

// Parser turns a fetched page or payload into a posting.
type Parser interface {
	Parse(platform jobs.Platform, in parser.Input) (jobs.JobPosting, error)
}

// Validator classifies a parsed posting.
type Validator interface {
	Validate(posting jobs.JobPosting) (jobs.JobPosting, validator.Verdict)
}

// Enricher attaches website and contact data. It must not fail.
type Enricher interface {
	Enrich(ctx context.Context, posting jobs.JobPosting) jobs.EnrichedJob
}

// Outcome is where a candidate ended up.
type Outcome string

// Candidate outcomes. Only OutcomeKept produces a record.
const (
	OutcomeKept        Outcome = "kept"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeParseFailed Outcome = "parse_failed"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeClosed      Outcome = "closed"
	OutcomeIrrelevant  Outcome = "irrelevant"
	OutcomeCanceled    Outcome = "canceled"
)

// Result is the per-candidate report handed back to the pipeline.
type Result struct {
	Platform jobs.Platform
	URL      string
	Outcome  Outcome
	Record   jobs.EnrichedJob
	// Reason names the validator check or the error text for drops.
	Reason string
}

// Config controls Worker behavior.
type Config struct {
	// SkipFetchWithPayload parses structured payloads without fetching the
	// page. The page only contributes links for website resolution.
	SkipFetchWithPayload bool
}

// Worker runs the per-posting stages in order.
type Worker struct {
	fetcher   jobs.Fetcher
	parser    Parser
	validator Validator
	enricher  Enricher
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. enricher may be nil, in which case contact
// fields stay empty.
func New(
	fetcher jobs.Fetcher,
	p Parser,
	v Validator,
	enricher Enricher,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		fetcher:   fetcher,
		parser:    p,
		validator: v,
		enricher:  enricher,
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("worker"),
	}
}

// Process runs fetch, parse, validate and enrich for one candidate.
func (w *Worker) Process(ctx context.Context, platform jobs.Platform, c jobs.Candidate) Result {
	res := Result{Platform: platform, URL: c.URL}
	if err := ctx.Err(); err != nil {
		res.Outcome, res.Reason = OutcomeCanceled, err.Error()
		return res
	}

	in := parser.Input{URL: c.URL, Payload: c.Payload}
	hasPayload := len(c.Payload) > 0
	if !hasPayload || !w.cfg.SkipFetchWithPayload {
		resp, err := w.fetch(ctx, c.URL)
		switch {
		case err != nil && !hasPayload:
			w.logger.Warn("fetch failed", zap.String("url", c.URL), zap.Error(err))
			res.Outcome, res.Reason = OutcomeFetchFailed, err.Error()
			return res
		case err != nil:
			w.logger.Debug("page fetch failed, parsing payload only", zap.String("url", c.URL), zap.Error(err))
		default:
			in.FinalURL = resp.URL
			in.Body = resp.Body
		}
	}

	posting, err := w.parser.Parse(platform, in)
	if err != nil {
		w.logger.Warn("parse failed", zap.String("url", c.URL), zap.Error(err))
		res.Outcome, res.Reason = OutcomeParseFailed, err.Error()
		return res
	}

	posting, verdict := w.validator.Validate(posting)
	if !verdict.Keep() {
		res.Outcome, res.Reason = outcomeFor(verdict.Outcome), verdict.Reason
		w.logger.Debug("posting dropped",
			zap.String("url", c.URL),
			zap.String("outcome", string(res.Outcome)),
			zap.String("reason", verdict.Reason),
		)
		return res
	}

	if w.enricher != nil {
		res.Record = w.enricher.Enrich(ctx, posting)
	} else {
		res.Record = jobs.EnrichedJob{JobPosting: posting}
	}
	res.Outcome = OutcomeKept
	return res
}

func (w *Worker) fetch(ctx context.Context, url string) (jobs.FetchResponse, error) {
	if w.fetcher == nil {
		return jobs.FetchResponse{}, fmt.Errorf("no fetcher configured")
	}
	pageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := w.fetcher.Fetch(pageCtx, jobs.FetchRequest{URL: url})
	if err != nil {
		return jobs.FetchResponse{}, fmt.Errorf("fetch posting: %w", err)
	}
	if err := jobs.CheckStatus(resp); err != nil {
		return jobs.FetchResponse{}, fmt.Errorf("fetch posting: %w", err)
	}
	return resp, nil
}

func outcomeFor(o validator.Outcome) Outcome {
	switch o {
	case validator.OutcomeClosed:
		return OutcomeClosed
	case validator.OutcomeIrrelevant:
		return OutcomeIrrelevant
	default:
		return OutcomeMalformed
	}
}
