// Package validator decides whether a parsed posting is well formed and still
// accepting applicants.
package validator

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
)

// Outcome classifies a validation result.
type Outcome string

// Validation outcomes. Only OutcomeOpen postings continue down the pipeline.
const (
	OutcomeOpen       Outcome = "open"
	OutcomeClosed     Outcome = "closed"
	OutcomeMalformed  Outcome = "malformed"
	OutcomeIrrelevant Outcome = "irrelevant"
)

// Verdict is the validator's decision for one posting.
type Verdict struct {
	Outcome Outcome
	Status  jobs.Status
	// Reason names the check that decided the outcome.
	Reason string
}

// Keep reports whether the posting should be enriched and stored.
func (v Verdict) Keep() bool {
	return v.Outcome == OutcomeOpen
}

// Predicate flags postings that are no longer accepting applicants.
type Predicate interface {
	Name() string
	Closed(posting jobs.JobPosting) bool
}

// Relevance filters postings whose title does not match the search intent.
type Relevance interface {
	Relevant(posting jobs.JobPosting) bool
}

// Validator runs the structural check, then each closure predicate in order,
// then the optional relevance filter.
type Validator struct {
	predicates []Predicate
	relevance  Relevance
	logger     *zap.Logger
}

// Option customizes a Validator.
type Option func(*Validator)

// WithRelevance enables the relevance filter.
func WithRelevance(r Relevance) Option {
	return func(v *Validator) { v.relevance = r }
}

// WithLogger sets the logger used for debug decisions.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New builds a Validator from predicates.
func New(predicates []Predicate, opts ...Option) *Validator {
	v := &Validator{predicates: predicates}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = logging.OrNop(v.logger)
	return v
}

// Validate classifies posting and returns it with Status set.
func (v *Validator) Validate(posting jobs.JobPosting) (jobs.JobPosting, Verdict) {
	if posting.Title == "" || posting.URL == "" {
		posting.Status = jobs.StatusUnknown
		return posting, Verdict{Outcome: OutcomeMalformed, Status: jobs.StatusUnknown, Reason: "missing title or url"}
	}
	for _, p := range v.predicates {
		if p.Closed(posting) {
			posting.Status = jobs.StatusClosed
			v.logger.Debug("posting closed", zap.String("url", posting.URL), zap.String("predicate", p.Name()))
			return posting, Verdict{Outcome: OutcomeClosed, Status: jobs.StatusClosed, Reason: p.Name()}
		}
	}
	posting.Status = jobs.StatusOpen
	if v.relevance != nil && !v.relevance.Relevant(posting) {
		return posting, Verdict{Outcome: OutcomeIrrelevant, Status: jobs.StatusOpen, Reason: "title does not match intent"}
	}
	return posting, Verdict{Outcome: OutcomeOpen, Status: jobs.StatusOpen}
}
