package jobs

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// RunReport summarizes one pipeline pass.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Intent     string    `json:"intent"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Candidates      int `json:"candidates"`
	Duplicates      int `json:"duplicates"`
	Unsupported     int `json:"unsupported"`
	FetchFailures   int `json:"fetch_failures"`
	ParseFailures   int `json:"parse_failures"`
	Malformed       int `json:"malformed"`
	Closed          int `json:"closed"`
	Irrelevant      int `json:"irrelevant"`
	Enriched        int `json:"enriched"`
	Stored          int `json:"stored"`
	Delivered       int `json:"delivered"`
	DeliveryFailed  int `json:"delivery_failed"`
	SearchFailures  int `json:"search_failures"`
	DirectAPIErrors int `json:"direct_api_errors"`

	Error string `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String renders a one-line human summary.
func (r RunReport) String() string {
	return fmt.Sprintf(
		"run %s: %d candidates, %d duplicates, %d unsupported, %d fetch failures, %d parse failures, "+
			"%d malformed, %d closed, %d irrelevant, %d enriched, %d new, %d delivered, %d delivery failures",
		r.RunID, r.Candidates, r.Duplicates, r.Unsupported, r.FetchFailures, r.ParseFailures,
		r.Malformed, r.Closed, r.Irrelevant, r.Enriched, r.Stored, r.Delivered, r.DeliveryFailed,
	)
}

// MarshalLogObject lets the report be logged with zap.Object.
func (r RunReport) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", r.RunID)
	enc.AddString("intent", r.Intent)
	enc.AddDuration("duration", r.Duration())
	enc.AddInt("candidates", r.Candidates)
	enc.AddInt("duplicates", r.Duplicates)
	enc.AddInt("unsupported", r.Unsupported)
	enc.AddInt("fetch_failures", r.FetchFailures)
	enc.AddInt("parse_failures", r.ParseFailures)
	enc.AddInt("malformed", r.Malformed)
	enc.AddInt("closed", r.Closed)
	enc.AddInt("irrelevant", r.Irrelevant)
	enc.AddInt("enriched", r.Enriched)
	enc.AddInt("stored", r.Stored)
	enc.AddInt("delivered", r.Delivered)
	enc.AddInt("delivery_failed", r.DeliveryFailed)
	enc.AddInt("search_failures", r.SearchFailures)
	enc.AddInt("direct_api_errors", r.DirectAPIErrors)
	if r.Error != "" {
		enc.AddString("error", r.Error)
	}
	return nil
}
