// Package dispatch pushes a run's new postings to downstream consumers.
// Delivery is best effort: a failed record is counted and logged, never
// retried across runs and never rolled back from storage.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/metrics"
	"github.com/JakeFAU/ats-job-scout/internal/store"
)

// Batch is the delta of one run.
type Batch struct {
	RunID        string
	DiscoveredAt time.Time
	Records      []jobs.EnrichedJob
}

// Outcome counts per-record delivery results.
type Outcome struct {
	Delivered int
	Failed    int
}

// Add accumulates o2 into o.
func (o *Outcome) Add(o2 Outcome) {
	o.Delivered += o2.Delivered
	o.Failed += o2.Failed
}

// Sink delivers a batch. Implementations isolate failures per record.
type Sink interface {
	Name() string
	Send(ctx context.Context, batch Batch) Outcome
}

// Payload renders one record as a flat JSON object keyed by the CSV column
// names plus run metadata.
func Payload(r jobs.EnrichedJob, runID string, at time.Time) map[string]string {
	row := store.Row(r)
	out := make(map[string]string, len(row)+2)
	for i, col := range store.Header {
		out[col] = row[i]
	}
	out["Run ID"] = runID
	out["Discovered At"] = at.UTC().Format(time.RFC3339)
	return out
}

// Dispatcher fans a batch out to every sink.
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
}

// New creates a Dispatcher. With no sinks Dispatch is a no-op.
func New(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logging.OrNop(logger).Named("dispatch")}
}

// Dispatch sends the batch to each sink in turn and sums the outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, batch Batch) Outcome {
	var total Outcome
	if len(batch.Records) == 0 {
		return total
	}
	for _, sink := range d.sinks {
		out := sink.Send(ctx, batch)
		d.logger.Info("batch dispatched",
			zap.String("sink", sink.Name()), zap.String("run_id", batch.RunID),
			zap.Int("delivered", out.Delivered), zap.Int("failed", out.Failed))
		for range out.Delivered {
			metrics.ObserveDelivery(sink.Name(), "ok")
		}
		for range out.Failed {
			metrics.ObserveDelivery(sink.Name(), "error")
		}
		total.Add(out)
	}
	return total
}
