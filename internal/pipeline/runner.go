package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunFunc executes one pass.
type RunFunc func(ctx context.Context, intent string) (jobs.RunReport, error)

// Runner serializes runs within the process. Scheduled, CLI and HTTP
// triggered runs all go through it.
type Runner struct {
	run    RunFunc
	mu     sync.Mutex
	wg     sync.WaitGroup
	logger *zap.Logger

	stateMu sync.RWMutex
	running bool
	last    *jobs.RunReport
}

// NewRunner wraps run.
func NewRunner(run RunFunc, logger *zap.Logger) *Runner {
	return &Runner{run: run, logger: logging.OrNop(logger).Named("runner")}
}

// Run executes a pass synchronously, or fails fast with ErrRunInProgress.
func (r *Runner) Run(ctx context.Context, intent string) (jobs.RunReport, error) {
	if !r.mu.TryLock() {
		return jobs.RunReport{}, ErrRunInProgress
	}
	defer r.mu.Unlock()
	return r.execute(ctx, intent)
}

// Start launches a pass in the background and returns immediately. ctx
// bounds the run, so callers pass a long-lived context, not a request one.
func (r *Runner) Start(ctx context.Context, intent string) error {
	if !r.mu.TryLock() {
		return ErrRunInProgress
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.mu.Unlock()
		if _, err := r.execute(ctx, intent); err != nil {
			r.logger.Warn("background run failed", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until background runs have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Running reports whether a pass is executing.
func (r *Runner) Running() bool {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.running
}

// Last returns the most recent report produced in this process.
func (r *Runner) Last() (jobs.RunReport, bool) {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	if r.last == nil {
		return jobs.RunReport{}, false
	}
	return *r.last, true
}

func (r *Runner) execute(ctx context.Context, intent string) (jobs.RunReport, error) {
	r.setRunning(true)
	defer r.setRunning(false)

	report, err := r.run(ctx, intent)
	if report.RunID != "" {
		r.stateMu.Lock()
		r.last = &report
		r.stateMu.Unlock()
	}
	return report, err
}

func (r *Runner) setRunning(v bool) {
	r.stateMu.Lock()
	r.running = v
	r.stateMu.Unlock()
}
