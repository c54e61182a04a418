// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/pipeline"
)

// Trigger runs one pass.
type Trigger interface {
	Run(ctx context.Context, intent string) (jobs.RunReport, error)
}

// Scheduler owns a cron instance with a single pipeline entry.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	intent  string
	trigger Trigger
	logger  *zap.Logger
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 6h") and builds a stopped Scheduler.
func New(spec, intent string, trigger Trigger, logger *zap.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	logger = logging.OrNop(logger).Named("scheduler")
	cl := cronLogger{l: logger.Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:    spec,
		intent:  intent,
		trigger: trigger,
		logger:  logger,
	}, nil
}

// Start registers the job and starts the cron loop. Runs use ctx; cancel it
// to abort an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("schedule run: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.spec))
	return nil
}

// Stop halts the cron loop and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.trigger.Run(ctx, s.intent)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Info("scheduled run skipped, another run is active")
	case err != nil:
		s.logger.Error("scheduled run failed", zap.String("run_id", report.RunID), zap.Error(err))
	default:
		s.logger.Info("scheduled run finished", zap.String("run_id", report.RunID), zap.Int("stored", report.Stored))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
