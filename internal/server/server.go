// Package server runs jobscout as a long-lived service: the cron scheduler
// plus the HTTP control plane, sharing one run serializer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/api"
	"github.com/JakeFAU/ats-job-scout/internal/app"
	"github.com/JakeFAU/ats-job-scout/internal/config"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/pipeline"
	"github.com/JakeFAU/ats-job-scout/internal/query"
	"github.com/JakeFAU/ats-job-scout/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP listener and the scheduler.
type Server struct {
	cfg       config.ServeConfig
	intent    string
	app       *app.App
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

// New builds a Server around an initialized App.
func New(cfg config.Config, a *app.App, logger *zap.Logger) (*Server, error) {
	logger = logging.OrNop(logger)
	intent := query.Intent(cfg.Search.Intent)
	sched, err := scheduler.New(cfg.Serve.Schedule, intent, a.Runner(), logger)
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	return &Server{
		cfg:       cfg.Serve,
		intent:    intent,
		app:       a,
		scheduler: sched,
		logger:    logger,
	}, nil
}

// Run blocks until ctx is canceled or SIGINT/SIGTERM arrives, then drains
// the listener and the scheduler. In-flight runs are canceled.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiServer := api.NewServer(s.app.Runner(), s.app.Reports(), api.Options{
		DefaultIntent: s.intent,
		APIKey:        s.cfg.APIKey,
		RunContext:    ctx,
	}, s.logger)
	srv := &http.Server{
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	if s.cfg.RunOnStart {
		if err := s.app.Runner().Start(ctx, s.intent); err != nil && !errors.Is(err, pipeline.ErrRunInProgress) {
			s.logger.Error("initial run failed to start", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	<-ctx.Done()
	s.logger.Info("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-s.scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		s.logger.Warn("scheduler did not stop before timeout")
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		s.logger.Info("shutdown complete")
		return nil
	}
}
