package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/metrics"
	"github.com/JakeFAU/ats-job-scout/internal/middleware"
	"github.com/JakeFAU/ats-job-scout/internal/pipeline"
	"github.com/JakeFAU/ats-job-scout/internal/store"
)

// Runner starts background runs and reports on them.
type Runner interface {
	Start(ctx context.Context, intent string) error
	Running() bool
	Last() (jobs.RunReport, bool)
}

// ReportSource returns the persisted report of the previous run.
type ReportSource interface {
	Last(ctx context.Context) (jobs.RunReport, error)
}

// Options configures a Server.
type Options struct {
	// DefaultIntent is used when POST /runs carries no intent.
	DefaultIntent string
	// APIKey enables X-API-Key authentication when non-empty.
	APIKey string
	// RunContext bounds runs started over HTTP. It must outlive requests.
	RunContext context.Context
}

// Server wires HTTP handlers to the runner and the report store.
type Server struct {
	router  chi.Router
	runner  Runner
	reports ReportSource
	opts    Options
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. reports may be nil.
func NewServer(runner Runner, reports ReportSource, opts Options, logger *zap.Logger) *Server {
	if opts.RunContext == nil {
		opts.RunContext = context.Background()
	}
	s := &Server{
		runner:  runner,
		reports: reports,
		opts:    opts,
		logger:  logging.OrNop(logger).Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(middleware.Metrics)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Get("/last", s.lastRun)
			r.Get("/status", s.runStatus)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	Intent string `json:"intent"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	intent := strings.TrimSpace(req.Intent)
	if intent == "" {
		intent = s.opts.DefaultIntent
	}

	err := s.runner.Start(s.opts.RunContext, intent)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("run started over http", zap.String("intent", intent))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) lastRun(w http.ResponseWriter, r *http.Request) {
	if report, ok := s.runner.Last(); ok {
		writeJSON(w, http.StatusOK, report)
		return
	}
	if s.reports == nil {
		writeError(w, http.StatusNotFound, "no run recorded")
		return
	}
	report, err := s.reports.Last(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no run recorded")
		return
	}
	if err != nil {
		s.logger.Error("load last run report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) runStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.runner.Running()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &middleware.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Debug("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
