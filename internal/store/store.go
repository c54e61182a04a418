// Package store persists the master and delta CSV artifacts. The master is
// append-only across runs; the delta holds only the rows new to this run.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/dedup"
	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/storage"
)

// Master is the in-memory view of every row ever emitted, keyed by
// canonical job URL.
type Master struct {
	rows  []jobs.EnrichedJob
	index map[string]struct{}
}

// NewMaster builds a master from rows. Every row is kept, even when several
// share a canonical URL; only the index collapses them.
func NewMaster(rows ...jobs.EnrichedJob) *Master {
	m := &Master{
		rows:  append([]jobs.EnrichedJob(nil), rows...),
		index: make(map[string]struct{}, len(rows)),
	}
	for _, r := range rows {
		m.index[key(r.URL)] = struct{}{}
	}
	return m
}

func (m *Master) add(r jobs.EnrichedJob) bool {
	k := key(r.URL)
	if _, ok := m.index[k]; ok {
		return false
	}
	m.index[k] = struct{}{}
	m.rows = append(m.rows, r)
	return true
}

// Contains implements dedup.KnownSet.
func (m *Master) Contains(url string) bool {
	_, ok := m.index[key(url)]
	return ok
}

// Len returns the number of rows.
func (m *Master) Len() int { return len(m.rows) }

// Rows returns a copy of the rows in insertion order.
func (m *Master) Rows() []jobs.EnrichedJob {
	return append([]jobs.EnrichedJob(nil), m.rows...)
}

// key canonicalizes url so rows written by older runs still match.
func key(url string) string {
	if canonical, err := dedup.Normalize(url); err == nil {
		return canonical
	}
	return url
}

const restoreTimeout = 10 * time.Second

// Config names the artifacts inside the backend.
type Config struct {
	MasterPath string
	DeltaPath  string
}

// Store reads and commits artifacts through a storage.Backend.
type Store struct {
	backend storage.Backend
	cfg     Config
	logger  *zap.Logger
}

// New creates a Store. Empty paths default to master_jobs.csv and delta_jobs.csv.
func New(backend storage.Backend, cfg Config, logger *zap.Logger) *Store {
	if cfg.MasterPath == "" {
		cfg.MasterPath = "master_jobs.csv"
	}
	if cfg.DeltaPath == "" {
		cfg.DeltaPath = "delta_jobs.csv"
	}
	return &Store{backend: backend, cfg: cfg, logger: logging.OrNop(logger).Named("store")}
}

// Load reads the master. A missing artifact is an empty master; anything
// unreadable is returned as an error so the run stops before it can
// overwrite history.
func (s *Store) Load(ctx context.Context) (*Master, error) {
	data, err := s.backend.Read(ctx, s.cfg.MasterPath)
	if errors.Is(err, storage.ErrNotExist) {
		s.logger.Info("no master artifact yet, starting empty", zap.String("uri", s.backend.URI(s.cfg.MasterPath)))
		return NewMaster(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load master: %w", err)
	}
	rows, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load master %s: %w", s.backend.URI(s.cfg.MasterPath), err)
	}
	m := NewMaster(rows...)
	s.logger.Info("master loaded", zap.Int("rows", m.Len()))
	return m, nil
}

// Commit appends the records absent from master and writes both artifacts:
// the full master first, then the delta. When the delta write fails the
// previous master content is written back, so a failed commit leaves both
// artifacts and master as they were. The returned delta preserves record
// order and drops repeated URLs.
func (s *Store) Commit(ctx context.Context, master *Master, records []jobs.EnrichedJob) ([]jobs.EnrichedJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	seen := make(map[string]struct{}, len(records))
	var delta []jobs.EnrichedJob
	for _, r := range records {
		k := key(r.URL)
		if master.Contains(k) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		delta = append(delta, r)
	}

	deltaCSV, err := Encode(delta)
	if err != nil {
		return nil, err
	}
	previousCSV, err := Encode(master.Rows())
	if err != nil {
		return nil, err
	}
	masterCSV, err := Encode(append(master.Rows(), delta...))
	if err != nil {
		return nil, err
	}

	if err := s.backend.Write(ctx, s.cfg.MasterPath, masterCSV); err != nil {
		return nil, fmt.Errorf("write master: %w", err)
	}
	if err := s.backend.Write(ctx, s.cfg.DeltaPath, deltaCSV); err != nil {
		// The caller's ctx may be the reason the write failed.
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer cancel()
		if rerr := s.backend.Write(restoreCtx, s.cfg.MasterPath, previousCSV); rerr != nil {
			s.logger.Error("restore master after failed delta write", zap.Error(rerr),
				zap.String("master", s.backend.URI(s.cfg.MasterPath)))
			return nil, fmt.Errorf("write delta: %w (master restore failed: %v)", err, rerr)
		}
		return nil, fmt.Errorf("write delta: %w", err)
	}
	for _, r := range delta {
		master.add(r)
	}
	s.logger.Info("artifacts committed",
		zap.Int("new", len(delta)), zap.Int("master_rows", master.Len()),
		zap.String("master", s.backend.URI(s.cfg.MasterPath)), zap.String("delta", s.backend.URI(s.cfg.DeltaPath)))
	return delta, nil
}
