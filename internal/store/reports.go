package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/storage"
)

// ErrNotFound signals that no run report has been saved yet.
var ErrNotFound = errors.New("run report not found")

// ReportRepository keeps the most recent run report next to the artifacts so
// the control plane can show it after a restart.
type ReportRepository struct {
	backend storage.Backend
	path    string
}

// NewReportRepository stores reports under path (default last_run.json).
func NewReportRepository(backend storage.Backend, path string) *ReportRepository {
	if path == "" {
		path = "last_run.json"
	}
	return &ReportRepository{backend: backend, path: path}
}

// SaveLast overwrites the stored report.
func (r *ReportRepository) SaveLast(ctx context.Context, report jobs.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	if err := r.backend.Write(ctx, r.path, data); err != nil {
		return fmt.Errorf("save run report: %w", err)
	}
	return nil
}

// Last returns the stored report or ErrNotFound.
func (r *ReportRepository) Last(ctx context.Context) (jobs.RunReport, error) {
	data, err := r.backend.Read(ctx, r.path)
	if errors.Is(err, storage.ErrNotExist) {
		return jobs.RunReport{}, ErrNotFound
	}
	if err != nil {
		return jobs.RunReport{}, fmt.Errorf("read run report: %w", err)
	}
	var report jobs.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return jobs.RunReport{}, fmt.Errorf("decode run report: %w", err)
	}
	return report, nil
}
