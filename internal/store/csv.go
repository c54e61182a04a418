package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// Header is the column order of both the master and delta artifacts.
var Header = []string{
	"Job Title",
	"Company",
	"Location",
	"Job URL",
	"Company Website",
	"HR Contact Email",
	"HR LinkedIn",
	"Source",
}

// ErrCorrupt marks an artifact that exists but cannot be parsed.
var ErrCorrupt = errors.New("corrupt artifact")

// Row renders a record in Header order.
func Row(j jobs.EnrichedJob) []string {
	return []string{
		j.Title,
		j.Company,
		j.Location,
		j.URL,
		j.CompanyWebsite,
		j.HREmail,
		j.HRLinkedIn,
		string(j.Source),
	}
}

func fromRow(rec []string) jobs.EnrichedJob {
	return jobs.EnrichedJob{
		JobPosting: jobs.JobPosting{
			Title:    rec[0],
			Company:  rec[1],
			Location: rec[2],
			URL:      rec[3],
			Source:   jobs.Platform(rec[7]),
			Status:   jobs.StatusOpen,
		},
		Contact: jobs.Contact{
			CompanyWebsite: rec[4],
			HREmail:        rec[5],
			HRLinkedIn:     rec[6],
		},
	}
}

// Encode writes the header followed by one row per record.
func Encode(records []jobs.EnrichedJob) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(Row(r)); err != nil {
			return nil, fmt.Errorf("write row %s: %w", r.URL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an artifact. Empty input yields no records; a wrong header
// or ragged row is ErrCorrupt.
func Decode(data []byte) ([]jobs.EnrichedJob, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(Header)

	head, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}
	for i, col := range Header {
		if strings.TrimSpace(head[i]) != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrCorrupt, i+1, head[i], col)
		}
	}

	var out []jobs.EnrichedJob
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		out = append(out, fromRow(rec))
	}
}
