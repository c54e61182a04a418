package dispatch

import (
	"context"
	"sync"
)

// Memory records batches for inspection. It backs dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	batches []Batch
}

// NewMemory returns an empty recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// Name implements Sink.
func (m *Memory) Name() string { return "memory" }

// Send records the batch and reports every record as delivered.
func (m *Memory) Send(_ context.Context, batch Batch) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return Outcome{Delivered: len(batch.Records)}
}

// Batches returns the recorded batches.
func (m *Memory) Batches() []Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Batch, len(m.batches))
	copy(out, m.batches)
	return out
}
