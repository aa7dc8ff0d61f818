// Package store provides an in-memory record.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lodgekeeper/ops-engine/record"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records []record.OperationalRecord
	byID    map[string]int
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

// Insert appends records. Append-only: duplicate IDs are rejected, and the
// batch is checked before anything is written so a duplicate never leaves a
// half-applied batch behind.
func (m *Memory) Insert(_ context.Context, records []record.OperationalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if _, exists := m.byID[rec.ID]; exists || seen[rec.ID] {
			return record.ErrDuplicateRecord
		}
		seen[rec.ID] = true
	}

	for _, rec := range records {
		m.byID[rec.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (record.OperationalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[id]
	if !ok {
		return record.OperationalRecord{}, record.ErrRecordNotFound
	}
	return m.records[idx], nil
}

func (m *Memory) Query(_ context.Context, q record.Query) ([]record.OperationalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []record.OperationalRecord
	for _, rec := range m.records {
		if q.Matches(rec) {
			result = append(result, rec)
		}
	}

	switch q.Order {
	case record.OrderByVersion:
		sort.Slice(result, func(i, j int) bool {
			a, b := result[i], result[j]
			if a.OriginalID != b.OriginalID {
				return a.OriginalID < b.OriginalID
			}
			if a.VersionNo != b.VersionNo {
				return a.VersionNo < b.VersionNo
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
	default:
		sort.Slice(result, func(i, j int) bool {
			a, b := result[i], result[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
	}
	return result, nil
}

// UpdateStatus is the single permitted mutation (approval workflow).
func (m *Memory) UpdateStatus(_ context.Context, id string, status record.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.byID[id]
	if !ok {
		return record.ErrRecordNotFound
	}
	m.records[idx].Status = status
	return nil
}
