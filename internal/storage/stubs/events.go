package stubs

import (
	"context"
	"sort"
	"sync"

	"library/internal/models"
	"library/internal/storage"
)

// MockEventLog keeps ledger events in memory
type MockEventLog struct {
	mu     sync.RWMutex
	events []models.LedgerEvent
}

// NewMockEventLog creates an empty in-memory event log
func NewMockEventLog() *MockEventLog {
	return &MockEventLog{events: make([]models.LedgerEvent, 0)}
}

// Initialize does nothing for the mock event log
func (l *MockEventLog) Initialize(ctx context.Context) error {
	return nil
}

// RecordEvent appends an event
func (l *MockEventLog) RecordEvent(ctx context.Context, event models.LedgerEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	return nil
}

// LastEvents returns the last N events, newest first
func (l *MockEventLog) LastEvents(ctx context.Context, limit int) ([]models.LedgerEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Newest first; insertion order breaks ties
	sorted := make([]models.LedgerEvent, len(l.events))
	for i, event := range l.events {
		sorted[len(l.events)-1-i] = event
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})

	if limit < 0 {
		limit = 0
	}
	if limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit], nil
}

// Close does nothing for the mock event log
func (l *MockEventLog) Close() error {
	return nil
}

var _ storage.EventLog = (*MockEventLog)(nil)
