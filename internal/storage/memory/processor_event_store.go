package memory

import (
	"context"
	"sort"
	"sync"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// ProcessorEventStore is an in-memory implementation of
// storage.ProcessorEventStore, used in tests and --use-memory mode. The
// production archive lives in ClickHouse.
type ProcessorEventStore struct {
	mu     sync.RWMutex
	events []*domain.ProcessorEvent
}

// NewProcessorEventStore creates a new in-memory event archive.
func NewProcessorEventStore() *ProcessorEventStore {
	return &ProcessorEventStore{}
}

// Insert archives a single event. Re-inserting an existing id replaces the
// stored row, mirroring the ClickHouse ReplacingMergeTree backend.
func (s *ProcessorEventStore) Insert(_ context.Context, e *domain.ProcessorEvent) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(e)
	return nil
}

// InsertBatch archives multiple events.
func (s *ProcessorEventStore) InsertBatch(_ context.Context, events []*domain.ProcessorEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil || e.ID == "" {
			return storage.ErrInvalidInput
		}
		s.upsert(e)
	}
	return nil
}

// upsert replaces an event with the same id or appends. Caller holds the lock.
func (s *ProcessorEventStore) upsert(e *domain.ProcessorEvent) {
	copy := *e
	for i, existing := range s.events {
		if existing.ID == e.ID {
			s.events[i] = &copy
			return
		}
	}
	s.events = append(s.events, &copy)
}

// GetByOrderID retrieves all events for an order, ordered by occurred_at ASC.
func (s *ProcessorEventStore) GetByOrderID(_ context.Context, orderID string) ([]*domain.ProcessorEvent, error) {
	if orderID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	var matched []*domain.ProcessorEvent
	for _, e := range s.events {
		if e.OrderID != nil && *e.OrderID == orderID {
			copy := *e
			matched = append(matched, &copy)
		}
	}
	s.mu.RUnlock()

	sortEventsAsc(matched)
	return matched, nil
}

// GetByTimeRange retrieves events within [start, end], ordered by occurred_at ASC.
func (s *ProcessorEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ProcessorEvent, error) {
	s.mu.RLock()
	var matched []*domain.ProcessorEvent
	for _, e := range s.events {
		if e.OccurredAt >= start && e.OccurredAt <= end {
			copy := *e
			matched = append(matched, &copy)
		}
	}
	s.mu.RUnlock()

	sortEventsAsc(matched)
	return matched, nil
}

func sortEventsAsc(events []*domain.ProcessorEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].OccurredAt != events[j].OccurredAt {
			return events[i].OccurredAt < events[j].OccurredAt
		}
		return events[i].ID < events[j].ID
	})
}
