package memory

import (
	"context"
	"sort"
	"sync"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LedgerEntry // keyed by entry id
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: make(map[string]*domain.LedgerEntry),
	}
}

// Insert adds a new ledger entry. Returns ErrDuplicateKey if the id exists.
func (s *LedgerStore) Insert(_ context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.ID == "" || e.CustomerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[e.ID] = &copy
	return nil
}

// GetByID retrieves an entry by id. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetByID(_ context.Context, id string) (*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *e
	return &copy, nil
}

// ListByCustomer returns one page ordered by (occurred_at DESC, id DESC).
func (s *LedgerStore) ListByCustomer(_ context.Context, q storage.LedgerQuery) ([]*domain.LedgerEntry, *string, error) {
	if q.CustomerID == "" || q.Limit <= 0 {
		return nil, nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	var matched []*domain.LedgerEntry
	for _, e := range s.data {
		if e.CustomerID != q.CustomerID {
			continue
		}
		if len(q.Types) > 0 && !containsType(q.Types, e.Type) {
			continue
		}
		copy := *e
		matched = append(matched, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].OccurredAt != matched[j].OccurredAt {
			return matched[i].OccurredAt > matched[j].OccurredAt
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, q.Cursor, q.Limit,
		func(e *domain.LedgerEntry) (int64, string) { return e.OccurredAt, e.ID })
}

// PointsBalance sums the signed point deltas for a customer.
func (s *LedgerStore) PointsBalance(_ context.Context, customerID string) (int64, error) {
	if customerID == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance int64
	for _, e := range s.data {
		if e.CustomerID == customerID {
			balance += e.Points
		}
	}
	return balance, nil
}

func containsType(types []domain.LedgerEntryType, t domain.LedgerEntryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
