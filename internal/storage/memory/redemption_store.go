package memory

import (
	"context"
	"sort"
	"sync"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// RedemptionStore is an in-memory implementation of storage.RedemptionStore.
type RedemptionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Redemption // keyed by redemption id
}

// NewRedemptionStore creates a new in-memory redemption store.
func NewRedemptionStore() *RedemptionStore {
	return &RedemptionStore{
		data: make(map[string]*domain.Redemption),
	}
}

// Insert adds a new redemption. Returns ErrDuplicateKey if the id exists.
func (s *RedemptionStore) Insert(_ context.Context, r *domain.Redemption) error {
	if r == nil || r.ID == "" || r.CustomerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ID] = &copy
	return nil
}

// GetByID retrieves a redemption by id. Returns ErrNotFound if not exists.
func (s *RedemptionStore) GetByID(_ context.Context, id string) (*domain.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// UpdateStatus transitions a redemption and stamps updated_at.
func (s *RedemptionStore) UpdateStatus(_ context.Context, id string, status domain.RedemptionStatus, updatedAt int64) error {
	if id == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = &updatedAt
	return nil
}

// ListByCustomer returns one page ordered by (created_at DESC, id DESC).
func (s *RedemptionStore) ListByCustomer(_ context.Context, q storage.RedemptionQuery) ([]*domain.Redemption, *string, error) {
	if q.CustomerID == "" || q.Limit <= 0 {
		return nil, nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	var matched []*domain.Redemption
	for _, r := range s.data {
		if r.CustomerID != q.CustomerID {
			continue
		}
		if len(q.Statuses) > 0 && !containsRedemptionStatus(q.Statuses, r.Status) {
			continue
		}
		copy := *r
		matched = append(matched, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, q.Cursor, q.Limit,
		func(r *domain.Redemption) (int64, string) { return r.CreatedAt, r.ID })
}

func containsRedemptionStatus(statuses []domain.RedemptionStatus, s domain.RedemptionStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
