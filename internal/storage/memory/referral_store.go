package memory

import (
	"context"
	"sort"
	"sync"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// ReferralStore is an in-memory implementation of storage.ReferralStore.
type ReferralStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.ReferralInvite // keyed by invite id
	byCode map[string]string                 // short code -> invite id
}

// NewReferralStore creates a new in-memory referral store.
func NewReferralStore() *ReferralStore {
	return &ReferralStore{
		data:   make(map[string]*domain.ReferralInvite),
		byCode: make(map[string]string),
	}
}

// Insert adds a new invite. Returns ErrDuplicateKey if the id or short code
// exists.
func (s *ReferralStore) Insert(_ context.Context, r *domain.ReferralInvite) error {
	if r == nil || r.ID == "" || r.CustomerID == "" || r.Code == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byCode[r.Code]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ID] = &copy
	s.byCode[r.Code] = r.ID
	return nil
}

// GetByID retrieves an invite by id. Returns ErrNotFound if not exists.
func (s *ReferralStore) GetByID(_ context.Context, id string) (*domain.ReferralInvite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// GetByCode retrieves an invite by short code. Returns ErrNotFound if not exists.
func (s *ReferralStore) GetByCode(_ context.Context, code string) (*domain.ReferralInvite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byCode[code]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *s.data[id]
	return &copy, nil
}

// UpdateStatus transitions an invite, stamping updated_at and optionally
// completed_at.
func (s *ReferralStore) UpdateStatus(_ context.Context, id string, status domain.ReferralStatus, updatedAt int64, completedAt *int64) error {
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
	if completedAt != nil {
		r.CompletedAt = completedAt
	}
	return nil
}

// ListByCustomer returns one page ordered by the invite's ordering timestamp
// DESC then id DESC.
func (s *ReferralStore) ListByCustomer(_ context.Context, q storage.ReferralQuery) ([]*domain.ReferralInvite, *string, error) {
	if q.CustomerID == "" || q.Limit <= 0 {
		return nil, nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	var matched []*domain.ReferralInvite
	for _, r := range s.data {
		if r.CustomerID != q.CustomerID {
			continue
		}
		if len(q.Statuses) > 0 && !containsReferralStatus(q.Statuses, r.Status) {
			continue
		}
		copy := *r
		matched = append(matched, &copy)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		ti, tj := matched[i].OrderingTimestamp(), matched[j].OrderingTimestamp()
		if ti != tj {
			return ti > tj
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, q.Cursor, q.Limit,
		func(r *domain.ReferralInvite) (int64, string) { return r.OrderingTimestamp(), r.ID })
}

func containsReferralStatus(statuses []domain.ReferralStatus, s domain.ReferralStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
