// Package stub provides in-memory timeline sources for testing.
package stub

import (
	"context"
	"strconv"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/timeline"
)

// StubLedgerSource serves fixed in-memory ledger entries page by page.
// Implements timeline.LedgerSource interface. Cursors are decimal offsets
// into the filtered slice, so pagination is deterministic.
type StubLedgerSource struct {
	entries []*domain.LedgerEntry

	// FetchCount tracks how many pages were requested, for refill assertions.
	FetchCount int

	// Err, when set, is returned from every Fetch.
	Err error
}

// NewStubLedgerSource creates a new stub ledger source with the given
// entries. Entries are expected newest first, as the real upstream serves them.
func NewStubLedgerSource(entries []*domain.LedgerEntry) *StubLedgerSource {
	return &StubLedgerSource{entries: entries}
}

// Fetch returns one page of entries matching the request.
func (s *StubLedgerSource) Fetch(_ context.Context, req timeline.LedgerRequest) ([]*domain.LedgerEntry, *string, error) {
	s.FetchCount++
	if s.Err != nil {
		return nil, nil, s.Err
	}
	var filtered []*domain.LedgerEntry
	for _, e := range s.entries {
		if e.CustomerID != req.CustomerID {
			continue
		}
		if len(req.Types) > 0 && !containsLedgerType(req.Types, e.Type) {
			continue
		}
		copy := *e
		filtered = append(filtered, &copy)
	}
	return page(filtered, req.Cursor, req.Limit)
}

// StubRedemptionSource serves fixed in-memory redemptions page by page.
// Implements timeline.RedemptionSource interface.
type StubRedemptionSource struct {
	redemptions []*domain.Redemption
	FetchCount  int
	Err         error
}

// NewStubRedemptionSource creates a new stub redemption source.
func NewStubRedemptionSource(redemptions []*domain.Redemption) *StubRedemptionSource {
	return &StubRedemptionSource{redemptions: redemptions}
}

// Fetch returns one page of redemptions matching the request.
func (s *StubRedemptionSource) Fetch(_ context.Context, req timeline.RedemptionRequest) ([]*domain.Redemption, *string, error) {
	s.FetchCount++
	if s.Err != nil {
		return nil, nil, s.Err
	}
	var filtered []*domain.Redemption
	for _, r := range s.redemptions {
		if r.CustomerID != req.CustomerID {
			continue
		}
		if len(req.Statuses) > 0 && !containsRedemptionStatus(req.Statuses, r.Status) {
			continue
		}
		copy := *r
		filtered = append(filtered, &copy)
	}
	return page(filtered, req.Cursor, req.Limit)
}

// StubReferralSource serves fixed in-memory referral invites page by page.
// Implements timeline.ReferralSource interface.
type StubReferralSource struct {
	invites    []*domain.ReferralInvite
	FetchCount int
	Err        error
}

// NewStubReferralSource creates a new stub referral source.
func NewStubReferralSource(invites []*domain.ReferralInvite) *StubReferralSource {
	return &StubReferralSource{invites: invites}
}

// Fetch returns one page of invites matching the request.
func (s *StubReferralSource) Fetch(_ context.Context, req timeline.ReferralRequest) ([]*domain.ReferralInvite, *string, error) {
	s.FetchCount++
	if s.Err != nil {
		return nil, nil, s.Err
	}
	var filtered []*domain.ReferralInvite
	for _, inv := range s.invites {
		if inv.CustomerID != req.CustomerID {
			continue
		}
		if len(req.Statuses) > 0 && !containsReferralStatus(req.Statuses, inv.Status) {
			continue
		}
		copy := *inv
		filtered = append(filtered, &copy)
	}
	return page(filtered, req.Cursor, req.Limit)
}

// page slices one page out of the filtered items using a decimal offset
// cursor. The next cursor is nil when the slice is exhausted.
func page[T any](items []T, cursor *string, limit int) ([]T, *string, error) {
	offset := 0
	if cursor != nil {
		n, err := strconv.Atoi(*cursor)
		if err == nil && n >= 0 {
			offset = n
		}
	}
	if offset >= len(items) {
		return nil, nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	var next *string
	if end < len(items) {
		token := strconv.Itoa(end)
		next = &token
	}
	return items[offset:end], next, nil
}

func containsLedgerType(types []domain.LedgerEntryType, t domain.LedgerEntryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsRedemptionStatus(statuses []domain.RedemptionStatus, s domain.RedemptionStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsReferralStatus(statuses []domain.ReferralStatus, s domain.ReferralStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
