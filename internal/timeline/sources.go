package timeline

import (
	"context"

	"loyalty-service/internal/domain"
)

// LedgerRequest is one page request against the loyalty ledger collection.
type LedgerRequest struct {
	CustomerID string
	Cursor     *string // nil means first page
	Limit      int
	Types      []domain.LedgerEntryType // empty means unrestricted
}

// RedemptionRequest is one page request against the redemptions collection.
type RedemptionRequest struct {
	CustomerID string
	Cursor     *string
	Limit      int
	Statuses   []domain.RedemptionStatus // empty means unrestricted
}

// ReferralRequest is one page request against the referral invites collection.
type ReferralRequest struct {
	CustomerID string
	Cursor     *string
	Limit      int
	Statuses   []domain.ReferralStatus
}

// LedgerSource provides paginated loyalty ledger entries.
type LedgerSource interface {
	// Fetch returns one page of entries plus the cursor for the next page,
	// nil when the collection is exhausted. Items are expected newest first.
	Fetch(ctx context.Context, req LedgerRequest) ([]*domain.LedgerEntry, *string, error)
}

// RedemptionSource provides paginated reward redemptions.
type RedemptionSource interface {
	Fetch(ctx context.Context, req RedemptionRequest) ([]*domain.Redemption, *string, error)
}

// ReferralSource provides paginated referral invites.
type ReferralSource interface {
	Fetch(ctx context.Context, req ReferralRequest) ([]*domain.ReferralInvite, *string, error)
}

// Sources bundles the three upstream fetchers consumed by the merge engine.
// Implementations are injected so the engine can be tested against
// deterministic fixtures (see the stub package).
type Sources struct {
	Ledger      LedgerSource
	Redemptions RedemptionSource
	Referrals   ReferralSource
}
