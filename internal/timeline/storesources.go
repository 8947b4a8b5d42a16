package timeline

import (
	"context"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// StoreSources builds Sources served directly from local stores, used when
// the service owns the loyalty data instead of calling the loyalty API.
// Store list pages are ordered by the same keys the merge orders on, so the
// two deployments paginate identically.
func StoreSources(ledger storage.LedgerStore, redemptions storage.RedemptionStore, referrals storage.ReferralStore) Sources {
	return Sources{
		Ledger:      &storeLedgerSource{store: ledger},
		Redemptions: &storeRedemptionSource{store: redemptions},
		Referrals:   &storeReferralSource{store: referrals},
	}
}

type storeLedgerSource struct {
	store storage.LedgerStore
}

func (s *storeLedgerSource) Fetch(ctx context.Context, req LedgerRequest) ([]*domain.LedgerEntry, *string, error) {
	return s.store.ListByCustomer(ctx, storage.LedgerQuery{
		CustomerID: req.CustomerID,
		Types:      req.Types,
		Cursor:     req.Cursor,
		Limit:      req.Limit,
	})
}

type storeRedemptionSource struct {
	store storage.RedemptionStore
}

func (s *storeRedemptionSource) Fetch(ctx context.Context, req RedemptionRequest) ([]*domain.Redemption, *string, error) {
	return s.store.ListByCustomer(ctx, storage.RedemptionQuery{
		CustomerID: req.CustomerID,
		Statuses:   req.Statuses,
		Cursor:     req.Cursor,
		Limit:      req.Limit,
	})
}

type storeReferralSource struct {
	store storage.ReferralStore
}

func (s *storeReferralSource) Fetch(ctx context.Context, req ReferralRequest) ([]*domain.ReferralInvite, *string, error) {
	return s.store.ListByCustomer(ctx, storage.ReferralQuery{
		CustomerID: req.CustomerID,
		Statuses:   req.Statuses,
		Cursor:     req.Cursor,
		Limit:      req.Limit,
	})
}
