package timeline

import (
	"context"

	"loyalty-service/internal/domain"
)

// The adapters below bind one upstream source to a sourceState: each refill
// passes pagination state through to the injected fetcher and wraps the
// native records into TimelineEntry values. Nothing else happens here; the
// merge scheduler never sees native record shapes.

// newLedgerState prepares the ledger source for one merge run.
func newLedgerState(src LedgerSource, customerID string, types []domain.LedgerEntryType, cursor *string) *sourceState {
	return &sourceState{
		kind:       domain.TimelineKindLedger,
		nextCursor: cursor,
		refill: func(ctx context.Context, cursor *string, limit int) ([]domain.TimelineEntry, *string, error) {
			items, next, err := src.Fetch(ctx, LedgerRequest{
				CustomerID: customerID,
				Cursor:     cursor,
				Limit:      limit,
				Types:      types,
			})
			if err != nil {
				return nil, nil, err
			}
			entries := make([]domain.TimelineEntry, 0, len(items))
			for _, item := range items {
				entries = append(entries, domain.NewLedgerTimelineEntry(item))
			}
			return entries, next, nil
		},
	}
}

// newRedemptionState prepares the redemptions source for one merge run.
func newRedemptionState(src RedemptionSource, customerID string, statuses []domain.RedemptionStatus, cursor *string) *sourceState {
	return &sourceState{
		kind:       domain.TimelineKindRedemption,
		nextCursor: cursor,
		refill: func(ctx context.Context, cursor *string, limit int) ([]domain.TimelineEntry, *string, error) {
			items, next, err := src.Fetch(ctx, RedemptionRequest{
				CustomerID: customerID,
				Cursor:     cursor,
				Limit:      limit,
				Statuses:   statuses,
			})
			if err != nil {
				return nil, nil, err
			}
			entries := make([]domain.TimelineEntry, 0, len(items))
			for _, item := range items {
				entries = append(entries, domain.NewRedemptionTimelineEntry(item))
			}
			return entries, next, nil
		},
	}
}

// newReferralState prepares the referrals source for one merge run. The
// status allow-list is expected to be resolved already (empty never reaches
// this point; resolveFilters substitutes the default set).
func newReferralState(src ReferralSource, customerID string, statuses []domain.ReferralStatus, cursor *string) *sourceState {
	return &sourceState{
		kind:       domain.TimelineKindReferral,
		nextCursor: cursor,
		refill: func(ctx context.Context, cursor *string, limit int) ([]domain.TimelineEntry, *string, error) {
			items, next, err := src.Fetch(ctx, ReferralRequest{
				CustomerID: customerID,
				Cursor:     cursor,
				Limit:      limit,
				Statuses:   statuses,
			})
			if err != nil {
				return nil, nil, err
			}
			entries := make([]domain.TimelineEntry, 0, len(items))
			for _, item := range items {
				entries = append(entries, domain.NewReferralTimelineEntry(item))
			}
			return entries, next, nil
		},
	}
}
