package timeline

import "loyalty-service/internal/domain"

// Filters selects which sources contribute to a timeline page and narrows
// each source with an allow-list. Filters are immutable per call and applied
// at the adapter level, before any merge logic runs.
type Filters struct {
	IncludeLedger      bool `json:"include_ledger"`
	IncludeRedemptions bool `json:"include_redemptions"`
	IncludeReferrals   bool `json:"include_referrals"`

	LedgerTypes        []domain.LedgerEntryType  `json:"ledger_types,omitempty"`
	RedemptionStatuses []domain.RedemptionStatus `json:"redemption_statuses,omitempty"`
	ReferralStatuses   []domain.ReferralStatus   `json:"referral_statuses,omitempty"`
}

// defaultReferralStatuses is the referral allow-list applied when the caller
// does not narrow referrals explicitly.
var defaultReferralStatuses = []domain.ReferralStatus{
	domain.ReferralConverted,
	domain.ReferralSent,
	domain.ReferralExpired,
	domain.ReferralCancelled,
}

// DefaultFilters returns the all-inclusive filter set: every source enabled,
// ledger and redemptions unrestricted, referrals limited to the default
// status set.
func DefaultFilters() Filters {
	return Filters{
		IncludeLedger:      true,
		IncludeRedemptions: true,
		IncludeReferrals:   true,
		ReferralStatuses:   append([]domain.ReferralStatus(nil), defaultReferralStatuses...),
	}
}

// resolveFilters fills in defaults: a nil filter object means "everything",
// and an empty referral allow-list falls back to the default status set.
func resolveFilters(f *Filters) Filters {
	if f == nil {
		return DefaultFilters()
	}
	resolved := *f
	if len(resolved.ReferralStatuses) == 0 {
		resolved.ReferralStatuses = append([]domain.ReferralStatus(nil), defaultReferralStatuses...)
	}
	return resolved
}
