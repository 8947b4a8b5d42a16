package domain

// TimelineEntryKind discriminates the payload carried by a TimelineEntry.
type TimelineEntryKind string

// Timeline entry kinds, in fixed source examination order.
const (
	TimelineKindLedger     TimelineEntryKind = "ledger"
	TimelineKindRedemption TimelineEntryKind = "redemption"
	TimelineKindReferral   TimelineEntryKind = "referral"
)

// TimelineEntry is one item of the merged loyalty timeline: a tagged union
// over the three source collections. Exactly one payload pointer is non-nil,
// matching Kind. ID and OccurredAt are normalized projections used only for
// ordering and resumption; entries are read-only once constructed.
type TimelineEntry struct {
	Kind       TimelineEntryKind `json:"kind"`
	ID         string            `json:"id"`
	OccurredAt int64             `json:"occurred_at"` // Unix timestamp in milliseconds

	Ledger     *LedgerEntry    `json:"ledger,omitempty"`
	Redemption *Redemption     `json:"redemption,omitempty"`
	Referral   *ReferralInvite `json:"referral,omitempty"`
}

// NewLedgerTimelineEntry wraps a ledger entry for the timeline.
func NewLedgerTimelineEntry(e *LedgerEntry) TimelineEntry {
	return TimelineEntry{
		Kind:       TimelineKindLedger,
		ID:         e.ID,
		OccurredAt: e.OccurredAt,
		Ledger:     e,
	}
}

// NewRedemptionTimelineEntry wraps a redemption for the timeline.
func NewRedemptionTimelineEntry(r *Redemption) TimelineEntry {
	return TimelineEntry{
		Kind:       TimelineKindRedemption,
		ID:         r.ID,
		OccurredAt: r.CreatedAt,
		Redemption: r,
	}
}

// NewReferralTimelineEntry wraps a referral invite for the timeline.
// The ordering timestamp prefers completed_at, then updated_at, then created_at.
func NewReferralTimelineEntry(r *ReferralInvite) TimelineEntry {
	return TimelineEntry{
		Kind:       TimelineKindReferral,
		ID:         r.ID,
		OccurredAt: r.OrderingTimestamp(),
		Referral:   r,
	}
}
