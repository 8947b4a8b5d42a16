package domain

// ReferralInvite represents a referral sent by a customer, tracked through
// conversion. Corresponds to referral_invites table in PostgreSQL.
type ReferralInvite struct {
	ID           string         `json:"id"`            // PRIMARY KEY
	CustomerID   string         `json:"customer_id"`   // referrer
	Code         string         `json:"code"`          // base58 short code shared with the invitee
	InviteeEmail string         `json:"invitee_email"` // invited address
	Status       ReferralStatus `json:"status"`
	RewardPoints int64          `json:"reward_points"`          // points granted on conversion
	CreatedAt    int64          `json:"created_at"`             // Unix timestamp in milliseconds
	UpdatedAt    *int64         `json:"updated_at,omitempty"`   // last status change (ms, nullable)
	CompletedAt  *int64         `json:"completed_at,omitempty"` // conversion time (ms, nullable)
}

// ReferralStatus is the lifecycle state of a referral invite.
type ReferralStatus string

// Referral status constants
const (
	ReferralSent      ReferralStatus = "sent"
	ReferralConverted ReferralStatus = "converted"
	ReferralExpired   ReferralStatus = "expired"
	ReferralCancelled ReferralStatus = "cancelled"
)

// OrderingTimestamp returns the timestamp used to place the invite on the
// loyalty timeline: completed_at when the referral converted, otherwise the
// last status change, otherwise creation time.
func (r *ReferralInvite) OrderingTimestamp() int64 {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	if r.UpdatedAt != nil {
		return *r.UpdatedAt
	}
	return r.CreatedAt
}
