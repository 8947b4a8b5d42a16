package domain

// Redemption represents a reward redemption created from loyalty points.
// Corresponds to redemptions table in PostgreSQL.
type Redemption struct {
	ID         string           `json:"id"`          // PRIMARY KEY
	CustomerID string           `json:"customer_id"` // owning customer
	RewardID   string           `json:"reward_id"`   // redeemed reward
	Code       string           `json:"code"`        // discount code issued to the customer
	Points     int64            `json:"points"`      // points spent
	Status     RedemptionStatus `json:"status"`
	CreatedAt  int64            `json:"created_at"`           // Unix timestamp in milliseconds
	UpdatedAt  *int64           `json:"updated_at,omitempty"` // last status change (ms, nullable)
}

// RedemptionStatus is the lifecycle state of a redemption.
type RedemptionStatus string

// Redemption status constants
const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApplied   RedemptionStatus = "applied"
	RedemptionCancelled RedemptionStatus = "cancelled"
	RedemptionExpired   RedemptionStatus = "expired"
)
