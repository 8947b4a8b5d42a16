package domain

// LedgerEntry represents one movement on a customer's loyalty points ledger.
// Corresponds to loyalty_ledger table in PostgreSQL.
type LedgerEntry struct {
	ID          string          `json:"id"`                 // PRIMARY KEY
	CustomerID  string          `json:"customer_id"`        // owning customer
	Type        LedgerEntryType `json:"type"`               // earn | spend | adjust | expire
	Points      int64           `json:"points"`             // signed point delta
	Description string          `json:"description"`        // human-readable reason
	OrderID     *string         `json:"order_id,omitempty"` // originating order (nullable)
	OccurredAt  int64           `json:"occurred_at"`        // Unix timestamp in milliseconds
	CreatedAt   int64           `json:"created_at"`         // record creation timestamp (ms)
}

// LedgerEntryType classifies a ledger movement.
type LedgerEntryType string

// Ledger entry type constants
const (
	LedgerEntryEarn   LedgerEntryType = "earn"
	LedgerEntrySpend  LedgerEntryType = "spend"
	LedgerEntryAdjust LedgerEntryType = "adjust"
	LedgerEntryExpire LedgerEntryType = "expire"
)
