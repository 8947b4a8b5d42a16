package domain

// ProcessorEvent represents a payment-processor event archived for the
// back-office replay console. Corresponds to processor_events table in
// ClickHouse.
type ProcessorEvent struct {
	ID         string  `json:"id"`                 // deterministic hash of (provider, external_id)
	Provider   string  `json:"provider"`           // processor identifier
	EventType  string  `json:"event_type"`         // provider event type, e.g. "charge.succeeded"
	OrderID    *string `json:"order_id,omitempty"` // related storefront order (nullable)
	OccurredAt int64   `json:"occurred_at"`        // provider-reported time (ms)
	ReceivedAt int64   `json:"received_at"`        // intake time (ms)
	Payload    string  `json:"payload"`            // raw JSON body as received
	Signature  string  `json:"signature"`          // hex ed25519 signature over the payload
}
