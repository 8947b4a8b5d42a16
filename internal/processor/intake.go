package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/observability"
	"loyalty-service/internal/storage"
)

// EventInput is one raw event as delivered by a webhook or the firehose.
type EventInput struct {
	Provider   string  `json:"provider"`
	ExternalID string  `json:"external_id"`
	EventType  string  `json:"event_type"`
	OrderID    *string `json:"order_id,omitempty"`
	OccurredAt int64   `json:"occurred_at"`
	Payload    string  `json:"payload"`   // raw JSON body the signature covers
	Signature  string  `json:"signature"` // hex ed25519 signature
}

// EventID derives the deterministic archive id for a provider event, so the
// same event delivered twice (webhook retry, stream overlap) archives under
// one key.
func EventID(provider, externalID string) string {
	digest := sha256.Sum256([]byte(provider + "|" + externalID))
	return hex.EncodeToString(digest[:16])
}

// Intake verifies and archives processor events. Webhook handler and stream
// client both funnel through here.
type Intake struct {
	verifier *Verifier
	archive  storage.ProcessorEventStore
	logger   *log.Logger
}

// IntakeOptions contains configuration for creating an Intake.
type IntakeOptions struct {
	Verifier *Verifier
	Archive  storage.ProcessorEventStore
	Logger   *log.Logger
}

// NewIntake creates a new event intake.
func NewIntake(opts IntakeOptions) *Intake {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[processor] ", log.LstdFlags|log.Lshortfile)
	}
	return &Intake{
		verifier: opts.Verifier,
		archive:  opts.Archive,
		logger:   logger,
	}
}

// Process verifies the event signature and archives the event. Returns the
// archived record.
func (i *Intake) Process(ctx context.Context, in EventInput, receivedAt int64) (*domain.ProcessorEvent, error) {
	if in.Provider == "" || in.ExternalID == "" {
		return nil, fmt.Errorf("process event: %w", storage.ErrInvalidInput)
	}

	if i.verifier != nil {
		if err := i.verifier.Verify([]byte(in.Payload), in.Signature); err != nil {
			observability.RecordProcessorEvent(in.Provider, "rejected")
			return nil, fmt.Errorf("process event %s/%s: %w", in.Provider, in.ExternalID, err)
		}
	}

	event := &domain.ProcessorEvent{
		ID:         EventID(in.Provider, in.ExternalID),
		Provider:   in.Provider,
		EventType:  in.EventType,
		OrderID:    in.OrderID,
		OccurredAt: in.OccurredAt,
		ReceivedAt: receivedAt,
		Payload:    in.Payload,
		Signature:  in.Signature,
	}

	if err := i.archive.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("archive event %s: %w", event.ID, err)
	}

	observability.RecordProcessorEvent(in.Provider, "archived")
	i.logger.Printf("archived event %s provider=%s type=%s", event.ID, event.Provider, event.EventType)
	return event, nil
}

// DecodeEvent parses a wire message into an EventInput.
func DecodeEvent(data []byte) (EventInput, error) {
	var in EventInput
	if err := json.Unmarshal(data, &in); err != nil {
		return EventInput{}, fmt.Errorf("decode event: %w", err)
	}
	return in, nil
}
