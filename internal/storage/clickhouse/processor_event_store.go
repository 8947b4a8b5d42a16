package clickhouse

import (
	"context"
	"fmt"
	"time"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/observability"
	"loyalty-service/internal/storage"
)

// ProcessorEventStore implements storage.ProcessorEventStore using
// ClickHouse. The archive is append-only and deduplicated by the
// ReplacingMergeTree key, not at insert time.
type ProcessorEventStore struct {
	conn *Conn
}

// NewProcessorEventStore creates a new ProcessorEventStore.
func NewProcessorEventStore(conn *Conn) *ProcessorEventStore {
	return &ProcessorEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ProcessorEventStore = (*ProcessorEventStore)(nil)

// Insert archives a single event.
func (s *ProcessorEventStore) Insert(ctx context.Context, e *domain.ProcessorEvent) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBatch(ctx, []*domain.ProcessorEvent{e})
}

// InsertBatch archives multiple events in one round trip.
func (s *ProcessorEventStore) InsertBatch(ctx context.Context, events []*domain.ProcessorEvent) (err error) {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_batch", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO processor_events (
			id, provider, event_type, order_id, occurred_at, received_at, payload, signature
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if e == nil || e.ID == "" {
			return storage.ErrInvalidInput
		}
		orderID := ""
		if e.OrderID != nil {
			orderID = *e.OrderID
		}
		err = batch.Append(
			e.ID, e.Provider, e.EventType, orderID,
			uint64(e.OccurredAt), uint64(e.ReceivedAt),
			e.Payload, e.Signature,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByOrderID retrieves all events for an order, ordered by occurred_at ASC.
func (s *ProcessorEventStore) GetByOrderID(ctx context.Context, orderID string) (events []*domain.ProcessorEvent, err error) {
	if orderID == "" {
		return nil, storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "get_by_order_id", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT id, provider, event_type, order_id, occurred_at, received_at, payload, signature
		FROM processor_events
		WHERE order_id = ?
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query by order id: %w", err)
	}
	defer rows.Close()

	return scanProcessorEvents(rows)
}

// GetByTimeRange retrieves events within [start, end], ordered by occurred_at ASC.
func (s *ProcessorEventStore) GetByTimeRange(ctx context.Context, start, end int64) (events []*domain.ProcessorEvent, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "get_by_time_range", time.Since(began).Seconds(), err)
	}()

	query := `
		SELECT id, provider, event_type, order_id, occurred_at, received_at, payload, signature
		FROM processor_events
		WHERE occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanProcessorEvents(rows)
}

// chRows abstracts the row iterator for scanning.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanProcessorEvents scans multiple rows into a slice of ProcessorEvent.
func scanProcessorEvents(rows chRows) ([]*domain.ProcessorEvent, error) {
	var events []*domain.ProcessorEvent

	for rows.Next() {
		var e domain.ProcessorEvent
		var orderID string
		var occurredAt, receivedAt uint64

		err := rows.Scan(
			&e.ID,
			&e.Provider,
			&e.EventType,
			&orderID,
			&occurredAt,
			&receivedAt,
			&e.Payload,
			&e.Signature,
		)
		if err != nil {
			return nil, fmt.Errorf("scan processor event row: %w", err)
		}

		if orderID != "" {
			e.OrderID = &orderID
		}
		e.OccurredAt = int64(occurredAt)
		e.ReceivedAt = int64(receivedAt)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processor event rows: %w", err)
	}

	return events, nil
}
