package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-service/internal/domain"
)

func TestProcessorEventStore_InsertBatchAndGetByOrderID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProcessorEventStore(conn)

	events := []*domain.ProcessorEvent{
		{
			ID:         "ev1",
			Provider:   "stripe",
			EventType:  "charge.succeeded",
			OrderID:    ptr("order-42"),
			OccurredAt: 1700000002000,
			ReceivedAt: 1700000002100,
			Payload:    `{"amount":1200}`,
			Signature:  "aabbcc",
		},
		{
			ID:         "ev2",
			Provider:   "stripe",
			EventType:  "charge.refunded",
			OrderID:    ptr("order-42"),
			OccurredAt: 1700000001000,
			ReceivedAt: 1700000002200,
			Payload:    `{"amount":-1200}`,
			Signature:  "ddeeff",
		},
		{
			ID:         "ev3",
			Provider:   "adyen",
			EventType:  "authorisation",
			OccurredAt: 1700000003000,
			ReceivedAt: 1700000003100,
			Payload:    `{}`,
			Signature:  "112233",
		},
	}
	require.NoError(t, store.InsertBatch(ctx, events))

	got, err := store.GetByOrderID(ctx, "order-42")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ascending by occurred_at.
	assert.Equal(t, "ev2", got[0].ID)
	assert.Equal(t, "ev1", got[1].ID)
	require.NotNil(t, got[0].OrderID)
	assert.Equal(t, "order-42", *got[0].OrderID)

	// The orphan event carries no order id.
	byRange, err := store.GetByTimeRange(ctx, 1700000003000, 1700000004000)
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, "ev3", byRange[0].ID)
	assert.Nil(t, byRange[0].OrderID)
}

func TestProcessorEventStore_GetByTimeRange_Bounds(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProcessorEventStore(conn)

	for i, ts := range []int64{1000, 2000, 3000} {
		require.NoError(t, store.Insert(ctx, &domain.ProcessorEvent{
			ID:         string(rune('a' + i)),
			Provider:   "stripe",
			EventType:  "charge.succeeded",
			OccurredAt: ts,
			ReceivedAt: ts + 10,
			Payload:    `{}`,
		}))
	}

	// Bounds are inclusive on both ends.
	got, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].OccurredAt)
	assert.Equal(t, int64(2000), got[1].OccurredAt)
}
