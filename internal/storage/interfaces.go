package storage

import (
	"context"

	"loyalty-service/internal/domain"
)

// LedgerQuery selects one page of a customer's ledger entries, newest first.
type LedgerQuery struct {
	CustomerID string
	Types      []domain.LedgerEntryType // empty means unrestricted
	Cursor     *string                  // keyset cursor from a previous page, nil for the first
	Limit      int
}

// RedemptionQuery selects one page of a customer's redemptions, newest first.
type RedemptionQuery struct {
	CustomerID string
	Statuses   []domain.RedemptionStatus
	Cursor     *string
	Limit      int
}

// ReferralQuery selects one page of a customer's referral invites, newest
// first by their ordering timestamp.
type ReferralQuery struct {
	CustomerID string
	Statuses   []domain.ReferralStatus
	Cursor     *string
	Limit      int
}

// LedgerStore provides access to loyalty_ledger storage.
type LedgerStore interface {
	// Insert adds a new ledger entry. Returns ErrDuplicateKey if the id exists.
	// Ledger entries are append-only; there is no update.
	Insert(ctx context.Context, e *domain.LedgerEntry) error

	// GetByID retrieves an entry by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error)

	// ListByCustomer returns one page ordered by (occurred_at DESC, id DESC)
	// plus the cursor for the next page, nil when exhausted.
	ListByCustomer(ctx context.Context, q LedgerQuery) ([]*domain.LedgerEntry, *string, error)

	// PointsBalance sums the signed point deltas for a customer.
	PointsBalance(ctx context.Context, customerID string) (int64, error)
}

// RedemptionStore provides access to redemptions storage.
type RedemptionStore interface {
	// Insert adds a new redemption. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, r *domain.Redemption) error

	// GetByID retrieves a redemption by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Redemption, error)

	// UpdateStatus transitions a redemption and stamps updated_at.
	// Returns ErrNotFound if the id does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.RedemptionStatus, updatedAt int64) error

	// ListByCustomer returns one page ordered by (created_at DESC, id DESC)
	// plus the cursor for the next page, nil when exhausted.
	ListByCustomer(ctx context.Context, q RedemptionQuery) ([]*domain.Redemption, *string, error)
}

// ReferralStore provides access to referral_invites storage.
type ReferralStore interface {
	// Insert adds a new invite. Returns ErrDuplicateKey if the id or the
	// short code exists.
	Insert(ctx context.Context, r *domain.ReferralInvite) error

	// GetByID retrieves an invite by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.ReferralInvite, error)

	// GetByCode retrieves an invite by its short code. Returns ErrNotFound
	// if not exists.
	GetByCode(ctx context.Context, code string) (*domain.ReferralInvite, error)

	// UpdateStatus transitions an invite, stamping updated_at and, for
	// conversions, completed_at. Returns ErrNotFound if the id does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.ReferralStatus, updatedAt int64, completedAt *int64) error

	// ListByCustomer returns one page ordered by the invite's ordering
	// timestamp (completed_at, else updated_at, else created_at) DESC then
	// id DESC, plus the cursor for the next page, nil when exhausted.
	ListByCustomer(ctx context.Context, q ReferralQuery) ([]*domain.ReferralInvite, *string, error)
}

// ProcessorEventStore provides access to the payment processor event archive.
type ProcessorEventStore interface {
	// Insert archives a single event.
	Insert(ctx context.Context, e *domain.ProcessorEvent) error

	// InsertBatch archives multiple events in one round trip.
	InsertBatch(ctx context.Context, events []*domain.ProcessorEvent) error

	// GetByOrderID retrieves all archived events for an order, ordered by
	// occurred_at ASC.
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.ProcessorEvent, error)

	// GetByTimeRange retrieves events with occurred_at within [start, end]
	// (inclusive), ordered by occurred_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ProcessorEvent, error)
}
