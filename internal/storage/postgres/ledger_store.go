package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Insert adds a new ledger entry. Returns ErrDuplicateKey if the id exists.
func (s *LedgerStore) Insert(ctx context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.ID == "" || e.CustomerID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO loyalty_ledger (
			id, customer_id, type, points, description, order_id, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID,
		e.CustomerID,
		string(e.Type),
		e.Points,
		e.Description,
		e.OrderID,
		e.OccurredAt,
		e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID retrieves an entry by id. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	query := `
		SELECT id, customer_id, type, points, description, order_id, occurred_at, created_at
		FROM loyalty_ledger
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry by id: %w", err)
	}
	return e, nil
}

// ListByCustomer returns one page ordered by (occurred_at DESC, id DESC),
// using a keyset cursor. One extra row is fetched to decide whether a next
// page exists.
func (s *LedgerStore) ListByCustomer(ctx context.Context, q storage.LedgerQuery) ([]*domain.LedgerEntry, *string, error) {
	if q.CustomerID == "" || q.Limit <= 0 {
		return nil, nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, customer_id, type, points, description, order_id, occurred_at, created_at
		FROM loyalty_ledger
		WHERE customer_id = $1
	`
	args := []any{q.CustomerID}

	if len(q.Types) > 0 {
		types := make([]string, 0, len(q.Types))
		for _, t := range q.Types {
			types = append(types, string(t))
		}
		args = append(args, types)
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}

	if q.Cursor != nil {
		ts, id, err := storage.DecodeKeysetCursor(*q.Cursor)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, ts, id)
		query += fmt.Sprintf(" AND (occurred_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, q.Limit+1)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedgerEntries(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *string
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
		last := entries[len(entries)-1]
		token := storage.EncodeKeysetCursor(last.OccurredAt, last.ID)
		next = &token
	}
	return entries, next, nil
}

// PointsBalance sums the signed point deltas for a customer.
func (s *LedgerStore) PointsBalance(ctx context.Context, customerID string) (int64, error) {
	if customerID == "" {
		return 0, storage.ErrInvalidInput
	}

	query := `SELECT COALESCE(SUM(points), 0) FROM loyalty_ledger WHERE customer_id = $1`

	var balance int64
	if err := s.pool.QueryRow(ctx, query, customerID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("points balance: %w", err)
	}
	return balance, nil
}

// scanLedgerEntry scans a single row into a LedgerEntry.
func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var typeStr string

	err := row.Scan(
		&e.ID,
		&e.CustomerID,
		&typeStr,
		&e.Points,
		&e.Description,
		&e.OrderID,
		&e.OccurredAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Type = domain.LedgerEntryType(typeStr)
	return &e, nil
}

// scanLedgerEntries scans multiple rows into a slice of LedgerEntry.
func scanLedgerEntries(rows pgx.Rows) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry

	for rows.Next() {
		var e domain.LedgerEntry
		var typeStr string

		err := rows.Scan(
			&e.ID,
			&e.CustomerID,
			&typeStr,
			&e.Points,
			&e.Description,
			&e.OrderID,
			&e.OccurredAt,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}

		e.Type = domain.LedgerEntryType(typeStr)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}

	return entries, nil
}
