package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// RedemptionStore implements storage.RedemptionStore using PostgreSQL.
type RedemptionStore struct {
	pool *Pool
}

// NewRedemptionStore creates a new RedemptionStore.
func NewRedemptionStore(pool *Pool) *RedemptionStore {
	return &RedemptionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RedemptionStore = (*RedemptionStore)(nil)

// Insert adds a new redemption. Returns ErrDuplicateKey if the id exists.
func (s *RedemptionStore) Insert(ctx context.Context, r *domain.Redemption) error {
	if r == nil || r.ID == "" || r.CustomerID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO redemptions (
			id, customer_id, reward_id, code, points, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.CustomerID,
		r.RewardID,
		r.Code,
		r.Points,
		string(r.Status),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// GetByID retrieves a redemption by id. Returns ErrNotFound if not exists.
func (s *RedemptionStore) GetByID(ctx context.Context, id string) (*domain.Redemption, error) {
	query := `
		SELECT id, customer_id, reward_id, code, points, status, created_at, updated_at
		FROM redemptions
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	r, err := scanRedemption(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get redemption by id: %w", err)
	}
	return r, nil
}

// UpdateStatus transitions a redemption and stamps updated_at.
func (s *RedemptionStore) UpdateStatus(ctx context.Context, id string, status domain.RedemptionStatus, updatedAt int64) error {
	if id == "" {
		return storage.ErrInvalidInput
	}

	query := `UPDATE redemptions SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update redemption status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByCustomer returns one page ordered by (created_at DESC, id DESC).
func (s *RedemptionStore) ListByCustomer(ctx context.Context, q storage.RedemptionQuery) ([]*domain.Redemption, *string, error) {
	if q.CustomerID == "" || q.Limit <= 0 {
		return nil, nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, customer_id, reward_id, code, points, status, created_at, updated_at
		FROM redemptions
		WHERE customer_id = $1
	`
	args := []any{q.CustomerID}

	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, st := range q.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}

	if q.Cursor != nil {
		ts, id, err := storage.DecodeKeysetCursor(*q.Cursor)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, ts, id)
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, q.Limit+1)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	redemptions, err := scanRedemptions(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *string
	if len(redemptions) > q.Limit {
		redemptions = redemptions[:q.Limit]
		last := redemptions[len(redemptions)-1]
		token := storage.EncodeKeysetCursor(last.CreatedAt, last.ID)
		next = &token
	}
	return redemptions, next, nil
}

// scanRedemption scans a single row into a Redemption.
func scanRedemption(row pgx.Row) (*domain.Redemption, error) {
	var r domain.Redemption
	var statusStr string

	err := row.Scan(
		&r.ID,
		&r.CustomerID,
		&r.RewardID,
		&r.Code,
		&r.Points,
		&statusStr,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RedemptionStatus(statusStr)
	return &r, nil
}

// scanRedemptions scans multiple rows into a slice of Redemption.
func scanRedemptions(rows pgx.Rows) ([]*domain.Redemption, error) {
	var redemptions []*domain.Redemption

	for rows.Next() {
		var r domain.Redemption
		var statusStr string

		err := rows.Scan(
			&r.ID,
			&r.CustomerID,
			&r.RewardID,
			&r.Code,
			&r.Points,
			&statusStr,
			&r.CreatedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan redemption row: %w", err)
		}

		r.Status = domain.RedemptionStatus(statusStr)
		redemptions = append(redemptions, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}

	return redemptions, nil
}
