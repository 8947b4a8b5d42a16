package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/storage"
)

// ReferralStore implements storage.ReferralStore using PostgreSQL.
//
// Lists order by COALESCE(completed_at, updated_at, created_at), the same
// fallback the timeline applies, so store pages line up with merge pages.
type ReferralStore struct {
	pool *Pool
}

// NewReferralStore creates a new ReferralStore.
func NewReferralStore(pool *Pool) *ReferralStore {
	return &ReferralStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferralStore = (*ReferralStore)(nil)

// Insert adds a new invite. Returns ErrDuplicateKey if the id or the short
// code exists.
func (s *ReferralStore) Insert(ctx context.Context, r *domain.ReferralInvite) error {
	if r == nil || r.ID == "" || r.CustomerID == "" || r.Code == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO referral_invites (
			id, customer_id, code, invitee_email, status, reward_points, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.CustomerID,
		r.Code,
		r.InviteeEmail,
		string(r.Status),
		r.RewardPoints,
		r.CreatedAt,
		r.UpdatedAt,
		r.CompletedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert referral invite: %w", err)
	}
	return nil
}

// GetByID retrieves an invite by id. Returns ErrNotFound if not exists.
func (s *ReferralStore) GetByID(ctx context.Context, id string) (*domain.ReferralInvite, error) {
	query := referralSelect + ` WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	r, err := scanReferral(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get referral invite by id: %w", err)
	}
	return r, nil
}

// GetByCode retrieves an invite by its short code. Returns ErrNotFound if
// not exists.
func (s *ReferralStore) GetByCode(ctx context.Context, code string) (*domain.ReferralInvite, error) {
	query := referralSelect + ` WHERE code = $1`

	row := s.pool.QueryRow(ctx, query, code)
	r, err := scanReferral(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get referral invite by code: %w", err)
	}
	return r, nil
}

// UpdateStatus transitions an invite, stamping updated_at and optionally
// completed_at.
func (s *ReferralStore) UpdateStatus(ctx context.Context, id string, status domain.ReferralStatus, updatedAt int64, completedAt *int64) error {
	if id == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE referral_invites
		SET status = $2, updated_at = $3, completed_at = COALESCE($4, completed_at)
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, string(status), updatedAt, completedAt)
	if err != nil {
		return fmt.Errorf("update referral status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByCustomer returns one page ordered by the ordering timestamp DESC
// then id DESC.
func (s *ReferralStore) ListByCustomer(ctx context.Context, q storage.ReferralQuery) ([]*domain.ReferralInvite, *string, error) {
	if q.CustomerID == "" || q.Limit <= 0 {
		return nil, nil, storage.ErrInvalidInput
	}

	query := referralSelect + ` WHERE customer_id = $1`
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
		query += fmt.Sprintf(" AND (COALESCE(completed_at, updated_at, created_at), id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, q.Limit+1)
	query += fmt.Sprintf(" ORDER BY COALESCE(completed_at, updated_at, created_at) DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list referral invites: %w", err)
	}
	defer rows.Close()

	invites, err := scanReferrals(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *string
	if len(invites) > q.Limit {
		invites = invites[:q.Limit]
		last := invites[len(invites)-1]
		token := storage.EncodeKeysetCursor(last.OrderingTimestamp(), last.ID)
		next = &token
	}
	return invites, next, nil
}

const referralSelect = `
	SELECT id, customer_id, code, invitee_email, status, reward_points, created_at, updated_at, completed_at
	FROM referral_invites
`

// scanReferral scans a single row into a ReferralInvite.
func scanReferral(row pgx.Row) (*domain.ReferralInvite, error) {
	var r domain.ReferralInvite
	var statusStr string

	err := row.Scan(
		&r.ID,
		&r.CustomerID,
		&r.Code,
		&r.InviteeEmail,
		&statusStr,
		&r.RewardPoints,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.ReferralStatus(statusStr)
	return &r, nil
}

// scanReferrals scans multiple rows into a slice of ReferralInvite.
func scanReferrals(rows pgx.Rows) ([]*domain.ReferralInvite, error) {
	var invites []*domain.ReferralInvite

	for rows.Next() {
		var r domain.ReferralInvite
		var statusStr string

		err := rows.Scan(
			&r.ID,
			&r.CustomerID,
			&r.Code,
			&r.InviteeEmail,
			&statusStr,
			&r.RewardPoints,
			&r.CreatedAt,
			&r.UpdatedAt,
			&r.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan referral row: %w", err)
		}

		r.Status = domain.ReferralStatus(statusStr)
		invites = append(invites, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referral rows: %w", err)
	}

	return invites, nil
}
