package upstream

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"loyalty-service/internal/domain"
	"loyalty-service/internal/timeline"
)

// The loyalty API serves each collection as a cursor-paginated GET endpoint.
// One adapter per collection maps a timeline page request to one GET; the
// API's next_cursor passes through untouched.

// NewSources bundles API-backed fetchers for the merge engine.
func NewSources(client *Client) timeline.Sources {
	return timeline.Sources{
		Ledger:      &LedgerSource{client: client},
		Redemptions: &RedemptionSource{client: client},
		Referrals:   &ReferralSource{client: client},
	}
}

// LedgerSource fetches ledger pages from the loyalty API.
type LedgerSource struct {
	client *Client
}

// RedemptionSource fetches redemption pages from the loyalty API.
type RedemptionSource struct {
	client *Client
}

// ReferralSource fetches referral invite pages from the loyalty API.
type ReferralSource struct {
	client *Client
}

// Compile-time interface checks.
var (
	_ timeline.LedgerSource     = (*LedgerSource)(nil)
	_ timeline.RedemptionSource = (*RedemptionSource)(nil)
	_ timeline.ReferralSource   = (*ReferralSource)(nil)
)

type ledgerPage struct {
	Entries    []*domain.LedgerEntry `json:"entries"`
	NextCursor *string               `json:"next_cursor"`
}

type redemptionPage struct {
	Redemptions []*domain.Redemption `json:"redemptions"`
	NextCursor  *string              `json:"next_cursor"`
}

type referralPage struct {
	Invites    []*domain.ReferralInvite `json:"invites"`
	NextCursor *string                  `json:"next_cursor"`
}

// Fetch returns one page of ledger entries for the customer.
func (s *LedgerSource) Fetch(ctx context.Context, req timeline.LedgerRequest) ([]*domain.LedgerEntry, *string, error) {
	query := pageQuery(req.Cursor, req.Limit)
	if len(req.Types) > 0 {
		types := make([]string, 0, len(req.Types))
		for _, t := range req.Types {
			types = append(types, string(t))
		}
		query.Set("types", strings.Join(types, ","))
	}

	var page ledgerPage
	path := "/v1/customers/" + url.PathEscape(req.CustomerID) + "/loyalty/ledger"
	if err := s.client.get(ctx, "ledger", path, query, &page); err != nil {
		return nil, nil, err
	}
	return page.Entries, page.NextCursor, nil
}

// Fetch returns one page of redemptions for the customer.
func (s *RedemptionSource) Fetch(ctx context.Context, req timeline.RedemptionRequest) ([]*domain.Redemption, *string, error) {
	query := pageQuery(req.Cursor, req.Limit)
	if len(req.Statuses) > 0 {
		statuses := make([]string, 0, len(req.Statuses))
		for _, st := range req.Statuses {
			statuses = append(statuses, string(st))
		}
		query.Set("statuses", strings.Join(statuses, ","))
	}

	var page redemptionPage
	path := "/v1/customers/" + url.PathEscape(req.CustomerID) + "/loyalty/redemptions"
	if err := s.client.get(ctx, "redemptions", path, query, &page); err != nil {
		return nil, nil, err
	}
	return page.Redemptions, page.NextCursor, nil
}

// Fetch returns one page of referral invites for the customer.
func (s *ReferralSource) Fetch(ctx context.Context, req timeline.ReferralRequest) ([]*domain.ReferralInvite, *string, error) {
	query := pageQuery(req.Cursor, req.Limit)
	if len(req.Statuses) > 0 {
		statuses := make([]string, 0, len(req.Statuses))
		for _, st := range req.Statuses {
			statuses = append(statuses, string(st))
		}
		query.Set("statuses", strings.Join(statuses, ","))
	}

	var page referralPage
	path := "/v1/customers/" + url.PathEscape(req.CustomerID) + "/loyalty/referrals"
	if err := s.client.get(ctx, "referrals", path, query, &page); err != nil {
		return nil, nil, err
	}
	return page.Invites, page.NextCursor, nil
}

func pageQuery(cursor *string, limit int) url.Values {
	query := url.Values{}
	if cursor != nil {
		query.Set("cursor", *cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return query
}
