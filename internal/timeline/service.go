package timeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"loyalty-service/internal/domain"
)

// Page size clamp applied to every request.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// FetchOptions parameterizes one timeline page request. Cursor takes
// precedence over CursorToken when both are set; a decoded bundle and an
// opaque token are equivalent inputs.
type FetchOptions struct {
	CustomerID  string
	Limit       int
	Filters     *Filters // nil means include everything
	Cursor      *CursorBundle
	CursorToken string
}

// Page is one merged timeline page together with everything needed to
// request the next one.
type Page struct {
	Entries        []domain.TimelineEntry `json:"entries"`
	Cursor         CursorBundle           `json:"cursor"`
	CursorToken    *string                `json:"cursor_token,omitempty"`
	HasMore        bool                   `json:"has_more"`
	AppliedFilters Filters                `json:"applied_filters"`
}

// Options configures a Service.
type Options struct {
	Sources Sources
	Logger  *log.Logger
}

// Service merges the three loyalty collections into a single paginated
// timeline. The fetchers are swappable at runtime; swapping never mutates
// the defaults captured at construction.
type Service struct {
	mu       sync.RWMutex
	sources  Sources
	defaults Sources
	logger   *log.Logger
}

// New creates a timeline service over the given sources.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[timeline] ", log.LstdFlags|log.Lshortfile)
	}
	return &Service{
		sources:  opts.Sources,
		defaults: opts.Sources,
		logger:   logger,
	}
}

// SetSources replaces the active fetchers, typically for tests or staged
// rollouts of a new upstream. Nil fields keep the current fetcher.
func (s *Service) SetSources(src Sources) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.Ledger != nil {
		s.sources.Ledger = src.Ledger
	}
	if src.Redemptions != nil {
		s.sources.Redemptions = src.Redemptions
	}
	if src.Referrals != nil {
		s.sources.Referrals = src.Referrals
	}
}

// ResetSources restores the fetchers the service was constructed with.
func (s *Service) ResetSources() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = s.defaults
}

func (s *Service) currentSources() Sources {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sources
}

// FetchTimeline returns one reverse-chronological page merged across the
// enabled sources. Upstream fetch errors propagate to the caller; a
// malformed cursor token does not (pagination restarts instead).
func (s *Service) FetchTimeline(ctx context.Context, opts FetchOptions) (*Page, error) {
	if opts.CustomerID == "" {
		return nil, fmt.Errorf("fetch timeline: customer id is required")
	}

	limit := clampLimit(opts.Limit)
	filters := resolveFilters(opts.Filters)

	cursor := opts.Cursor
	if cursor == nil && opts.CursorToken != "" {
		cursor = DecodeCursor(opts.CursorToken, s.logger)
	}

	states := s.buildStates(opts.CustomerID, filters, cursor)
	entries, err := mergeSources(ctx, states, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline for customer %s: %w", opts.CustomerID, err)
	}

	bundle := assembleBundle(states)
	return &Page{
		Entries:        entries,
		Cursor:         bundle,
		CursorToken:    EncodeCursor(&bundle),
		HasMore:        anyRemaining(states),
		AppliedFilters: filters,
	}, nil
}

// buildStates instantiates one sourceState per enabled source, in fixed
// examination order. Excluded sources get no state at all, so their cursor
// fields stay nil in the returned bundle. On a resumed call (bundle present)
// a nil per-source cursor means that source reported no further data on a
// previous page; it is skipped rather than re-fetched from the top, which
// would duplicate already-served entries.
func (s *Service) buildStates(customerID string, filters Filters, cursor *CursorBundle) []*sourceState {
	src := s.currentSources()
	resuming := cursor != nil

	var ledgerCursor, redemptionCursor, referralCursor *string
	if resuming {
		ledgerCursor = cursor.Ledger
		redemptionCursor = cursor.Redemptions
		referralCursor = cursor.Referrals
	}

	states := make([]*sourceState, 0, 3)
	if filters.IncludeLedger && src.Ledger != nil && (!resuming || ledgerCursor != nil) {
		states = append(states, newLedgerState(src.Ledger, customerID, filters.LedgerTypes, ledgerCursor))
	}
	if filters.IncludeRedemptions && src.Redemptions != nil && (!resuming || redemptionCursor != nil) {
		states = append(states, newRedemptionState(src.Redemptions, customerID, filters.RedemptionStatuses, redemptionCursor))
	}
	if filters.IncludeReferrals && src.Referrals != nil && (!resuming || referralCursor != nil) {
		states = append(states, newReferralState(src.Referrals, customerID, filters.ReferralStatuses, referralCursor))
	}
	return states
}

// clampLimit normalizes the requested page size: zero means the default,
// anything outside [1, MaxLimit] is pinned to the nearest bound.
func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
