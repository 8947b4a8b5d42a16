package timeline

import (
	"context"
	"sync"

	"loyalty-service/internal/domain"
)

// refillFunc fetches one upstream page for a source: items wrapped as
// timeline entries plus the cursor of the following page (nil when the
// collection is exhausted).
type refillFunc func(ctx context.Context, cursor *string, limit int) ([]domain.TimelineEntry, *string, error)

// sourceState tracks one collection's progress within a single FetchTimeline
// call. All state is local to the call; nothing survives it except through
// the returned cursor bundle.
type sourceState struct {
	kind     domain.TimelineEntryKind
	entries  []domain.TimelineEntry   // buffered items so far, newest first
	consumed int                      // read pointer into entries

	// nextCursor is the upstream cursor for the page after the last fetched
	// one. nil after a fetch means the source reported no further data.
	nextCursor *string

	// lastConsumedCursor records how far the merge has consumed within the
	// buffered pages, as base64("{timestamp}|{id}") of the last item taken.
	// It is internal resumption bookkeeping and never leaves this call; the
	// returned bundle carries upstream page cursors instead.
	lastConsumedCursor *string

	refill refillFunc
}

// buffered reports whether the source has an unconsumed buffered item.
func (s *sourceState) buffered() bool {
	return s.consumed < len(s.entries)
}

// peek returns the next unconsumed entry. Callers must check buffered first.
func (s *sourceState) peek() *domain.TimelineEntry {
	return &s.entries[s.consumed]
}

// doRefill fetches the next upstream page and appends it to the buffer.
func (s *sourceState) doRefill(ctx context.Context, limit int) error {
	items, next, err := s.refill(ctx, s.nextCursor, limit)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, items...)
	s.nextCursor = next
	return nil
}

// mergeSources runs the k-way streaming merge (k <= 3) over the enabled
// sources, newest first, until the page is full or every source is
// exhausted.
//
// The initial page fetches fan out concurrently; within the loop at most one
// source is refilled per iteration. Tie-break: a candidate replaces the
// incumbent only when its timestamp is strictly greater, so among equal
// timestamps the first-examined source wins, and states is always ordered
// ledger, redemptions, referrals.
func mergeSources(ctx context.Context, states []*sourceState, limit int) ([]domain.TimelineEntry, error) {
	// Initial refill for every enabled source, at the requested page size.
	var wg sync.WaitGroup
	errs := make([]error, len(states))
	for i, st := range states {
		wg.Add(1)
		go func(i int, st *sourceState) {
			defer wg.Done()
			errs[i] = st.doRefill(ctx, limit)
		}(i, st)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.TimelineEntry, 0, limit)
	for len(out) < limit {
		var best *domain.TimelineEntry
		var bestState *sourceState
		for _, st := range states {
			if !st.buffered() {
				continue
			}
			candidate := st.peek()
			if best == nil || candidate.OccurredAt > best.OccurredAt {
				best = candidate
				bestState = st
			}
		}

		if bestState != nil {
			bestState.consumed++
			token := encodeResumeToken(best.OccurredAt, best.ID)
			bestState.lastConsumedCursor = &token
			out = append(out, *best)
			continue
		}

		// Every buffer is drained. Refill one source that still has an
		// upstream page pending; if none does, the merge is complete.
		refilled := false
		for _, st := range states {
			if !st.buffered() && st.nextCursor != nil {
				if err := st.doRefill(ctx, limit); err != nil {
					return nil, err
				}
				refilled = true
				break
			}
		}
		if !refilled {
			break
		}
	}

	return out, nil
}

// assembleBundle packages each source's upstream nextCursor into the bundle
// returned with the page. Disabled sources stay nil. Note the returned
// cursor points at the next upstream page boundary: buffered items that were
// fetched but not consumed when the page filled are not representable and
// are re-served or skipped depending on upstream paging (pinned by tests).
func assembleBundle(states []*sourceState) CursorBundle {
	var bundle CursorBundle
	for _, st := range states {
		switch st.kind {
		case domain.TimelineKindLedger:
			bundle.Ledger = st.nextCursor
		case domain.TimelineKindRedemption:
			bundle.Redemptions = st.nextCursor
		case domain.TimelineKindReferral:
			bundle.Referrals = st.nextCursor
		}
	}
	return bundle
}

// anyRemaining reports whether any source still has unconsumed buffered
// items or a pending upstream page; true means the merge stopped because the
// page filled, not because data ran out.
func anyRemaining(states []*sourceState) bool {
	for _, st := range states {
		if st.buffered() || st.nextCursor != nil {
			return true
		}
	}
	return false
}
