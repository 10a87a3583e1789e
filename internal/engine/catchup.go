package engine

import (
	"context"
	"sort"

	"github.com/glabrego/tideline/internal/mastodon"
	"github.com/glabrego/tideline/internal/timeline"
)

// CatchUp reconciles the local top of the timeline with the server's newest
// statuses. Triggered by pull-to-refresh, foreground resume, the periodic
// ticker, or a cache restore. Live stream ingestion is suspended for the
// duration so a status cannot arrive twice, and resumed unconditionally.
func (e *Engine) CatchUp(ctx context.Context) error {
	tl := e.Timeline()

	e.setStreamPaused(true)
	defer e.setStreamPaused(false)

	statuses, err := e.pager.FirstPage(ctx, tl)
	if err != nil {
		return e.absorb(err, "catch-up fetch failed")
	}

	// Re-derive the top id from the store right before merging; a stream
	// event or another task may have moved it since this call started.
	topID := e.store.TopID()
	fresh := make([]*mastodon.Status, 0, len(statuses))
	for _, st := range statuses {
		if e.store.Contains(st.ID) {
			continue
		}
		if topID != "" && !mastodon.IDNewer(st.ID, topID) {
			continue
		}
		fresh = append(fresh, st)
	}
	if len(fresh) == 0 {
		e.setDisplay(e.nextPageState())
		return nil
	}

	extended := e.cfg.ExtendedCatchUp && tl.SupportsForwardPagination()
	merged := fresh
	if extended && topID != "" {
		more, err := e.pager.CatchUpPages(ctx, tl, topID, e.cfg.CatchUpMaxPages)
		if err != nil {
			// Partial pages are still merged; the remainder is picked up by
			// the next catch-up.
			e.log.Warn("extended catch-up stopped early", "timeline", tl.Key(), "error", err)
		}
		merged = mergeNewest(fresh, more, e.cfg.CatchUpBudget)
	}

	e.store.Prepend(merged)

	if !extended && topID != "" && len(fresh) >= e.cfg.FullPageThreshold && len(statuses) >= e.cfg.FullPageThreshold {
		// A full window on top of a full page means the range between the
		// new block and the previous top may be incomplete.
		oldest := merged[len(merged)-1]
		e.store.InsertGapAt(len(merged), timeline.NewGap(topID, oldest.ID))
	}

	e.recordPending(merged)
	e.trimBelowSeen()
	e.setDisplay(HasNextPage)
	e.persistEntries(ctx, tl)
	return nil
}

// mergeNewest deduplicates the two fetched blocks by id, orders them newest
// first and truncates to the budget.
func mergeNewest(a, b []*mastodon.Status, budget int) []*mastodon.Status {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]*mastodon.Status, 0, len(a)+len(b))
	for _, st := range append(append([]*mastodon.Status(nil), a...), b...) {
		if _, dup := seen[st.ID]; dup {
			continue
		}
		seen[st.ID] = struct{}{}
		merged = append(merged, st)
	}
	sort.Slice(merged, func(i, j int) bool {
		return mastodon.IDNewer(merged[i].ID, merged[j].ID)
	})
	if len(merged) > budget {
		merged = merged[:budget]
	}
	return merged
}

func (e *Engine) recordPending(statuses []*mastodon.Status) {
	if len(statuses) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	known := make(map[string]struct{}, len(e.pending))
	for _, id := range e.pending {
		known[id] = struct{}{}
	}
	fresh := make([]string, 0, len(statuses))
	for _, st := range statuses {
		if _, dup := known[st.ID]; !dup {
			fresh = append(fresh, st.ID)
		}
	}
	e.pending = append(fresh, e.pending...)
}

// trimBelowSeen bounds memory after a prepend burst: everything more than
// TrimSafeOffset entries past the last on-screen status is dropped.
func (e *Engine) trimBelowSeen() {
	e.mu.Lock()
	lastSeen := ""
	if len(e.lastSeen) > 0 {
		lastSeen = e.lastSeen[0]
	}
	e.mu.Unlock()
	if lastSeen == "" {
		return
	}
	e.store.TrimAfter(lastSeen, e.cfg.TrimSafeOffset)
}

func (e *Engine) setStreamPaused(paused bool) {
	e.mu.Lock()
	e.streamPaused = paused
	e.mu.Unlock()
}
