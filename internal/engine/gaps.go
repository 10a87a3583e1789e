package engine

import (
	"context"

	"github.com/glabrego/tideline/internal/timeline"
)

// LoadGap fills the gap with the given id. The gap is marked loading so the
// presentation layer can re-render without disturbing scroll position; on
// success the gap is replaced in place by the fetched statuses, and when the
// fetched page was full a narrower successor gap is inserted right after them
// so repeated taps shrink the remaining range monotonically. On failure the
// gap reverts to its retryable state and no global error is shown.
func (e *Engine) LoadGap(ctx context.Context, gapID string) error {
	tl := e.Timeline()

	gap, ok := e.store.GapByID(gapID)
	if !ok || gap.Loading {
		return nil
	}

	e.store.SetGapLoading(gapID, true)
	e.changed()

	statuses, err := e.pager.GapPage(ctx, tl, gap.SinceID, gap.MaxID)
	if err != nil {
		e.store.SetGapLoading(gapID, false)
		e.changed()
		e.log.Warn("gap load failed", "timeline", tl.Key(), "error", err)
		return err
	}

	idx := e.store.ReplaceGap(gapID, statuses)
	if idx >= 0 && len(statuses) >= e.cfg.FullPageThreshold {
		oldest := statuses[len(statuses)-1]
		e.store.InsertGapAt(idx+len(statuses), timeline.NewGap(gap.SinceID, oldest.ID))
	}

	e.setDisplay(e.nextPageState())
	e.persistEntries(ctx, tl)
	return nil
}

// LoadNextPage appends one page of older statuses to the tail. The next-page
// affordance disappears once a page comes back shorter than the threshold.
func (e *Engine) LoadNextPage(ctx context.Context) error {
	tl := e.Timeline()

	bottom := e.store.BottomStatus()
	if bottom == nil {
		return nil
	}

	statuses, err := e.pager.NextPage(ctx, tl, bottom.ID, e.store.Count())
	if err != nil {
		return e.absorb(err, "next page fetch failed")
	}

	e.store.Append(statuses)

	next := NoNextPage
	if len(statuses) >= e.cfg.NextPageThreshold {
		next = HasNextPage
	}
	e.setDisplay(next)
	e.persistEntries(ctx, tl)
	return nil
}
