package engine

import (
	"context"

	"github.com/glabrego/tideline/internal/mastodon"
)

// maxLastSeen caps the persisted most-recently-seen id list.
const maxLastSeen = 10

// HandleEvent applies one live stream event. Events are ignored while a
// catch-up merge is in flight, when streaming is disabled, or when the active
// timeline has no stream.
//
// The gate check and the store mutation happen under one critical section:
// setStreamPaused also takes the lock, so once a catch-up observes the pause
// every event admitted before it has fully applied and every later event is
// dropped at the gate.
func (e *Engine) HandleEvent(ctx context.Context, ev mastodon.Event) {
	e.mu.Lock()
	tl := e.current
	if e.streamPaused || !e.cfg.Streaming || tl.StreamName() == "" {
		e.mu.Unlock()
		return
	}

	applied := false
	switch ev.Type {
	case mastodon.EventUpdate:
		if ev.Status == nil {
			break
		}
		// Admit only unknown statuses strictly newer than the current top;
		// anything else belongs to catch-up or gap loading.
		topID := e.store.TopID()
		if e.store.Contains(ev.Status.ID) {
			break
		}
		if topID != "" && !mastodon.IDNewer(ev.Status.ID, topID) {
			break
		}
		e.store.Prepend([]*mastodon.Status{ev.Status})
		e.pending = append([]string{ev.Status.ID}, e.pending...)
		applied = true

	case mastodon.EventDelete:
		if removed := e.store.Remove(ev.StatusID); removed != nil {
			e.dropPendingLocked(ev.StatusID)
			applied = true
		}

	case mastodon.EventStatusUpdate:
		if ev.Status == nil {
			break
		}
		// Edits replace in place at the existing index only, never reorder.
		if idx := e.store.IndexOf(ev.Status.ID); idx >= 0 {
			e.store.ReplaceAt(idx, ev.Status)
			applied = true
		}
	}
	e.mu.Unlock()

	if applied {
		e.changed()
		e.persistEntries(ctx, tl)
	}
}

// StatusSeen records that the status with the given id became visible in the
// viewport. Every pending id from that status's position to the end of the
// pending list is dropped at once; consumption is assumed to run top to
// bottom. Ids cleared once stay cleared under upward re-scroll.
func (e *Engine) StatusSeen(ctx context.Context, id string) {
	e.mu.Lock()
	e.lastSeen = prependCapped(e.lastSeen, id, maxLastSeen)
	for i, pendingID := range e.pending {
		if pendingID == id {
			e.pending = append([]string(nil), e.pending[:i]...)
			break
		}
	}
	tl := e.current
	seen := append([]string(nil), e.lastSeen...)
	e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.SetLatestSeen(ctx, e.scope(tl), seen); err != nil {
			e.log.Debug("latest seen write dropped", "error", err)
		}
	}
}

// ViewHidden persists the read position when the view loses visibility. Both
// writes are best-effort.
func (e *Engine) ViewHidden(ctx context.Context) {
	e.mu.Lock()
	tl := e.current
	lastRead := ""
	if len(e.lastSeen) > 0 {
		lastRead = e.lastSeen[0]
	}
	e.mu.Unlock()

	if tl.Kind == mastodon.TimelineHome {
		e.saveReadMarker(ctx, lastRead)
	}
	e.persistEntries(ctx, tl)
}

func (e *Engine) dropPendingLocked(id string) {
	for i, pendingID := range e.pending {
		if pendingID == id {
			e.pending = append(e.pending[:i:i], e.pending[i+1:]...)
			return
		}
	}
}

func prependCapped(ids []string, id string, limit int) []string {
	out := make([]string, 0, limit)
	out = append(out, id)
	for _, existing := range ids {
		if existing == id {
			continue
		}
		out = append(out, existing)
		if len(out) == limit {
			break
		}
	}
	return out
}
