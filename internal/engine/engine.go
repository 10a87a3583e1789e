// Package engine implements the timeline synchronization state machine. It
// reconciles the persistent cache, REST pages and the live event stream into
// the single ordered sequence owned by the entry store.
package engine

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/glabrego/tideline/internal/cache"
	"github.com/glabrego/tideline/internal/config"
	"github.com/glabrego/tideline/internal/mastodon"
	"github.com/glabrego/tideline/internal/timeline"
)

// State is the UI-visible phase of the engine.
type State int

const (
	StateLoading State = iota
	StateDisplay
	StateError
)

// NextPageState tells the presentation layer whether backward pagination can
// continue.
type NextPageState int

const (
	NoNextPage NextPageState = iota
	HasNextPage
)

// Snapshot is a read-only view of the engine state. Entries are filtered
// through the injected content filter at read time; the stored sequence is
// never mutated by filtering.
type Snapshot struct {
	State    State
	Entries  []timeline.Entry
	NextPage NextPageState
	Err      error
	// ScrollTo is the id of the last-seen status after a cache restore, or
	// "" when the presentation layer should not adjust its position.
	ScrollTo string
}

// Pager is the stateless paging contract the engine fetches through.
type Pager interface {
	FirstPage(ctx context.Context, tl mastodon.Timeline) ([]*mastodon.Status, error)
	CatchUpPages(ctx context.Context, tl mastodon.Timeline, minID string, maxPages int) ([]*mastodon.Status, error)
	NextPage(ctx context.Context, tl mastodon.Timeline, maxID string, offset int) ([]*mastodon.Status, error)
	GapPage(ctx context.Context, tl mastodon.Timeline, sinceID, maxID string) ([]*mastodon.Status, error)
}

// EntryCache is the persistent cache contract. All calls are best-effort at
// the engine boundary: read failures mean cold start, write failures are
// dropped.
type EntryCache interface {
	SetEntries(ctx context.Context, scope string, entries []timeline.Entry) error
	Entries(ctx context.Context, scope string) ([]timeline.Entry, error)
	SetLatestSeen(ctx context.Context, scope string, ids []string) error
	LatestSeen(ctx context.Context, scope string) ([]string, error)
	Clear(ctx context.Context, scope string) error
}

// MarkerClient persists and recalls the home read marker on the server.
type MarkerClient interface {
	Marker(ctx context.Context) (string, error)
	SaveMarker(ctx context.Context, lastReadID string) error
}

// Streamer opens the live event stream for a timeline.
type Streamer interface {
	Stream(ctx context.Context, tl mastodon.Timeline) (<-chan mastodon.Event, error)
}

// Preferences exposes the externally-owned content filter to the read path.
type Preferences interface {
	ContentFilter() timeline.ContentFilter
}

// FilterFunc adapts a function to the Preferences interface.
type FilterFunc func() timeline.ContentFilter

func (f FilterFunc) ContentFilter() timeline.ContentFilter { return f() }

// Options wires the engine's collaborators. Pager is required; Cache,
// Markers, Streams and Prefs may be nil, which disables caching, read
// markers, live events and content filtering respectively.
type Options struct {
	Pager      Pager
	Cache      EntryCache
	Markers    MarkerClient
	Streams    Streamer
	Prefs      Preferences
	Config     config.Engine
	Logger     *log.Logger
	AccountKey string
	// OnChange, when set, is invoked after every state transition. Called
	// without internal locks held.
	OnChange func()
}

// Engine is the sync orchestrator. All state transitions are serialized
// behind a mutex; the entry store additionally serializes its own mutations,
// so network completions, stream events and user-triggered pagination may
// call in concurrently.
type Engine struct {
	store   *timeline.Store
	pager   Pager
	cache   EntryCache
	markers MarkerClient
	streams Streamer
	prefs   Preferences
	cfg     config.Engine
	log     *log.Logger
	account string
	notify  func()

	mu           sync.Mutex
	current      mastodon.Timeline
	state        State
	stateErr     error
	nextPage     NextPageState
	scrollTo     string
	pending      []string // unseen status ids, newest first
	lastSeen     []string // recently seen status ids, newest first
	streamPaused bool
	syncCancel   context.CancelFunc
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cfg := opts.Config
	if cfg.Validate() != nil {
		cfg = config.Defaults()
	}
	return &Engine{
		store:   timeline.NewStore(),
		pager:   opts.Pager,
		cache:   opts.Cache,
		markers: opts.Markers,
		streams: opts.Streams,
		prefs:   opts.Prefs,
		cfg:     cfg,
		log:     logger,
		account: opts.AccountKey,
		notify:  opts.OnChange,
		state:   StateLoading,
	}
}

// Timeline returns the currently selected timeline.
func (e *Engine) Timeline() mastodon.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Snapshot returns the current renderable view. The content filter is applied
// lazily here; gaps always pass through.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	state := e.state
	err := e.stateErr
	next := e.nextPage
	scrollTo := e.scrollTo
	e.mu.Unlock()

	filter := timeline.ShowAll()
	if e.prefs != nil {
		filter = e.prefs.ContentFilter()
	}
	return Snapshot{
		State:    state,
		Entries:  e.store.FilteredEntries(filter),
		NextPage: next,
		Err:      err,
		ScrollTo: scrollTo,
	}
}

// PendingCount returns the number of known-but-unseen statuses.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// SetTimeline switches the active timeline. Any in-flight sync task is
// cancelled; when leaving the home context the read marker is persisted; a
// genuine change resets the entry store and pending-unread tracking. The
// initial load then runs on the calling goroutine with a cancellable child
// context, so callers typically invoke this from their own task.
func (e *Engine) SetTimeline(ctx context.Context, tl mastodon.Timeline) error {
	e.mu.Lock()
	if e.syncCancel != nil {
		e.syncCancel()
		e.syncCancel = nil
	}
	previous := e.current
	changed := previous.Key() != tl.Key()
	leavingHome := previous.Kind == mastodon.TimelineHome && tl.Kind != mastodon.TimelineHome
	lastRead := ""
	if len(e.lastSeen) > 0 {
		lastRead = e.lastSeen[0]
	}

	e.current = tl
	e.state = StateLoading
	e.stateErr = nil
	e.scrollTo = ""
	if changed {
		e.pending = nil
	}

	syncCtx, cancel := context.WithCancel(ctx)
	e.syncCancel = cancel
	e.mu.Unlock()

	if leavingHome && lastRead != "" {
		e.saveReadMarker(ctx, lastRead)
	}
	if changed {
		e.store.Reset()
	}
	e.changed()

	return e.initialLoad(syncCtx)
}

// initialLoad restores from cache when the timeline supports forward
// pagination, then reconciles with the network; otherwise it fetches the
// first page directly.
func (e *Engine) initialLoad(ctx context.Context) error {
	tl := e.Timeline()

	if tl.Kind == mastodon.TimelineResume {
		return e.resumeFromMarker(ctx)
	}

	if tl.SupportsForwardPagination() && e.cache != nil {
		entries, err := e.cache.Entries(ctx, e.scope(tl))
		if err != nil {
			e.log.Debug("cache read failed, cold starting", "scope", e.scope(tl), "error", err)
		}
		if err == nil && len(entries) > 0 {
			e.store.SetEntries(entries)
			e.restoreScrollPosition(ctx, tl)
			e.setDisplay(HasNextPage)
			return e.CatchUp(ctx)
		}
	}

	return e.loadFirstPage(ctx, tl)
}

func (e *Engine) loadFirstPage(ctx context.Context, tl mastodon.Timeline) error {
	wasEmpty := e.store.IsEmpty()

	statuses, err := e.pager.FirstPage(ctx, tl)
	if err != nil {
		return e.absorb(err, "first page fetch failed")
	}

	e.store.SetStatuses(statuses)
	if !wasEmpty && len(statuses) >= e.cfg.FullPageThreshold {
		// Only reachable when the store held entries going into this call.
		// The normal cold-start path never satisfies that; the guard is kept
		// as-is pending product clarification.
		oldest := statuses[len(statuses)-1]
		e.store.InsertGapAt(len(statuses), timeline.NewGap("", oldest.ID))
	}

	next := NoNextPage
	if len(statuses) >= e.cfg.NextPageThreshold {
		next = HasNextPage
	}
	e.setDisplay(next)
	e.persistEntries(ctx, tl)
	return nil
}

// resumeFromMarker fetches the persisted home read marker, issues a bounded
// fetch anchored at it, and reverts to the regular home timeline.
func (e *Engine) resumeFromMarker(ctx context.Context) error {
	home := mastodon.HomeTimeline()
	e.mu.Lock()
	e.current = home
	e.mu.Unlock()

	markerID := ""
	if e.markers != nil {
		id, err := e.markers.Marker(ctx)
		if err != nil {
			e.log.Debug("marker fetch failed", "error", err)
		} else {
			markerID = id
		}
	}
	if markerID == "" {
		return e.initialLoad(ctx)
	}

	statuses, err := e.pager.GapPage(ctx, home, markerID, "")
	if err != nil {
		return e.absorb(err, "resume fetch failed")
	}
	e.store.SetStatuses(statuses)
	if len(statuses) >= e.cfg.FullPageThreshold {
		oldest := statuses[len(statuses)-1]
		e.store.InsertGapAt(len(statuses), timeline.NewGap(markerID, oldest.ID))
	}
	e.mu.Lock()
	e.scrollTo = markerID
	e.mu.Unlock()
	e.setDisplay(HasNextPage)
	e.persistEntries(ctx, home)
	return nil
}

func (e *Engine) restoreScrollPosition(ctx context.Context, tl mastodon.Timeline) {
	if e.cache == nil {
		return
	}
	seen, err := e.cache.LatestSeen(ctx, e.scope(tl))
	if err != nil {
		return
	}
	for _, id := range seen {
		if e.store.Contains(id) {
			e.mu.Lock()
			e.scrollTo = id
			e.lastSeen = seen
			e.mu.Unlock()
			return
		}
	}
}

// absorb applies the error-propagation policy: a failure only surfaces as
// the Error state when the store is empty, otherwise existing content wins
// and the failure is swallowed.
func (e *Engine) absorb(err error, msg string) error {
	if e.store.IsEmpty() {
		e.mu.Lock()
		e.state = StateError
		e.stateErr = err
		e.mu.Unlock()
		e.changed()
		return err
	}
	e.log.Warn(msg, "error", err)
	e.setDisplay(e.nextPageState())
	return nil
}

func (e *Engine) setDisplay(next NextPageState) {
	e.mu.Lock()
	e.state = StateDisplay
	e.stateErr = nil
	e.nextPage = next
	e.mu.Unlock()
	e.changed()
}

func (e *Engine) nextPageState() NextPageState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextPage
}

func (e *Engine) scope(tl mastodon.Timeline) string {
	return cache.ScopeKey(e.account, tl)
}

func (e *Engine) persistEntries(ctx context.Context, tl mastodon.Timeline) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetEntries(ctx, e.scope(tl), e.store.Entries()); err != nil {
		e.log.Debug("cache write dropped", "scope", e.scope(tl), "error", err)
	}
}

func (e *Engine) saveReadMarker(ctx context.Context, id string) {
	if e.markers == nil || id == "" {
		return
	}
	if err := e.markers.SaveMarker(ctx, id); err != nil {
		e.log.Debug("read marker save dropped", "error", err)
	}
}

func (e *Engine) changed() {
	if e.notify != nil {
		e.notify()
	}
}
