package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/glabrego/tideline/internal/mastodon"
)

// ErrNoClient is returned when the pager has no authenticated client. Fatal
// to the call, never to the process.
var ErrNoClient = errors.New("no client available")

const (
	// FirstPageSize is the page size for cursor-less cold-start fetches.
	FirstPageSize = 50
	// PageSize is the page size for catch-up and backward pagination.
	PageSize = 40
	// GapPageSize is the page size when filling a specific gap.
	GapPageSize = 50
)

// catchUpRate paces the catch-up page loop so a long reconcile does not
// hammer the server.
var catchUpRate = rate.Limit(5)

// TimelineClient is the narrow fetch contract against the remote API.
type TimelineClient interface {
	Timeline(ctx context.Context, tl mastodon.Timeline, cursor mastodon.Cursor) ([]*mastodon.Status, error)
}

// Pager issues stateless paging calls against the remote API. A nil client is
// allowed at construction; every call then fails with ErrNoClient.
type Pager struct {
	client  TimelineClient
	limiter *rate.Limiter
	log     *log.Logger
}

func NewPager(client TimelineClient, logger *log.Logger) *Pager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pager{
		client:  client,
		limiter: rate.NewLimiter(catchUpRate, 1),
		log:     logger,
	}
}

// FirstPage fetches the newest page with no cursor.
func (p *Pager) FirstPage(ctx context.Context, tl mastodon.Timeline) ([]*mastodon.Status, error) {
	if p.client == nil {
		return nil, ErrNoClient
	}
	statuses, err := p.client.Timeline(ctx, tl, mastodon.Cursor{Limit: FirstPageSize})
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	return statuses, nil
}

// CatchUpPages repeatedly fetches pages strictly newer than minID, advancing
// the cursor to the newest id seen each iteration. The loop stops on an empty
// page, on context cancellation, or once maxPages is reached, so cancellation
// latency is bounded by one page fetch. Pages are prepended in fetch order;
// the result is newest-first overall.
func (p *Pager) CatchUpPages(ctx context.Context, tl mastodon.Timeline, minID string, maxPages int) ([]*mastodon.Status, error) {
	if p.client == nil {
		return nil, ErrNoClient
	}

	var all []*mastodon.Status
	cursor := minID
	for page := 0; page < maxPages; page++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return all, err
		}

		statuses, err := p.client.Timeline(ctx, tl, mastodon.Cursor{MinID: cursor, Limit: PageSize})
		if err != nil {
			return all, fmt.Errorf("fetch catch-up page %d: %w", page+1, err)
		}
		if len(statuses) == 0 {
			break
		}

		all = append(append([]*mastodon.Status(nil), statuses...), all...)
		cursor = statuses[0].ID

		p.log.Debug("caught up one page", "timeline", tl.Key(), "page", page+1, "count", len(statuses))
	}
	return all, nil
}

// NextPage fetches a single page strictly older than maxID.
func (p *Pager) NextPage(ctx context.Context, tl mastodon.Timeline, maxID string, offset int) ([]*mastodon.Status, error) {
	if p.client == nil {
		return nil, ErrNoClient
	}
	statuses, err := p.client.Timeline(ctx, tl, mastodon.Cursor{MaxID: maxID, Offset: offset, Limit: PageSize})
	if err != nil {
		return nil, fmt.Errorf("fetch next page: %w", err)
	}
	return statuses, nil
}

// GapPage fetches the bounded range of a gap, up to GapPageSize statuses.
func (p *Pager) GapPage(ctx context.Context, tl mastodon.Timeline, sinceID, maxID string) ([]*mastodon.Status, error) {
	if p.client == nil {
		return nil, ErrNoClient
	}
	statuses, err := p.client.Timeline(ctx, tl, mastodon.Cursor{SinceID: sinceID, MaxID: maxID, Limit: GapPageSize})
	if err != nil {
		return nil, fmt.Errorf("fetch gap page: %w", err)
	}
	return statuses, nil
}
