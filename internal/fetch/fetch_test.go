package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/glabrego/tideline/internal/mastodon"
)

type fakeClient struct {
	calls []mastodon.Cursor
	pages [][]*mastodon.Status
	err   error
}

// Timeline serves queued pages in order. Once the queue is drained, err is
// returned when set, otherwise an empty page.
func (f *fakeClient) Timeline(_ context.Context, _ mastodon.Timeline, cursor mastodon.Cursor) ([]*mastodon.Status, error) {
	f.calls = append(f.calls, cursor)
	if len(f.pages) == 0 {
		return nil, f.err
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func page(ids ...string) []*mastodon.Status {
	out := make([]*mastodon.Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, &mastodon.Status{ID: id})
	}
	return out
}

func TestPager_NilClient(t *testing.T) {
	p := NewPager(nil, nil)
	ctx := context.Background()
	tl := mastodon.HomeTimeline()

	if _, err := p.FirstPage(ctx, tl); !errors.Is(err, ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
	if _, err := p.CatchUpPages(ctx, tl, "1", 5); !errors.Is(err, ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
	if _, err := p.NextPage(ctx, tl, "1", 0); !errors.Is(err, ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
	if _, err := p.GapPage(ctx, tl, "1", "2"); !errors.Is(err, ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
}

func TestPager_FirstPage(t *testing.T) {
	fc := &fakeClient{pages: [][]*mastodon.Status{page("300", "200")}}
	p := NewPager(fc, nil)

	statuses, err := p.FirstPage(context.Background(), mastodon.HomeTimeline())
	if err != nil {
		t.Fatalf("FirstPage returned error: %v", err)
	}
	if len(statuses) != 2 || statuses[0].ID != "300" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if got := fc.calls[0].Limit; got != FirstPageSize {
		t.Fatalf("expected limit %d, got %d", FirstPageSize, got)
	}
	if fc.calls[0].SinceID != "" || fc.calls[0].MaxID != "" || fc.calls[0].MinID != "" {
		t.Fatalf("first page should be cursor-less: %+v", fc.calls[0])
	}
}

func TestPager_CatchUpPages_AdvancesCursor(t *testing.T) {
	fc := &fakeClient{pages: [][]*mastodon.Status{
		page("1040", "1001"),
		page("1080", "1041"),
		nil,
	}}
	p := NewPager(fc, nil)

	statuses, err := p.CatchUpPages(context.Background(), mastodon.HomeTimeline(), "1000", 20)
	if err != nil {
		t.Fatalf("CatchUpPages returned error: %v", err)
	}

	want := []string{"1080", "1041", "1040", "1001"}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d statuses, got %d", len(want), len(statuses))
	}
	for i, id := range want {
		if statuses[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, statuses[i].ID)
		}
	}

	// The empty third page stops the loop.
	if len(fc.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(fc.calls))
	}
	if fc.calls[0].MinID != "1000" || fc.calls[1].MinID != "1040" || fc.calls[2].MinID != "1080" {
		t.Fatalf("unexpected cursor progression: %+v", fc.calls)
	}
}

func TestPager_CatchUpPages_StopsAtMaxPages(t *testing.T) {
	fc := &fakeClient{pages: [][]*mastodon.Status{
		page("1040"),
		page("1080"),
		page("1120"),
	}}
	p := NewPager(fc, nil)

	statuses, err := p.CatchUpPages(context.Background(), mastodon.HomeTimeline(), "1000", 2)
	if err != nil {
		t.Fatalf("CatchUpPages returned error: %v", err)
	}
	if len(fc.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fc.calls))
	}
	if len(statuses) != 2 || statuses[0].ID != "1080" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}

func TestPager_CatchUpPages_ReturnsPartialOnError(t *testing.T) {
	fc := &fakeClient{
		pages: [][]*mastodon.Status{page("1040", "1001")},
		err:   errors.New("boom"),
	}
	p := NewPager(fc, nil)

	statuses, err := p.CatchUpPages(context.Background(), mastodon.HomeTimeline(), "1000", 20)
	if err == nil {
		t.Fatal("expected error from the second page")
	}
	if len(statuses) != 2 || statuses[0].ID != "1040" {
		t.Fatalf("expected the first page to survive the failure, got %+v", statuses)
	}
}

func TestPager_NextPage(t *testing.T) {
	fc := &fakeClient{pages: [][]*mastodon.Status{page("900", "860")}}
	p := NewPager(fc, nil)

	statuses, err := p.NextPage(context.Background(), mastodon.HomeTimeline(), "950", 120)
	if err != nil {
		t.Fatalf("NextPage returned error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	c := fc.calls[0]
	if c.MaxID != "950" || c.Offset != 120 || c.Limit != PageSize {
		t.Fatalf("unexpected cursor: %+v", c)
	}
}

func TestPager_GapPage(t *testing.T) {
	fc := &fakeClient{pages: [][]*mastodon.Status{page("540", "510")}}
	p := NewPager(fc, nil)

	statuses, err := p.GapPage(context.Background(), mastodon.HomeTimeline(), "500", "550")
	if err != nil {
		t.Fatalf("GapPage returned error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	c := fc.calls[0]
	if c.SinceID != "500" || c.MaxID != "550" || c.Limit != GapPageSize {
		t.Fatalf("unexpected cursor: %+v", c)
	}
}
