package cache

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/glabrego/tideline/internal/mastodon"
	"github.com/glabrego/tideline/internal/timeline"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(filepath.Join(t.TempDir(), "tideline.db"))
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	return c
}

func statusEntry(id string) timeline.Entry {
	return timeline.StatusEntry(&mastodon.Status{ID: id, Account: mastodon.Account{ID: "acct"}})
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	gap := timeline.NewGap("100", "300")
	entries := []timeline.Entry{
		statusEntry("400"),
		statusEntry("300"),
		timeline.GapEntry(gap),
		statusEntry("100"),
	}

	if err := c.SetEntries(ctx, "acct@example.com", entries); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	got, err := c.Entries(ctx, "acct@example.com")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	if got[0].Status.ID != "400" || got[3].Status.ID != "100" {
		t.Fatalf("unexpected sequence: %+v", got)
	}
	if !got[2].IsGap() {
		t.Fatal("gap was not round-tripped")
	}
	if got[2].Gap.SinceID != "100" || got[2].Gap.MaxID != "300" || got[2].Gap.ID != gap.ID {
		t.Fatalf("unexpected gap: %+v", got[2].Gap)
	}
}

func TestCache_HiddenFlagRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	hidden := &mastodon.Status{ID: "200", Account: mastodon.Account{ID: "acct"}, Hidden: true}
	entries := []timeline.Entry{
		statusEntry("300"),
		timeline.StatusEntry(hidden),
	}

	if err := c.SetEntries(ctx, "acct", entries); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	got, err := c.Entries(ctx, "acct")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Status.Hidden {
		t.Fatal("visible status came back hidden")
	}
	if !got[1].Status.Hidden {
		t.Fatal("hidden status came back visible")
	}
}

func TestCache_MissingScopeIsColdStart(t *testing.T) {
	c := newTestCache(t)

	got, err := c.Entries(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestCache_CapsAtLimit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	entries := make([]timeline.Entry, 0, MaxCachedStatuses+50)
	for i := MaxCachedStatuses + 50; i > 0; i-- {
		entries = append(entries, statusEntry(strconv.Itoa(10000+i)))
	}

	if err := c.SetEntries(ctx, "acct", entries); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	got, err := c.Entries(ctx, "acct")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(got) != MaxCachedStatuses {
		t.Fatalf("expected %d cached statuses, got %d", MaxCachedStatuses, len(got))
	}
	if got[0].Status.ID != entries[0].Status.ID {
		t.Fatal("cap dropped the wrong end of the sequence")
	}
}

func TestCache_DropsLeadingGap(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	entries := []timeline.Entry{
		timeline.GapEntry(timeline.NewGap("", "500")),
		statusEntry("400"),
		statusEntry("300"),
	}

	if err := c.SetEntries(ctx, "acct", entries); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	got, err := c.Entries(ctx, "acct")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].IsGap() {
		t.Fatal("leading gap survived serialization")
	}
}

func TestCache_UnboundedBelowGapDecodes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	entries := []timeline.Entry{
		statusEntry("400"),
		timeline.GapEntry(timeline.NewGap("", "400")),
	}

	if err := c.SetEntries(ctx, "acct", entries); err != nil {
		t.Fatalf("SetEntries returned error: %v", err)
	}

	got, err := c.Entries(ctx, "acct")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(got) != 2 || !got[1].IsGap() {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[1].Gap.SinceID != "" {
		t.Fatalf("expected unbounded-below gap, got since %q", got[1].Gap.SinceID)
	}
}

func TestCache_OverwriteReplacesScope(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.SetEntries(ctx, "acct", []timeline.Entry{statusEntry("100")}); err != nil {
		t.Fatalf("first SetEntries returned error: %v", err)
	}
	if err := c.SetEntries(ctx, "acct", []timeline.Entry{statusEntry("300"), statusEntry("200")}); err != nil {
		t.Fatalf("second SetEntries returned error: %v", err)
	}

	got, err := c.Entries(ctx, "acct")
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if len(got) != 2 || got[0].Status.ID != "300" {
		t.Fatalf("unexpected entries after overwrite: %+v", got)
	}
}

func TestCache_LatestSeen(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if got, err := c.LatestSeen(ctx, "acct"); err != nil || len(got) != 0 {
		t.Fatalf("expected empty latest seen, got %v err=%v", got, err)
	}

	if err := c.SetLatestSeen(ctx, "acct", []string{"300", "200"}); err != nil {
		t.Fatalf("SetLatestSeen returned error: %v", err)
	}
	got, err := c.LatestSeen(ctx, "acct")
	if err != nil {
		t.Fatalf("LatestSeen returned error: %v", err)
	}
	if len(got) != 2 || got[0] != "300" {
		t.Fatalf("unexpected latest seen ids: %v", got)
	}
}

func TestCache_ClearAndClearAll(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	home := ScopeKey("acct", mastodon.HomeTimeline())
	tag := ScopeKey("acct", mastodon.HashtagTimeline("golang"))
	other := ScopeKey("other", mastodon.HomeTimeline())

	for _, scope := range []string{home, tag, other} {
		if err := c.SetEntries(ctx, scope, []timeline.Entry{statusEntry("100")}); err != nil {
			t.Fatalf("SetEntries(%s) returned error: %v", scope, err)
		}
	}

	if err := c.Clear(ctx, tag); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if got, _ := c.Entries(ctx, tag); len(got) != 0 {
		t.Fatal("cleared scope still has entries")
	}
	if got, _ := c.Entries(ctx, home); len(got) != 1 {
		t.Fatal("Clear removed an unrelated scope")
	}

	if err := c.ClearAll(ctx, "acct"); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}
	if got, _ := c.Entries(ctx, home); len(got) != 0 {
		t.Fatal("ClearAll left the home scope behind")
	}
	if got, _ := c.Entries(ctx, other); len(got) != 1 {
		t.Fatal("ClearAll removed another account's scope")
	}
}

func TestCache_ClearAllEscapesWildcards(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	// "user_a" must not match "userXa" through the LIKE underscore wildcard.
	victim := ScopeKey("userXa", mastodon.HashtagTimeline("go"))
	target := ScopeKey("user_a", mastodon.HashtagTimeline("go"))
	for _, scope := range []string{victim, target, "user_a"} {
		if err := c.SetEntries(ctx, scope, []timeline.Entry{statusEntry("100")}); err != nil {
			t.Fatalf("SetEntries(%s) returned error: %v", scope, err)
		}
	}

	if err := c.ClearAll(ctx, "user_a"); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}

	if got, _ := c.Entries(ctx, target); len(got) != 0 {
		t.Fatal("ClearAll left the account's own scope behind")
	}
	if got, _ := c.Entries(ctx, "user_a"); len(got) != 0 {
		t.Fatal("ClearAll left the root scope behind")
	}
	if got, _ := c.Entries(ctx, victim); len(got) != 1 {
		t.Fatal("ClearAll deleted another account's scope through a wildcard")
	}
}

func TestScopeKey(t *testing.T) {
	if got := ScopeKey("acct", mastodon.HomeTimeline()); got != "acct" {
		t.Fatalf("home should use the root scope, got %q", got)
	}
	if got := ScopeKey("acct", mastodon.ResumeTimeline()); got != "acct" {
		t.Fatalf("resume should use the root scope, got %q", got)
	}
	if got := ScopeKey("acct", mastodon.HashtagTimeline("Go", "golang")); got != "acct:hashtag:go+golang" {
		t.Fatalf("unexpected hashtag scope: %q", got)
	}
}
