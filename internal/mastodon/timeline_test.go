package mastodon

import "testing"

func TestTimeline_KeyCanonicalizesHashtags(t *testing.T) {
	a := HashtagTimeline("Go", "GoLang", "gophers")
	b := HashtagTimeline("gophers", "golang", "go")

	if a.Key() != b.Key() {
		t.Fatalf("reordered tag lists should share a key: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() != "hashtag:go+golang+gophers" {
		t.Fatalf("unexpected key: %q", a.Key())
	}
}

func TestTimeline_Keys(t *testing.T) {
	cases := []struct {
		tl   Timeline
		want string
	}{
		{HomeTimeline(), "home"},
		{LocalTimeline(), "local"},
		{FederatedTimeline(), "federated"},
		{ResumeTimeline(), "resume"},
		{ListTimeline("42"), "list:42"},
	}
	for _, tc := range cases {
		if got := tc.tl.Key(); got != tc.want {
			t.Fatalf("expected key %q, got %q", tc.want, got)
		}
	}
}

func TestTimeline_Endpoint(t *testing.T) {
	path, q := HomeTimeline().Endpoint(Cursor{SinceID: "10", MaxID: "90", Limit: 40})
	if path != "/api/v1/timelines/home" {
		t.Fatalf("unexpected path: %s", path)
	}
	if q.Get("since_id") != "10" || q.Get("max_id") != "90" || q.Get("limit") != "40" {
		t.Fatalf("unexpected query: %v", q)
	}
	if q.Get("min_id") != "" || q.Get("offset") != "" {
		t.Fatalf("empty cursor fields should not be sent: %v", q)
	}

	path, q = LocalTimeline().Endpoint(Cursor{Limit: 50})
	if path != "/api/v1/timelines/public" || q.Get("local") != "true" {
		t.Fatalf("unexpected local endpoint: %s %v", path, q)
	}

	path, q = HashtagTimeline("Go", "Gophers").Endpoint(Cursor{MinID: "5", Limit: 40})
	if path != "/api/v1/timelines/tag/go" {
		t.Fatalf("unexpected hashtag path: %s", path)
	}
	if got := q["any[]"]; len(got) != 1 || got[0] != "gophers" {
		t.Fatalf("unexpected any[] tags: %v", got)
	}
	if q.Get("min_id") != "5" {
		t.Fatalf("unexpected query: %v", q)
	}

	path, _ = ListTimeline("42").Endpoint(Cursor{})
	if path != "/api/v1/timelines/list/42" {
		t.Fatalf("unexpected list path: %s", path)
	}

	// The resume pseudo-timeline reads the home feed.
	path, _ = ResumeTimeline().Endpoint(Cursor{})
	if path != "/api/v1/timelines/home" {
		t.Fatalf("unexpected resume path: %s", path)
	}
}

func TestTimeline_ForwardPaginationPolicy(t *testing.T) {
	if !HomeTimeline().SupportsForwardPagination() {
		t.Fatal("home should support forward pagination")
	}
	if !ListTimeline("1").SupportsForwardPagination() {
		t.Fatal("lists should support forward pagination")
	}
	if FederatedTimeline().SupportsForwardPagination() {
		t.Fatal("federated should not support forward pagination")
	}
	if HashtagTimeline("go").SupportsForwardPagination() {
		t.Fatal("hashtags should not support forward pagination")
	}
}

func TestCompareID(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"100", "100", 0},
		{"1050", "1001", 1},
		{"999", "1000", -1},
	}
	for _, tc := range cases {
		if got := CompareID(tc.a, tc.b); got != tc.want {
			t.Fatalf("CompareID(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}

	if !IDNewer("2001", "2000") {
		t.Fatal("2001 should be newer than 2000")
	}
	if IDNewer("2000", "2000") {
		t.Fatal("equal ids are not newer")
	}
}
