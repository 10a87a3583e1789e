package mastodon

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// TimelineKind enumerates the feed variants the engine can synchronize.
type TimelineKind string

const (
	TimelineHome      TimelineKind = "home"
	TimelineLocal     TimelineKind = "local"
	TimelineFederated TimelineKind = "federated"
	TimelineHashtag   TimelineKind = "hashtag"
	TimelineList      TimelineKind = "list"

	// TimelineResume is a pseudo-timeline: when selected, the engine fetches
	// the persisted read marker, loads a window anchored at it and then
	// reverts to the home timeline.
	TimelineResume TimelineKind = "resume"
)

// Timeline identifies one feed variant together with its parameters.
//
// Identity is the canonical Key string, not structural equality, so two
// hashtag timelines with reordered tag lists compare equal.
type Timeline struct {
	Kind TimelineKind
	Tag  string   // hashtag timelines
	Any  []string // additional hashtags ORed into a hashtag timeline
	List string   // list id for list timelines
}

func HomeTimeline() Timeline      { return Timeline{Kind: TimelineHome} }
func LocalTimeline() Timeline     { return Timeline{Kind: TimelineLocal} }
func FederatedTimeline() Timeline { return Timeline{Kind: TimelineFederated} }
func ResumeTimeline() Timeline    { return Timeline{Kind: TimelineResume} }

func HashtagTimeline(tag string, any ...string) Timeline {
	return Timeline{Kind: TimelineHashtag, Tag: tag, Any: any}
}

func ListTimeline(id string) Timeline {
	return Timeline{Kind: TimelineList, List: id}
}

// Key returns the canonical identity string for the timeline. Hashtag tag
// lists are lowercased and sorted so visually-similar variants cannot drift
// apart.
func (t Timeline) Key() string {
	switch t.Kind {
	case TimelineHashtag:
		tags := make([]string, 0, len(t.Any)+1)
		tags = append(tags, strings.ToLower(t.Tag))
		for _, tag := range t.Any {
			tags = append(tags, strings.ToLower(tag))
		}
		sort.Strings(tags)
		return "hashtag:" + strings.Join(tags, "+")
	case TimelineList:
		return "list:" + t.List
	default:
		return string(t.Kind)
	}
}

// SupportsForwardPagination reports whether the timeline can be restored from
// cache and caught up forward from a known newest id. Public and hashtag
// timelines move too fast for that to be meaningful.
func (t Timeline) SupportsForwardPagination() bool {
	switch t.Kind {
	case TimelineHome, TimelineList, TimelineResume:
		return true
	default:
		return false
	}
}

// StreamName returns the streaming API stream for the timeline, or "" when
// the timeline has no live stream.
func (t Timeline) StreamName() string {
	switch t.Kind {
	case TimelineHome, TimelineResume:
		return "user"
	case TimelineLocal:
		return "public:local"
	case TimelineFederated:
		return "public"
	case TimelineHashtag:
		return "hashtag"
	case TimelineList:
		return "list"
	default:
		return ""
	}
}

// Cursor carries the paging parameters for one timeline request.
type Cursor struct {
	SinceID string
	MaxID   string
	MinID   string
	Limit   int
	Offset  int
}

// Endpoint maps the timeline variant and cursor to a request path and query.
func (t Timeline) Endpoint(c Cursor) (string, url.Values) {
	var path string
	q := make(url.Values)

	switch t.Kind {
	case TimelineLocal:
		path = "/api/v1/timelines/public"
		q.Set("local", "true")
	case TimelineFederated:
		path = "/api/v1/timelines/public"
	case TimelineHashtag:
		path = "/api/v1/timelines/tag/" + url.PathEscape(strings.ToLower(t.Tag))
		for _, tag := range t.Any {
			q.Add("any[]", strings.ToLower(tag))
		}
	case TimelineList:
		path = "/api/v1/timelines/list/" + url.PathEscape(t.List)
	default:
		// Home and the resume pseudo-timeline both read the home feed.
		path = "/api/v1/timelines/home"
	}

	if c.SinceID != "" {
		q.Set("since_id", c.SinceID)
	}
	if c.MaxID != "" {
		q.Set("max_id", c.MaxID)
	}
	if c.MinID != "" {
		q.Set("min_id", c.MinID)
	}
	if c.Limit > 0 {
		q.Set("limit", strconv.Itoa(c.Limit))
	}
	if c.Offset > 0 {
		q.Set("offset", strconv.Itoa(c.Offset))
	}
	return path, q
}
