package timeline

import "github.com/glabrego/tideline/internal/mastodon"

// ContentFilter decides which statuses are visible at read time. It never
// mutates the stored sequence; gaps always pass through so pagination
// affordances stay visible.
type ContentFilter struct {
	ShowReplies    bool
	ShowBoosts     bool
	ShowThreads    bool
	ShowQuotePosts bool
}

// ShowAll returns a filter that hides nothing.
func ShowAll() ContentFilter {
	return ContentFilter{ShowReplies: true, ShowBoosts: true, ShowThreads: true, ShowQuotePosts: true}
}

// Allows reports whether the status passes the filter.
func (f ContentFilter) Allows(s *mastodon.Status) bool {
	if s.Hidden {
		return false
	}
	if !f.ShowReplies && s.InReplyToID != "" && s.InReplyToAccountID != s.Account.ID {
		return false
	}
	if !f.ShowBoosts && s.IsBoost() {
		return false
	}
	if !f.ShowThreads && s.InReplyToAccountID == s.Account.ID {
		return false
	}
	if !f.ShowQuotePosts && s.HasQuoteLink() {
		return false
	}
	return true
}
