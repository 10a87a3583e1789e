package mastodon

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Account is the subset of account fields required by the engine.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
}

// Quote is an explicit quote attachment on a status.
type Quote struct {
	StatusID string `json:"status_id"`
	State    string `json:"state"`
}

// Status is the subset of Mastodon status fields required by the engine.
type Status struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	InReplyToID        string    `json:"in_reply_to_id"`
	InReplyToAccountID string    `json:"in_reply_to_account_id"`
	Account            Account   `json:"account"`
	Content            string    `json:"content"`
	URL                string    `json:"url"`
	Reblog             *Status   `json:"reblog"`
	Quote              *Quote    `json:"quote"`

	// Hidden is set client-side when a server filter matched the status.
	Hidden bool `json:"-"`
}

// IsBoost reports whether the status wraps a reblogged original.
func (s *Status) IsBoost() bool {
	return s.Reblog != nil
}

// statusLinkRe matches permalinks of the form https://host/@user/123456.
var statusLinkRe = regexp.MustCompile(`^https?://[^/]+/@[^/]+/\d+$`)

// HasQuoteLink reports whether the status quotes another post, either through
// an explicit quote attachment or through a status permalink embedded in the
// content HTML.
func (s *Status) HasQuoteLink() bool {
	if s.Quote != nil {
		return true
	}
	return containsStatusLink(s.Content)
}

func containsStatusLink(content string) bool {
	if content == "" {
		return false
	}
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key != "href" {
					continue
				}
				if statusLinkRe.MatchString(attr.Val) || strings.Contains(attr.Val, "/statuses/") {
					return true
				}
			}
		}
	}
}

// CompareID orders two status ids. Ids are opaque decimal strings assigned in
// increasing order by the server, so a longer id is always newer and equal
// lengths fall back to a lexicographic compare. Returns -1, 0 or 1.
func CompareID(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// IDNewer reports whether id a is ordinally newer than id b.
func IDNewer(a, b string) bool {
	return CompareID(a, b) > 0
}
