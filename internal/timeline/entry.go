package timeline

import (
	"github.com/google/uuid"

	"github.com/glabrego/tideline/internal/mastodon"
)

// Gap marks a known range of not-yet-fetched statuses strictly between two
// known ids. A Gap with an empty SinceID is unbounded below.
type Gap struct {
	ID      string
	SinceID string
	MaxID   string
	Loading bool
}

// NewGap creates a gap covering the open interval (sinceID, maxID).
func NewGap(sinceID, maxID string) Gap {
	return Gap{ID: uuid.NewString(), SinceID: sinceID, MaxID: maxID}
}

// Entry is one element of the timeline sequence: exactly one of Status or Gap
// is set.
type Entry struct {
	Status *mastodon.Status
	Gap    *Gap
}

func StatusEntry(s *mastodon.Status) Entry {
	return Entry{Status: s}
}

func GapEntry(g Gap) Entry {
	return Entry{Gap: &g}
}

func (e Entry) IsGap() bool {
	return e.Gap != nil
}
