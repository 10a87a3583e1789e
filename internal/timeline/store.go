package timeline

import (
	"sync"

	"github.com/glabrego/tideline/internal/mastodon"
)

// Store owns the ordered timeline sequence. All access is serialized behind a
// mutex: no two mutating calls interleave their effects and readers never
// observe a partially-mutated sequence.
//
// The sequence is ordered newest-first. Gaps never lead the sequence and two
// gaps are never adjacent; insertions that would violate either rule are
// silently dropped.
type Store struct {
	mu      sync.Mutex
	entries []Entry
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) == 0
}

// Count returns the number of status entries, ignoring gaps.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !e.IsGap() {
			n++
		}
	}
	return n
}

// Statuses returns the status entries only, newest first.
func (s *Store) Statuses() []*mastodon.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*mastodon.Status, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.IsGap() {
			out = append(out, e.Status)
		}
	}
	return out
}

// Entries returns a snapshot of the raw sequence including gaps.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// FilteredStatuses returns the statuses that pass the filter, newest first.
func (s *Store) FilteredStatuses(f ContentFilter) []*mastodon.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*mastodon.Status, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.IsGap() && f.Allows(e.Status) {
			out = append(out, e.Status)
		}
	}
	return out
}

// FilteredEntries returns the sequence with non-passing statuses removed.
// Gaps are never filtered out.
func (s *Store) FilteredEntries(f ContentFilter) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.IsGap() || f.Allows(e.Status) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// SetStatuses replaces the whole sequence with the given statuses.
func (s *Store) SetStatuses(statuses []*mastodon.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]Entry, 0, len(statuses))
	for _, st := range statuses {
		s.entries = append(s.entries, StatusEntry(st))
	}
}

// SetEntries replaces the whole sequence, dropping any leading gap.
func (s *Store) SetEntries(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(entries) > 0 && entries[0].IsGap() {
		entries = entries[1:]
	}
	s.entries = append([]Entry(nil), entries...)
}

// Prepend inserts statuses at the head of the sequence.
func (s *Store) Prepend(statuses []*mastodon.Status) {
	s.InsertStatusesAt(0, statuses)
}

// Append adds statuses at the tail of the sequence.
func (s *Store) Append(statuses []*mastodon.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range statuses {
		s.entries = append(s.entries, StatusEntry(st))
	}
}

// InsertStatusesAt splices statuses into the sequence at the given index.
// Out-of-range indexes clamp to the nearest end.
func (s *Store) InsertStatusesAt(index int, statuses []*mastodon.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(statuses) == 0 {
		return
	}
	index = clampIndex(index, len(s.entries))

	inserted := make([]Entry, 0, len(statuses))
	for _, st := range statuses {
		inserted = append(inserted, StatusEntry(st))
	}
	s.entries = spliceEntries(s.entries, index, 0, inserted)
}

// TrimAfter drops every entry more than safeOffset positions past the status
// with the given id. Used to bound memory after a burst of new statuses is
// inserted above the visible window. No-op when the id is absent.
func (s *Store) TrimAfter(id string, safeOffset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return
	}
	cut := idx + 1 + safeOffset
	if cut < len(s.entries) {
		s.entries = s.entries[:cut]
	}
}

// ReplaceAt swaps the status at the given index in place. No-op when the
// index is out of range or holds a gap.
func (s *Store) ReplaceAt(index int, status *mastodon.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.entries) || s.entries[index].IsGap() {
		return
	}
	s.entries[index] = StatusEntry(status)
}

// Remove deletes the status with the given id and returns it, or nil when
// absent.
func (s *Store) Remove(id string) *mastodon.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return nil
	}
	removed := s.entries[idx].Status
	s.entries = spliceEntries(s.entries, idx, 1, nil)
	s.coalesceGapsLocked()
	s.dropLeadingGapLocked()
	return removed
}

// IndexOf returns the sequence index of the status with the given id, or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOfLocked(id)
}

func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOfLocked(id) >= 0
}

// TopID returns the id of the newest status, or "" when the store holds no
// statuses.
func (s *Store) TopID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if !e.IsGap() {
			return e.Status.ID
		}
	}
	return ""
}

// BottomStatus returns the oldest status, or nil when the store holds none.
func (s *Store) BottomStatus() *mastodon.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if !s.entries[i].IsGap() {
			return s.entries[i].Status
		}
	}
	return nil
}

// InsertGapAt places a gap at the given index. The insert is dropped when it
// would create a leading gap or sit adjacent to another gap.
func (s *Store) InsertGapAt(index int, gap Gap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index <= 0 || index > len(s.entries) {
		return
	}
	if s.entries[index-1].IsGap() {
		return
	}
	if index < len(s.entries) && s.entries[index].IsGap() {
		return
	}
	s.entries = spliceEntries(s.entries, index, 0, []Entry{GapEntry(gap)})
}

// ReplaceGap removes the gap with the given id and splices the statuses into
// its place, preserving both neighbors. Returns the splice index, or -1 when
// the gap is absent.
func (s *Store) ReplaceGap(id string, statuses []*mastodon.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.gapIndexLocked(id)
	if idx < 0 {
		return -1
	}
	inserted := make([]Entry, 0, len(statuses))
	for _, st := range statuses {
		inserted = append(inserted, StatusEntry(st))
	}
	s.entries = spliceEntries(s.entries, idx, 1, inserted)
	s.dropLeadingGapLocked()
	return idx
}

// SetGapLoading flips the loading flag on the gap with the given id.
func (s *Store) SetGapLoading(id string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.gapIndexLocked(id)
	if idx < 0 {
		return
	}
	gap := *s.entries[idx].Gap
	gap.Loading = loading
	s.entries[idx] = GapEntry(gap)
}

// GapByID returns a copy of the gap with the given id.
func (s *Store) GapByID(id string) (Gap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.gapIndexLocked(id)
	if idx < 0 {
		return Gap{}, false
	}
	return *s.entries[idx].Gap, true
}

func (s *Store) indexOfLocked(id string) int {
	for i, e := range s.entries {
		if !e.IsGap() && e.Status.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) gapIndexLocked(id string) int {
	for i, e := range s.entries {
		if e.IsGap() && e.Gap.ID == id {
			return i
		}
	}
	return -1
}

// coalesceGapsLocked merges runs of adjacent gaps left behind by a removal
// into a single gap spanning both ranges. The surviving gap keeps the upper
// gap's id and MaxID and takes the lower gap's SinceID.
func (s *Store) coalesceGapsLocked() {
	for i := 1; i < len(s.entries); {
		if !s.entries[i-1].IsGap() || !s.entries[i].IsGap() {
			i++
			continue
		}
		merged := Gap{
			ID:      s.entries[i-1].Gap.ID,
			SinceID: s.entries[i].Gap.SinceID,
			MaxID:   s.entries[i-1].Gap.MaxID,
		}
		s.entries[i-1] = GapEntry(merged)
		s.entries = spliceEntries(s.entries, i, 1, nil)
	}
}

func (s *Store) dropLeadingGapLocked() {
	for len(s.entries) > 0 && s.entries[0].IsGap() {
		s.entries = s.entries[1:]
	}
}

func clampIndex(index, size int) int {
	if index < 0 {
		return 0
	}
	if index > size {
		return size
	}
	return index
}

func spliceEntries(entries []Entry, index, removed int, inserted []Entry) []Entry {
	out := make([]Entry, 0, len(entries)-removed+len(inserted))
	out = append(out, entries[:index]...)
	out = append(out, inserted...)
	out = append(out, entries[index+removed:]...)
	return out
}
