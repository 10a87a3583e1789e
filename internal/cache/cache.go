package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glabrego/tideline/internal/mastodon"
	"github.com/glabrego/tideline/internal/timeline"
)

// MaxCachedStatuses caps how many statuses one scope persists. The in-memory
// sequence is unbounded during a session; the cap only applies on write so
// cold starts stay fast.
const MaxCachedStatuses = 800

// Cache is the durable, per-scope store for timeline entries and last-seen
// markers. A scope key names one account plus one timeline variant; see
// ScopeKey.
//
// Callers treat every operation as best-effort: a read failure means "no
// cache" and write failures are dropped, never retried.
type Cache struct {
	db *sql.DB
}

func NewCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// WAL allows concurrent readers while a sync task writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS timeline_entries (
  scope TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_seen (
  scope TEXT PRIMARY KEY,
  ids TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	_, err := c.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ScopeKey names the cache scope for one account and timeline. The home
// timeline uses the bare account key; every other timeline gets its own
// sub-scope.
func ScopeKey(accountKey string, tl mastodon.Timeline) string {
	if tl.Kind == mastodon.TimelineHome || tl.Kind == mastodon.TimelineResume {
		return accountKey
	}
	return accountKey + ":" + tl.Key()
}

// cachedEntry is the serialized tagged form of one timeline entry. Hidden is
// carried explicitly because Status excludes it from the wire format.
type cachedEntry struct {
	Kind    string           `json:"kind"`
	Status  *mastodon.Status `json:"status,omitempty"`
	Hidden  bool             `json:"hidden,omitempty"`
	GapID   string           `json:"gap_id,omitempty"`
	SinceID string           `json:"since_id,omitempty"`
	MaxID   string           `json:"max_id,omitempty"`
}

const (
	kindStatus = "status"
	kindGap    = "gap"
)

// SetEntries serializes the sequence for the scope, overwriting any previous
// payload. The sequence is capped and trimmed first: statuses beyond
// MaxCachedStatuses are dropped, a leading gap is never emitted, and a gap is
// kept at the cap boundary only when its preceding run was emitted in full.
func (c *Cache) SetEntries(ctx context.Context, scope string, entries []timeline.Entry) error {
	tagged := make([]cachedEntry, 0, len(entries))
	posts := 0
	for _, e := range entries {
		if e.IsGap() {
			if len(tagged) == 0 {
				continue
			}
			tagged = append(tagged, cachedEntry{
				Kind:    kindGap,
				GapID:   e.Gap.ID,
				SinceID: e.Gap.SinceID,
				MaxID:   e.Gap.MaxID,
			})
			if posts >= MaxCachedStatuses {
				break
			}
			continue
		}
		if posts >= MaxCachedStatuses {
			break
		}
		tagged = append(tagged, cachedEntry{Kind: kindStatus, Status: e.Status, Hidden: e.Status.Hidden})
		posts++
	}

	payload, err := json.Marshal(tagged)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
INSERT INTO timeline_entries (scope, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(scope) DO UPDATE SET
  payload=excluded.payload,
  updated_at=excluded.updated_at
`, scope, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save cache payload: %w", err)
	}
	return nil
}

// Entries reconstructs the tagged sequence for the scope. A missing scope
// returns an empty sequence, not an error.
func (c *Cache) Entries(ctx context.Context, scope string) ([]timeline.Entry, error) {
	var payload string
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM timeline_entries WHERE scope = ?`, scope).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cache payload: %w", err)
	}

	var tagged []cachedEntry
	if err := json.Unmarshal([]byte(payload), &tagged); err != nil {
		return nil, fmt.Errorf("decode cache payload: %w", err)
	}

	entries := make([]timeline.Entry, 0, len(tagged))
	for _, t := range tagged {
		switch t.Kind {
		case kindStatus:
			if t.Status != nil {
				t.Status.Hidden = t.Hidden
				entries = append(entries, timeline.StatusEntry(t.Status))
			}
		case kindGap:
			gap := timeline.Gap{ID: t.GapID, SinceID: t.SinceID, MaxID: t.MaxID}
			if gap.ID == "" {
				gap = timeline.NewGap(t.SinceID, t.MaxID)
			}
			entries = append(entries, timeline.GapEntry(gap))
		}
	}
	return entries, nil
}

// SetLatestSeen overwrites the ordered most-recently-seen id list for the
// scope. The list lives in its own key space, independent of the entry cache.
func (c *Cache) SetLatestSeen(ctx context.Context, scope string, ids []string) error {
	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode latest seen ids: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO latest_seen (scope, ids, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(scope) DO UPDATE SET
  ids=excluded.ids,
  updated_at=excluded.updated_at
`, scope, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save latest seen ids: %w", err)
	}
	return nil
}

// LatestSeen returns the ordered most-recently-seen id list for the scope.
func (c *Cache) LatestSeen(ctx context.Context, scope string) ([]string, error) {
	var payload string
	err := c.db.QueryRowContext(ctx,
		`SELECT ids FROM latest_seen WHERE scope = ?`, scope).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest seen ids: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(payload), &ids); err != nil {
		return nil, fmt.Errorf("decode latest seen ids: %w", err)
	}
	return ids, nil
}

// Clear drops the cached entries for one scope.
func (c *Cache) Clear(ctx context.Context, scope string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM timeline_entries WHERE scope = ?`, scope)
	if err != nil {
		return fmt.Errorf("clear cache scope: %w", err)
	}
	return nil
}

// ClearAll drops every cached scope belonging to the account, entries and
// markers both. The account key is escaped so `%` or `_` in it cannot match
// other accounts' scopes.
func (c *Cache) ClearAll(ctx context.Context, accountKey string) error {
	pattern := escapeLike(accountKey) + ":%"
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM timeline_entries WHERE scope = ? OR scope LIKE ? ESCAPE '\'`, accountKey, pattern)
	if err != nil {
		return fmt.Errorf("clear account cache: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`DELETE FROM latest_seen WHERE scope = ? OR scope LIKE ? ESCAPE '\'`, accountKey, pattern)
	if err != nil {
		return fmt.Errorf("clear account markers: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
