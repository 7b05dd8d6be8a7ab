package checkpoint

import (
	"time"
)

// Store persists one checkpoint per feed. Load returns (nil, nil) when no
// checkpoint exists yet; malformed persisted state is logged and likewise
// reported as absent, so callers never branch on missing vs corrupt.
// Save overwrites the feed's checkpoint in one step; lastEntryDate is
// persisted with second precision and may be nil.
type Store interface {
	Load(feedName string) (*Checkpoint, error)
	Save(feedName string, lastRun time.Time, lastEntryDate *time.Time) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*RedisStore)(nil)
