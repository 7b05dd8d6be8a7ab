package checkpoint

import (
	"time"
)

// Checkpoint is the per-feed state carried between runs. LastRun is when
// the feed was last polled. LastEntryDate is the newest entry date seen so
// far; nil means no dated entry has been seen yet.
type Checkpoint struct {
	LastRun       time.Time
	LastEntryDate *time.Time
}
