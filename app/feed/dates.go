package feed

import (
	"time"

	"github.com/mmcdole/gofeed"
)

// EntryDate returns the canonical date of a feed entry: the update
// timestamp when present, the publish timestamp otherwise, nil when the
// entry carries neither.
func EntryDate(item *gofeed.Item) *time.Time {
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return nil
}
