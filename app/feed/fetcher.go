package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

type Fetcher struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
	logger       *slog.Logger
}

func NewFetcher(httpClient *http.Client, userAgent string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
		logger:       logger,
	}
}

// Fetch retrieves and parses the feed at url, returning the flattened
// entries in feed order together with the latest entry date seen across
// the whole feed. When includeLaterThan is set, dated entries at or before
// it are dropped (ties drop too); undated entries are always returned.
// The latest date is tracked over dropped entries as well, so it can
// belong to an entry that was not returned.
func (f *Fetcher) Fetch(ctx context.Context, url string, includeLaterThan *time.Time) ([]map[string]any, *time.Time, error) {
	data, err := f.fetch(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := f.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var latestDate *time.Time
	entries := make([]map[string]any, 0, len(parsed.Items))

	for _, item := range parsed.Items {
		entryDate := EntryDate(item)

		if entryDate != nil {
			if latestDate == nil || entryDate.After(*latestDate) {
				latestDate = entryDate
			}
			if includeLaterThan != nil && !entryDate.After(*includeLaterThan) {
				f.logger.Debug("Entry not changed, skipping", "url", url, "entry_date", entryDate.Format(entryTimeFormat))
				continue
			}
		}

		entries = append(entries, Flatten(normalizeEntry(item), nil, ""))
	}

	return entries, latestDate, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
