package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/feedspout/feedspout/app/checkpoint"
	"github.com/feedspout/feedspout/app/feed"
	"github.com/feedspout/feedspout/app/sink"
)

type PollFeedTask struct {
	Task
	FeedConfig       *feed.Config
	Force            bool
	httpClient       *http.Client
	fetcher          *feed.Fetcher
	contentExtractor *feed.ContentExtractor
	store            checkpoint.Store
	eventSink        sink.Sink
	userAgent        string
	logger           *slog.Logger
}

func NewPollFeedTask(feedName string, feedConfig *feed.Config, force bool, httpClient *http.Client, fetcher *feed.Fetcher, contentExtractor *feed.ContentExtractor, store checkpoint.Store, eventSink sink.Sink, userAgent string, logger *slog.Logger) *PollFeedTask {
	return &PollFeedTask{
		Task:             NewTask(TaskTypePollFeed, feedName),
		FeedConfig:       feedConfig,
		Force:            force,
		httpClient:       httpClient,
		fetcher:          fetcher,
		contentExtractor: contentExtractor,
		store:            store,
		eventSink:        eventSink,
		userAgent:        userAgent,
		logger:           logger,
	}
}

func (t *PollFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		t.logger.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	cp, err := t.store.Load(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	now := time.Now().UTC()
	interval := t.FeedConfig.Interval()

	if !t.Force && !needsAnotherRun(cp, interval, now) {
		t.logger.Debug("Feed not due yet", "feed", t.FeedName, "due_at", cp.LastRun.Add(interval))
		return nil
	}

	var includeLaterThan *time.Time
	if t.FeedConfig.Settings.IncludeOnlyChanged && cp != nil {
		includeLaterThan = cp.LastEntryDate
	}

	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(t.FeedConfig.Settings.Timeout)*time.Second)
	entries, latestDate, err := t.fetcher.Fetch(fetchCtx, t.FeedConfig.URL, includeLaterThan)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	if t.FeedConfig.Settings.ExtractContent {
		t.enrichEntries(ctx, entries)
	}

	// The checkpoint is saved only after the whole batch went out. A delivery
	// failure aborts the run and the next one re-delivers from the old
	// checkpoint, so entries are emitted at least once, never silently dropped.
	for _, entry := range entries {
		event := &sink.Event{
			Index:      t.FeedConfig.Output.Index,
			Source:     t.FeedName,
			Sourcetype: t.FeedConfig.Output.Sourcetype,
			Host:       t.FeedConfig.Output.Host,
			Fields:     entry,
		}

		if err := t.eventSink.Write(ctx, event); err != nil {
			return fmt.Errorf("failed to deliver event: %w", err)
		}
	}

	newLastEntryDate := latestDate
	if cp != nil && cp.LastEntryDate != nil {
		if newLastEntryDate == nil || cp.LastEntryDate.After(*newLastEntryDate) {
			newLastEntryDate = cp.LastEntryDate
		}
	}

	err = t.store.Save(t.FeedName, nonDeviatedLastRun(cp, interval, now), newLastEntryDate)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	t.logger.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"delivered", len(entries))

	return nil
}

func (t *PollFeedTask) enrichEntries(ctx context.Context, entries []map[string]any) {
	successCount := 0
	errorCount := 0

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		link, _ := entry["link"].(string)
		if link == "" {
			continue
		}

		extractedContent, err := t.extractContent(ctx, link)
		if err != nil {
			t.logger.Error("Failed to extract content for entry", "feed", t.FeedName, "url", link, "error", err)
			errorCount++
			continue
		}

		entry["extracted_content"] = extractedContent
		successCount++
	}

	if successCount > 0 || errorCount > 0 {
		t.logger.Debug("Content extraction finished", "feed", t.FeedName, "success", successCount, "errors", errorCount)
	}
}

func (t *PollFeedTask) extractContent(ctx context.Context, url string) (string, error) {
	data, err := t.fetchArticleContent(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article content: %w", err)
	}

	extractedContent, err := t.contentExtractor.Run(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	return extractedContent, nil
}

func (t *PollFeedTask) fetchArticleContent(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.FeedConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// needsAnotherRun reports whether a feed is due: either it has never run, or
// at least one full interval has passed since the recorded last run.
func needsAnotherRun(cp *checkpoint.Checkpoint, interval time.Duration, now time.Time) bool {
	if cp == nil {
		return true
	}

	return !now.Before(cp.LastRun.Add(interval))
}

// nonDeviatedLastRun advances the recorded last run by whole intervals so the
// schedule stays on its original grid instead of drifting by however late the
// worker picked the task up. A first run anchors the grid at the current time.
func nonDeviatedLastRun(cp *checkpoint.Checkpoint, interval time.Duration, now time.Time) time.Time {
	if cp == nil {
		return now
	}

	elapsed := now.Sub(cp.LastRun)
	if elapsed < 0 {
		return cp.LastRun
	}

	return cp.LastRun.Add(elapsed.Truncate(interval))
}
