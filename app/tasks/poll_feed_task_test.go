package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feedspout/feedspout/app/checkpoint"
	"github.com/feedspout/feedspout/app/feed"
	"github.com/feedspout/feedspout/app/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureSink struct {
	mu     sync.Mutex
	events []*sink.Event
	failOn int
}

func (s *captureSink) Write(ctx context.Context, event *sink.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failOn > 0 && len(s.events)+1 == s.failOn {
		return fmt.Errorf("sink unavailable")
	}

	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error {
	return nil
}

const pollTestFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Poll Test Feed</title>
    <link>https://example.com</link>
    <description>Test feed</description>
    <item>
      <title>First</title>
      <link>https://example.com/1</link>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second</title>
      <link>https://example.com/2</link>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Third</title>
      <link>https://example.com/3</link>
      <guid>item-3</guid>
      <pubDate>Mon, 03 Jul 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func servePollFeed(t *testing.T, hits *int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, pollTestFeed)
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestStore(t *testing.T) *checkpoint.SQLiteStore {
	t.Helper()

	store, err := checkpoint.NewSQLiteStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testFeedConfig(url string) *feed.Config {
	return &feed.Config{
		Name: "testfeed",
		URL:  url,
		Settings: feed.ConfigSettings{
			Enabled:            true,
			Interval:           "15m",
			IncludeOnlyChanged: true,
			Timeout:            30,
		},
		Output: feed.ConfigOutput{
			Index:      "default",
			Sourcetype: "syndication",
		},
	}
}

func newTestPollTask(config *feed.Config, force bool, store checkpoint.Store, eventSink sink.Sink) *PollFeedTask {
	httpClient := &http.Client{}
	fetcher := feed.NewFetcher(httpClient, "feedspout-test", testLogger())
	extractor := feed.NewContentExtractor(testLogger())

	return NewPollFeedTask(config.Name, config, force, httpClient, fetcher, extractor, store, eventSink, "feedspout-test", testLogger())
}

func TestPollFeedTaskFirstRunDeliversAll(t *testing.T) {
	server := servePollFeed(t, nil)
	store := newTestStore(t)
	capture := &captureSink{}

	task := newTestPollTask(testFeedConfig(server.URL), false, store, capture)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(capture.events) != 3 {
		t.Fatalf("Expected 3 events, got: %d", len(capture.events))
	}

	titles := []string{"First", "Second", "Third"}
	for i, event := range capture.events {
		if event.Source != "testfeed" {
			t.Errorf("Expected source 'testfeed', got: %s", event.Source)
		}
		if event.Index != "default" {
			t.Errorf("Expected index 'default', got: %s", event.Index)
		}
		if event.Sourcetype != "syndication" {
			t.Errorf("Expected sourcetype 'syndication', got: %s", event.Sourcetype)
		}
		if event.Fields["title"] != titles[i] {
			t.Errorf("Expected title '%s' at position %d, got: %v", titles[i], i, event.Fields["title"])
		}
	}

	cp, err := store.Load("testfeed")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cp == nil {
		t.Fatal("Expected checkpoint after successful run, got none")
	}

	expectedLatest := time.Date(2023, time.July, 3, 12, 0, 0, 0, time.UTC)
	if cp.LastEntryDate == nil || !cp.LastEntryDate.Equal(expectedLatest) {
		t.Errorf("Expected last entry date %v, got: %v", expectedLatest, cp.LastEntryDate)
	}
}

func TestPollFeedTaskSecondRunDeliversNothing(t *testing.T) {
	server := servePollFeed(t, nil)
	store := newTestStore(t)
	capture := &captureSink{}

	firstRun := newTestPollTask(testFeedConfig(server.URL), false, store, capture)
	if err := firstRun.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	secondRun := newTestPollTask(testFeedConfig(server.URL), true, store, capture)
	if err := secondRun.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(capture.events) != 3 {
		t.Errorf("Expected no additional events on second run, got: %d total", len(capture.events))
	}

	cp, err := store.Load("testfeed")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expectedLatest := time.Date(2023, time.July, 3, 12, 0, 0, 0, time.UTC)
	if cp.LastEntryDate == nil || !cp.LastEntryDate.Equal(expectedLatest) {
		t.Errorf("Expected last entry date %v, got: %v", expectedLatest, cp.LastEntryDate)
	}
}

func TestPollFeedTaskNotDueSkipsFetch(t *testing.T) {
	hits := 0
	server := servePollFeed(t, &hits)
	store := newTestStore(t)
	capture := &captureSink{}

	lastRun := time.Now().UTC().Truncate(time.Second)
	if err := store.Save("testfeed", lastRun, nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	task := newTestPollTask(testFeedConfig(server.URL), false, store, capture)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if hits != 0 {
		t.Errorf("Expected no fetch for a feed that is not due, got: %d", hits)
	}

	if len(capture.events) != 0 {
		t.Errorf("Expected no events, got: %d", len(capture.events))
	}

	cp, err := store.Load("testfeed")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !cp.LastRun.Equal(lastRun) {
		t.Errorf("Expected last run %v to be untouched, got: %v", lastRun, cp.LastRun)
	}
}

func TestPollFeedTaskForceBypassesGate(t *testing.T) {
	hits := 0
	server := servePollFeed(t, &hits)
	store := newTestStore(t)
	capture := &captureSink{}

	if err := store.Save("testfeed", time.Now().UTC(), nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	task := newTestPollTask(testFeedConfig(server.URL), true, store, capture)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if hits != 1 {
		t.Errorf("Expected forced run to fetch, got: %d hits", hits)
	}

	if len(capture.events) != 3 {
		t.Errorf("Expected 3 events, got: %d", len(capture.events))
	}
}

func TestPollFeedTaskDisabledFeedSkips(t *testing.T) {
	hits := 0
	server := servePollFeed(t, &hits)
	store := newTestStore(t)
	capture := &captureSink{}

	config := testFeedConfig(server.URL)
	config.Settings.Enabled = false

	task := newTestPollTask(config, true, store, capture)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if hits != 0 {
		t.Errorf("Expected no fetch for a disabled feed, got: %d", hits)
	}
}

func TestPollFeedTaskFetchFailureLeavesCheckpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newTestStore(t)
	capture := &captureSink{}

	task := newTestPollTask(testFeedConfig(server.URL), false, store, capture)
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error for failing fetch, got none")
	}

	cp, err := store.Load("testfeed")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cp != nil {
		t.Errorf("Expected no checkpoint after failed fetch, got: %+v", cp)
	}
}

func TestPollFeedTaskSinkFailureAbortsBeforeCheckpoint(t *testing.T) {
	server := servePollFeed(t, nil)
	store := newTestStore(t)
	capture := &captureSink{failOn: 2}

	task := newTestPollTask(testFeedConfig(server.URL), false, store, capture)
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error for failing sink, got none")
	}

	if len(capture.events) != 1 {
		t.Errorf("Expected delivery to stop at the failure, got: %d events", len(capture.events))
	}

	cp, err := store.Load("testfeed")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cp != nil {
		t.Errorf("Expected no checkpoint after failed delivery, got: %+v", cp)
	}
}

func TestPollFeedTaskExtractContent(t *testing.T) {
	articleHTML := `<!DOCTYPE html>
<html>
<head><title>Test Article</title></head>
<body>
<article>
<h1>Main Article Title</h1>
<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information.</p>
</article>
</body>
</html>`

	feedTemplate := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Extract Test Feed</title>
    <link>https://example.com</link>
    <description>Test feed</description>
    <item>
      <title>Article</title>
      <link>%s</link>
      <guid>article-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	var articleURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedTemplate, articleURL)
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML)
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	articleURL = server.URL + "/article"

	store := newTestStore(t)
	capture := &captureSink{}

	config := testFeedConfig(server.URL + "/feed")
	config.Settings.ExtractContent = true

	task := newTestPollTask(config, false, store, capture)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(capture.events) != 1 {
		t.Fatalf("Expected 1 event, got: %d", len(capture.events))
	}

	extracted, ok := capture.events[0].Fields["extracted_content"].(string)
	if !ok || extracted == "" {
		t.Fatalf("Expected extracted content, got: %v", capture.events[0].Fields["extracted_content"])
	}

	if !strings.Contains(extracted, "main content of the article") {
		t.Errorf("Expected extracted content to contain article text, got: %s", extracted)
	}
}

func TestNeedsAnotherRun(t *testing.T) {
	base := time.Date(2023, time.July, 3, 10, 0, 0, 0, time.UTC)
	interval := 15 * time.Minute

	if !needsAnotherRun(nil, interval, base) {
		t.Error("Expected a feed without a checkpoint to be due")
	}

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"before interval elapses", base.Add(14 * time.Minute), false},
		{"exactly one interval", base.Add(15 * time.Minute), true},
		{"after interval elapses", base.Add(16 * time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := &checkpoint.Checkpoint{LastRun: base}
			if got := needsAnotherRun(cp, interval, tt.now); got != tt.expected {
				t.Errorf("Expected %v, got: %v", tt.expected, got)
			}
		})
	}
}

func TestNonDeviatedLastRun(t *testing.T) {
	base := time.Date(2023, time.July, 3, 10, 0, 0, 0, time.UTC)
	interval := 15 * time.Minute

	now := base.Add(37 * time.Minute)
	if got := nonDeviatedLastRun(nil, interval, now); !got.Equal(now) {
		t.Errorf("Expected first run to anchor at %v, got: %v", now, got)
	}

	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{"snaps to the grid", base.Add(37 * time.Minute), base.Add(30 * time.Minute)},
		{"early forced run stays put", base.Add(14 * time.Minute), base},
		{"exactly on the grid", base.Add(30 * time.Minute), base.Add(30 * time.Minute)},
		{"clock went backwards", base.Add(-1 * time.Minute), base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := &checkpoint.Checkpoint{LastRun: base}
			if got := nonDeviatedLastRun(cp, interval, tt.now); !got.Equal(tt.expected) {
				t.Errorf("Expected %v, got: %v", tt.expected, got)
			}
		})
	}
}
