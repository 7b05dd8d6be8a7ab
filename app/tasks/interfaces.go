package tasks

import (
	"github.com/feedspout/feedspout/app/feed"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background task processing and by
// the API to trigger polls on demand.
// Example usage:
//
//	scheduler := NewScheduler(configCache, store, eventSink, httpClient, fetcher, contentExtractor, logger)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueuePollTask(feedConfig, true)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueuePollTask(feedConfig *feed.Config, force bool) error
}
