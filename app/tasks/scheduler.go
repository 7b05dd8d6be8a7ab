package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/feedspout/feedspout/app/cfg"
	"github.com/feedspout/feedspout/app/checkpoint"
	"github.com/feedspout/feedspout/app/feed"
	"github.com/feedspout/feedspout/app/sink"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache      *feed.ConfigCache
	store            checkpoint.Store
	eventSink        sink.Sink
	httpClient       *http.Client
	fetcher          *feed.Fetcher
	contentExtractor *feed.ContentExtractor
	userAgent        string
	interval         time.Duration
	workerCount      int
	logger           *slog.Logger
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
	inFlightMu       sync.Mutex
	inFlight         map[string]bool
}

func NewScheduler(configCache *feed.ConfigCache, store checkpoint.Store, eventSink sink.Sink,
	httpClient *http.Client, fetcher *feed.Fetcher, contentExtractor *feed.ContentExtractor,
	logger *slog.Logger) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache:      configCache,
		store:            store,
		eventSink:        eventSink,
		httpClient:       httpClient,
		fetcher:          fetcher,
		contentExtractor: contentExtractor,
		userAgent:        cfg.UserAgent,
		interval:         time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:      cfg.WorkerCount,
		logger:           logger,
		ctx:              ctx,
		cancel:           cancel,
		taskQueue:        make(chan TaskInterface, 300),
		inFlight:         make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueuePollTask queues a poll for one feed unless a poll for it is
// already queued or running, so a slow fetch never stacks up behind itself.
func (s *Scheduler) EnqueuePollTask(feedConfig *feed.Config, force bool) error {
	s.inFlightMu.Lock()
	if s.inFlight[feedConfig.Name] {
		s.inFlightMu.Unlock()
		s.logger.Debug("Poll already queued or running, skipping", "feed", feedConfig.Name)
		return nil
	}
	s.inFlight[feedConfig.Name] = true
	s.inFlightMu.Unlock()

	pollTask := NewPollFeedTask(feedConfig.Name, feedConfig, force, s.httpClient, s.fetcher,
		s.contentExtractor, s.store, s.eventSink, s.userAgent, s.logger)

	if err := s.EnqueueTask(pollTask); err != nil {
		s.clearInFlight(feedConfig.Name)
		return err
	}

	return nil
}

func (s *Scheduler) clearInFlight(feedName string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, feedName)
	s.inFlightMu.Unlock()
}

func (s *Scheduler) enqueueTasks() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		s.logger.Debug("No enabled feed configurations found")
		return
	}

	s.logger.Debug("Scheduling feed polls", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		if err := s.EnqueuePollTask(feedConfig, false); err != nil {
			s.logger.Warn("Failed to enqueue PollFeedTask", "feed", feedConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err == nil {
		s.clearInFlight(task.GetFeedName())
		return
	}

	s.logger.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if task.CanRetry() {
		task.IncrementRetryCount()
		retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}

		s.logger.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

		// The retry goroutine joins the wait group so Stop cannot close the
		// task queue while a delayed re-enqueue is still pending.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			select {
			case <-time.After(retryDelay):
			case <-s.ctx.Done():
				s.logger.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				s.clearInFlight(task.GetFeedName())
				return
			}

			if retryErr := s.EnqueueTask(task); retryErr != nil {
				s.logger.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.clearInFlight(task.GetFeedName())
			}
		}()
	} else {
		s.logger.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.clearInFlight(task.GetFeedName())
	}
}
