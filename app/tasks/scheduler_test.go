package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/feedspout/feedspout/app/feed"
)

func newTestScheduler(queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		logger:    testLogger(),
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, queueSize),
		inFlight:  make(map[string]bool),
	}
}

func TestEnqueuePollTaskDeduplicates(t *testing.T) {
	scheduler := newTestScheduler(10)
	defer scheduler.cancel()

	feedConfig := &feed.Config{Name: "alpha", URL: "https://example.com/a.xml"}

	if err := scheduler.EnqueuePollTask(feedConfig, false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := scheduler.EnqueuePollTask(feedConfig, false); err != nil {
		t.Fatalf("Expected duplicate enqueue to be dropped without error, got: %v", err)
	}

	if len(scheduler.taskQueue) != 1 {
		t.Errorf("Expected 1 queued task, got: %d", len(scheduler.taskQueue))
	}

	otherConfig := &feed.Config{Name: "beta", URL: "https://example.com/b.xml"}

	if err := scheduler.EnqueuePollTask(otherConfig, false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(scheduler.taskQueue) != 2 {
		t.Errorf("Expected 2 queued tasks, got: %d", len(scheduler.taskQueue))
	}
}

func TestEnqueuePollTaskAfterClear(t *testing.T) {
	scheduler := newTestScheduler(10)
	defer scheduler.cancel()

	feedConfig := &feed.Config{Name: "alpha", URL: "https://example.com/a.xml"}

	if err := scheduler.EnqueuePollTask(feedConfig, false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	scheduler.clearInFlight(feedConfig.Name)

	if err := scheduler.EnqueuePollTask(feedConfig, false); err != nil {
		t.Fatalf("Expected no error after clear, got: %v", err)
	}

	if len(scheduler.taskQueue) != 2 {
		t.Errorf("Expected 2 queued tasks, got: %d", len(scheduler.taskQueue))
	}
}

type failingTask struct {
	Task
}

func (t *failingTask) Execute(ctx context.Context) error {
	return fmt.Errorf("boom")
}

func TestStopWaitsForPendingRetry(t *testing.T) {
	scheduler := newTestScheduler(10)

	task := &failingTask{Task: NewTask(TaskTypePollFeed, "alpha")}

	// The failed execution schedules a delayed retry; Stop must wait for
	// that goroutine before closing the queue instead of racing it.
	scheduler.executeTask(0, task)
	scheduler.Stop()

	if _, ok := <-scheduler.taskQueue; ok {
		t.Error("Expected no task to be re-enqueued after Stop")
	}
}

func TestEnqueuePollTaskQueueFull(t *testing.T) {
	scheduler := newTestScheduler(1)
	defer scheduler.cancel()

	firstConfig := &feed.Config{Name: "alpha", URL: "https://example.com/a.xml"}
	if err := scheduler.EnqueuePollTask(firstConfig, false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	secondConfig := &feed.Config{Name: "beta", URL: "https://example.com/b.xml"}
	if err := scheduler.EnqueuePollTask(secondConfig, false); err == nil {
		t.Error("Expected error when the queue is full")
	}

	// A failed enqueue must not leave the feed marked in flight.
	<-scheduler.taskQueue

	if err := scheduler.EnqueuePollTask(secondConfig, false); err != nil {
		t.Fatalf("Expected enqueue to succeed after space freed, got: %v", err)
	}
}
