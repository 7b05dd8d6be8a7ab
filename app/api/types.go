package api

import (
	"log/slog"

	"github.com/feedspout/feedspout/app/checkpoint"
	"github.com/feedspout/feedspout/app/feed"
	"github.com/feedspout/feedspout/app/tasks"
)

type Handler struct {
	configCache *feed.ConfigCache
	store       checkpoint.Store
	scheduler   tasks.TaskSchedulerInterface
	logger      *slog.Logger
}
