package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedspout/feedspout/app/cfg"
	"github.com/feedspout/feedspout/app/checkpoint"
	"github.com/feedspout/feedspout/app/feed"
	"github.com/feedspout/feedspout/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, store checkpoint.Store,
	scheduler tasks.TaskSchedulerInterface, logger *slog.Logger) *Handler {
	return &Handler{
		configCache: configCache,
		store:       store,
		scheduler:   scheduler,
		logger:      logger,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"version":               cfg.GetVersion(),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]map[string]interface{}, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := map[string]interface{}{
			"name":     feedConfig.Name,
			"url":      feedConfig.URL,
			"enabled":  feedConfig.Settings.Enabled,
			"interval": feedConfig.Interval().String(),
		}

		cp, err := h.store.Load(feedConfig.Name)
		if err != nil {
			h.logger.Warn("Failed to load checkpoint for stats", "feed", feedConfig.Name, "error", err)
		}
		if cp != nil {
			feedInfo["last_run"] = cp.LastRun.Format(time.RFC3339)
			feedInfo["due_at"] = cp.LastRun.Add(feedConfig.Interval()).Format(time.RFC3339)
			if cp.LastEntryDate != nil {
				feedInfo["last_entry_date"] = cp.LastEntryDate.Format(time.RFC3339)
			}
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]map[string]interface{}, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := map[string]interface{}{
			"name":                 feedConfig.Name,
			"url":                  feedConfig.URL,
			"enabled":              feedConfig.Settings.Enabled,
			"interval":             feedConfig.Interval().String(),
			"include_only_changed": feedConfig.Settings.IncludeOnlyChanged,
			"extract_content":      feedConfig.Settings.ExtractContent,
			"timeout":              (time.Duration(feedConfig.Settings.Timeout) * time.Second).String(),
			"output": map[string]interface{}{
				"index":      feedConfig.Output.Index,
				"sourcetype": feedConfig.Output.Sourcetype,
				"host":       feedConfig.Output.Host,
			},
		}

		cp, err := h.store.Load(feedConfig.Name)
		if err != nil {
			h.logger.Warn("Failed to load checkpoint for feed listing", "feed", feedConfig.Name, "error", err)
		}
		if cp != nil {
			feedInfo["last_run"] = cp.LastRun.Format(time.RFC3339)
			if cp.LastEntryDate != nil {
				feedInfo["last_entry_date"] = cp.LastEntryDate.Format(time.RFC3339)
			}
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIRunFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		h.logger.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	if err := h.scheduler.EnqueuePollTask(feedConfig, true); err != nil {
		h.logger.Error("Error enqueueing poll task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue poll task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Poll enqueued successfully",
		"feed": gin.H{
			"name": name,
			"url":  feedConfig.URL,
		},
	})
}

func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		h.logger.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded successfully",
		"feed": gin.H{
			"name":    name,
			"url":     feedConfig.URL,
			"enabled": feedConfig.Settings.Enabled,
		},
	})
}
