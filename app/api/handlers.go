package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-actions/app/cfg"
	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/tasks"
)

func NewHandler(store *database.Store, scheduler tasks.UpdateSchedulerInterface) *Handler {
	return &Handler{
		store:     store,
		scheduler: scheduler,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"version":   cfg.GetVersion(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if last, ok := h.scheduler.Last(); ok {
		health["last_update"] = last.FinishedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	var feeds []database.Feed
	err := h.store.WithTx(c.Request.Context(), func(tx *database.Tx) error {
		var err error
		feeds, err = tx.ListFeeds(c.Request.Context())
		return err
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	resp := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		resp = append(resp, feedResponse{Alias: f.Alias, URL: f.URL})
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": resp,
		"total": len(resp),
	})
}

func (h *Handler) ListFilters(c *gin.Context) {
	var filters []database.Filter
	err := h.store.WithTx(c.Request.Context(), func(tx *database.Tx) error {
		var err error
		filters, err = tx.ListFilters(c.Request.Context())
		return err
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_filters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	resp := make([]filterResponse, 0, len(filters))
	for _, f := range filters {
		resp = append(resp, filterResponse{
			Alias:       f.Alias,
			Keywords:    f.Keywords,
			ScriptPath:  f.ScriptPath,
			LastUpdated: f.LastUpdated,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"filters": resp,
		"total":   len(resp),
	})
}

func (h *Handler) GetReport(c *gin.Context) {
	last, ok := h.scheduler.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No update has run yet"})
		return
	}

	c.JSON(http.StatusOK, newReportResponse(last))
}

// RunUpdate runs a pass and waits for it. A client going away does not
// cancel the pass.
func (h *Handler) RunUpdate(c *gin.Context) {
	report, err := h.scheduler.RunNow(context.WithoutCancel(c.Request.Context()))
	result := tasks.RunResult{Report: report, Err: err, FinishedAt: time.Now()}

	if err != nil {
		slog.Error("Update pass failed", "error", err)
		c.JSON(http.StatusBadGateway, newReportResponse(result))
		return
	}

	c.JSON(http.StatusOK, newReportResponse(result))
}
