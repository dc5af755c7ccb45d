// Package admin exposes the job surface over HTTP so operators can trigger
// any job manually. The handlers are thin wrappers around the same runner
// the scheduler uses; every job stays idempotent regardless of caller.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cbattlegear/forkalytics/internal/jobs"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

const jobTimeout = 30 * time.Minute

var errInvalidHour = errors.New("invalid hour, want RFC3339")

// RegisterRoutes mounts the manual job triggers under /admin/jobs.
func RegisterRoutes(router *gin.Engine, runner *jobs.Runner, logger logging.Logger) {
	h := &handlers{runner: runner, logger: logger}

	group := router.Group("/admin/jobs")
	group.POST("/sentiment", h.sentiment)
	group.POST("/hourly-stats", h.hourlyStats)
	group.POST("/topics", h.topics)
	group.POST("/summary", h.summary)
	group.POST("/reprocess", h.reprocess)
}

type handlers struct {
	runner *jobs.Runner
	logger logging.Logger
}

func (h *handlers) sentiment(c *gin.Context) {
	batchSize := 0
	if raw := c.Query("batch_size"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch_size"})
			return
		}
		batchSize = value
	}

	h.run(c, "sentiment", func(ctx context.Context) error {
		return h.runner.AnalyzeSentimentBatch(ctx, batchSize)
	})
}

func (h *handlers) hourlyStats(c *gin.Context) {
	target, err := hourQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	force := c.Query("force") == "true"

	h.run(c, "hourly_stats", func(ctx context.Context) error {
		return h.runner.GenerateHourlyStats(ctx, target, force)
	})
}

func (h *handlers) topics(c *gin.Context) {
	target, err := hourQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	force := c.Query("force") == "true"

	h.run(c, "hourly_topics", func(ctx context.Context) error {
		return h.runner.ExtractHourlyTopics(ctx, target, force)
	})
}

func (h *handlers) summary(c *gin.Context) {
	var target *time.Time
	if raw := c.Query("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		day = day.UTC()
		target = &day
	}
	force := c.Query("force") == "true"

	h.run(c, "daily_summary", func(ctx context.Context) error {
		return h.runner.GenerateDailySummary(ctx, target, force)
	})
}

func (h *handlers) reprocess(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing start, want RFC3339"})
		return
	}
	end := time.Now().UTC()
	if raw := c.Query("end"); raw != "" {
		end, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end, want RFC3339"})
			return
		}
	}

	opts := jobs.ReprocessOptions{
		Stats:     c.Query("stats") != "false",
		Topics:    c.Query("topics") != "false",
		Summaries: c.Query("summaries") != "false",
	}

	h.run(c, "reprocess", func(ctx context.Context) error {
		return h.runner.Reprocess(ctx, start, end, opts)
	})
}

// run executes the job synchronously and reports its outcome. Triggered jobs
// share the scheduler's idempotency, so a retried request is harmless.
func (h *handlers) run(c *gin.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), jobTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		h.logger.WithError(err).WithField("job", name).Error("Manually triggered job failed")
		c.JSON(http.StatusInternalServerError, gin.H{"job": name, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": name, "status": "ok"})
}

func hourQuery(c *gin.Context) (*time.Time, error) {
	raw := c.Query("hour")
	if raw == "" {
		return nil, nil
	}
	hour, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errInvalidHour
	}
	hour = hour.UTC().Truncate(time.Hour)
	return &hour, nil
}
