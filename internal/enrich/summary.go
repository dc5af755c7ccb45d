package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cbattlegear/forkalytics/internal/models"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/llm"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

// summaryPostSample is how many top posts are quoted in the prompt.
const summaryPostSample = 20

// SummaryGenerator produces a daily narrative summary from the day's stats
// and top posts via an external model. Best-effort, like topic extraction.
type SummaryGenerator struct {
	store    *store.Store
	provider llm.Provider
	model    string
	logger   logging.Logger
	now      func() time.Time
}

// NewSummaryGenerator creates a generator. provider may be nil.
func NewSummaryGenerator(st *store.Store, provider llm.Provider, model string, logger logging.Logger) *SummaryGenerator {
	return &SummaryGenerator{
		store:    st,
		provider: provider,
		model:    model,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateDailySummary produces the summary for one UTC day. Idempotent per
// day unless force is set; days with no posts are skipped.
func (g *SummaryGenerator) GenerateDailySummary(ctx context.Context, day time.Time, force bool) (Result, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	if g.provider == nil {
		g.logger.Debug("No model configured, skipping daily summary")
		return ResultSkipped, nil
	}

	if !force {
		exists, err := g.store.DailySummaryExists(ctx, dayStart)
		if err != nil {
			return ResultSkipped, err
		}
		if exists {
			return ResultSkipped, nil
		}
	}

	stats, err := g.store.AggregateDay(ctx, dayStart)
	if err != nil {
		return ResultSkipped, err
	}
	if stats.PostCount == 0 {
		g.logger.WithField("day", dayStart.Format("2006-01-02")).Debug("No posts for daily summary")
		return ResultSkipped, nil
	}

	posts, err := g.store.TopPostsByEngagement(ctx, dayStart, dayStart.Add(24*time.Hour), summaryPostSample)
	if err != nil {
		return ResultSkipped, err
	}

	response, err := llm.CompleteText(ctx, g.provider, summaryMessages(dayStart, stats, posts))
	if err != nil {
		g.logger.WithError(err).WithField("day", dayStart.Format("2006-01-02")).Warn("Daily summary model call failed")
		return ResultSkipped, nil
	}

	summary := strings.TrimSpace(StripCodeFences(response))
	if summary == "" {
		g.logger.WithField("day", dayStart.Format("2006-01-02")).Warn("Empty daily summary response")
		return ResultSkipped, nil
	}

	record := &models.DailySummary{
		InstanceID: g.store.InstanceID,
		Day:        dayStart,
		Summary:    summary,
		Model:      g.model,
		InputHash:  dayInputHash(stats, posts),
		CreatedAt:  g.now(),
	}
	if err := g.store.WriteDailySummary(ctx, record); err != nil {
		return ResultSkipped, err
	}

	g.logger.WithField("day", dayStart.Format("2006-01-02")).Info("Daily summary written")
	return ResultWritten, nil
}

func summaryMessages(day time.Time, stats *store.DayStats, posts []models.Post) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Date: %s\n", day.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Posts: %d, authors: %d, total engagement: %d\n",
		stats.PostCount, stats.AuthorCount, stats.TotalEngagement)
	if stats.AvgSentiment != nil {
		fmt.Fprintf(&sb, "Average sentiment: %.3f\n", *stats.AvgSentiment)
	}
	if len(stats.TopHashtags) > 0 {
		fmt.Fprintf(&sb, "Top hashtags: %s\n", strings.Join(stats.TopHashtags, ", "))
	}
	sb.WriteString("\nTop posts:\n")
	for _, post := range posts {
		sb.WriteString("- ")
		sb.WriteString(truncate(post.ContentText, 280))
		sb.WriteString("\n")
	}

	return []llm.Message{
		{
			Role: "system",
			Content: "You write a short daily community digest for a social " +
				"media instance. Two or three paragraphs, plain prose, " +
				"grounded only in the data provided.",
		},
		{
			Role:    "user",
			Content: sb.String(),
		},
	}
}

func dayInputHash(stats *store.DayStats, posts []models.Post) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:%d:%d;", stats.PostCount, stats.AuthorCount, stats.TotalEngagement)
	for _, post := range posts {
		fmt.Fprintf(&sb, "%s:%d;", post.ID, post.EngagementScore)
	}
	return ContentHash(sb.String())
}
