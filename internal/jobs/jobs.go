// Package jobs exposes every rollup and enrichment operation as an
// independently invocable, idempotent unit. The scheduler and the runjob
// CLI are thin callers into this surface.
package jobs

import (
	"context"
	"time"

	"github.com/cbattlegear/forkalytics/internal/enrich"
	"github.com/cbattlegear/forkalytics/internal/rollup"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

// Runner bundles the engines behind the job surface.
type Runner struct {
	Sentiment *enrich.SentimentAnalyzer
	Rollup    *rollup.Engine
	Topics    *enrich.TopicExtractor
	Summary   *enrich.SummaryGenerator

	logger logging.Logger
	now    func() time.Time
}

// NewRunner creates the job surface.
func NewRunner(sentiment *enrich.SentimentAnalyzer, ru *rollup.Engine, topics *enrich.TopicExtractor, summary *enrich.SummaryGenerator, logger logging.Logger) *Runner {
	return &Runner{
		Sentiment: sentiment,
		Rollup:    ru,
		Topics:    topics,
		Summary:   summary,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AnalyzeSentimentBatch scores one batch of pending posts.
func (r *Runner) AnalyzeSentimentBatch(ctx context.Context, batchSize int) error {
	_, err := r.Sentiment.AnalyzeBatch(ctx, batchSize)
	return err
}

// GenerateHourlyStats materializes the hourly and per-hashtag aggregates
// for one hour. A nil target selects the previous (closed) hour.
func (r *Runner) GenerateHourlyStats(ctx context.Context, target *time.Time, force bool) error {
	hour := r.defaultHour(target)

	if _, err := r.Rollup.ComputeHourlyStat(ctx, hour, force); err != nil {
		return err
	}
	_, err := r.Rollup.ComputeHashtagHourlyStats(ctx, hour, force)
	return err
}

// GenerateHourlyStatsRolling force-recomputes the trailing window of hours.
func (r *Runner) GenerateHourlyStatsRolling(ctx context.Context, windowHours int) error {
	return r.Rollup.RecomputeRolling(ctx, windowHours)
}

// ExtractHourlyTopics derives topic clusters for one hour. A nil target
// selects the previous hour.
func (r *Runner) ExtractHourlyTopics(ctx context.Context, target *time.Time, force bool) error {
	_, err := r.Topics.ExtractHourlyTopics(ctx, r.defaultHour(target), force)
	return err
}

// GenerateDailySummary produces the narrative for one UTC day. A nil target
// selects yesterday.
func (r *Runner) GenerateDailySummary(ctx context.Context, target *time.Time, force bool) error {
	var day time.Time
	if target != nil {
		day = target.UTC()
	} else {
		day = r.now().AddDate(0, 0, -1)
	}
	_, err := r.Summary.GenerateDailySummary(ctx, day, force)
	return err
}

// ReprocessOptions selects which derived artifacts a historical reprocess
// regenerates.
type ReprocessOptions struct {
	Stats     bool
	Topics    bool
	Summaries bool
}

// Reprocess re-runs the per-hour and per-day jobs across [start, end),
// always with force. Per-bucket failures are logged and the sweep
// continues; the first store-level error would repeat for every bucket.
func (r *Runner) Reprocess(ctx context.Context, start, end time.Time, opts ReprocessOptions) error {
	start = start.UTC().Truncate(time.Hour)
	end = end.UTC()

	if opts.Stats || opts.Topics {
		for hour := start; hour.Before(end); hour = hour.Add(time.Hour) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if opts.Stats {
				if err := r.GenerateHourlyStats(ctx, &hour, true); err != nil {
					r.logger.WithError(err).WithField("hour", hour).Error("Reprocess: hourly stats failed")
				}
			}
			if opts.Topics {
				if err := r.ExtractHourlyTopics(ctx, &hour, true); err != nil {
					r.logger.WithError(err).WithField("hour", hour).Error("Reprocess: topic extraction failed")
				}
			}
		}
	}

	if opts.Summaries {
		dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		for day := dayStart; day.Before(end); day = day.AddDate(0, 0, 1) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.GenerateDailySummary(ctx, &day, true); err != nil {
				r.logger.WithError(err).WithField("day", day.Format("2006-01-02")).Error("Reprocess: daily summary failed")
			}
		}
	}

	r.logger.WithFields(logging.Fields{
		"start": start,
		"end":   end,
	}).Info("Reprocess complete")
	return nil
}

func (r *Runner) defaultHour(target *time.Time) time.Time {
	if target != nil {
		return target.UTC().Truncate(time.Hour)
	}
	return r.now().Truncate(time.Hour).Add(-time.Hour)
}
