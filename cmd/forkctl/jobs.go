package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbattlegear/forkalytics/internal/enrich"
	"github.com/cbattlegear/forkalytics/internal/jobs"
)

func newSentimentCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "sentiment",
		Short: "Score one batch of unanalyzed posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.runner.AnalyzeSentimentBatch(cmd.Context(), batchSize)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", enrich.DefaultSentimentBatchSize, "posts per batch")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var hourFlag string
	var force bool
	var window int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Materialize hourly and per-hashtag aggregates",
		Long:  "Without --hour, recomputes the trailing window of hours. With --hour, computes that single hour.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if hourFlag == "" {
				return a.runner.GenerateHourlyStatsRolling(cmd.Context(), window)
			}
			hour, err := parseHour(hourFlag)
			if err != nil {
				return err
			}
			return a.runner.GenerateHourlyStats(cmd.Context(), &hour, force)
		},
	}
	cmd.Flags().StringVar(&hourFlag, "hour", "", "hour to compute (RFC3339, e.g. 2026-08-24T13:00:00Z)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing rollup")
	cmd.Flags().IntVar(&window, "window", 48, "rolling window in hours when no --hour is given")
	return cmd
}

func newTopicsCmd() *cobra.Command {
	var hourFlag string
	var force bool
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Extract topic clusters for one hour",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var target *time.Time
			if hourFlag != "" {
				hour, err := parseHour(hourFlag)
				if err != nil {
					return err
				}
				target = &hour
			}
			return a.runner.ExtractHourlyTopics(cmd.Context(), target, force)
		},
	}
	cmd.Flags().StringVar(&hourFlag, "hour", "", "hour to extract (RFC3339, default: previous hour)")
	cmd.Flags().BoolVar(&force, "force", false, "re-extract even if the hour already has topics")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var dateFlag string
	var force bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Generate the daily narrative summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var target *time.Time
			if dateFlag != "" {
				day, err := parseDay(dateFlag)
				if err != nil {
					return err
				}
				target = &day
			}
			return a.runner.GenerateDailySummary(cmd.Context(), target, force)
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "day to summarize (YYYY-MM-DD, default: yesterday)")
	cmd.Flags().BoolVar(&force, "force", false, "regenerate an existing summary")
	return cmd
}

func newReprocessCmd() *cobra.Command {
	var startFlag, endFlag string
	var stats, topics, summaries bool
	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Regenerate derived data across a historical range",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(startFlag, endFlag)
			if err != nil {
				return err
			}
			if !stats && !topics && !summaries {
				stats, topics, summaries = true, true, true
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.runner.Reprocess(cmd.Context(), start, end, jobs.ReprocessOptions{
				Stats:     stats,
				Topics:    topics,
				Summaries: summaries,
			})
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "range start (YYYY-MM-DD or RFC3339), inclusive")
	cmd.Flags().StringVar(&endFlag, "end", "", "range end, exclusive (default: now)")
	cmd.Flags().BoolVar(&stats, "stats", false, "regenerate hourly and hashtag stats")
	cmd.Flags().BoolVar(&topics, "topics", false, "regenerate hourly topics")
	cmd.Flags().BoolVar(&summaries, "summaries", false, "regenerate daily summaries")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func parseHour(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour %q: %w", value, err)
	}
	return t.UTC().Truncate(time.Hour), nil
}

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t.UTC(), nil
}

// parseRange accepts dates or full timestamps; an empty end means now.
func parseRange(startFlag, endFlag string) (time.Time, time.Time, error) {
	start, err := parseDayOrTime(startFlag)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end := time.Now().UTC()
	if endFlag != "" {
		end, err = parseDayOrTime(endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start, end)
	}
	return start, end, nil
}

func parseDayOrTime(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD or RFC3339)", value)
	}
	return t.UTC(), nil
}
