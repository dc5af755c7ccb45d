// Package rollup materializes the hourly aggregate tables. Everything here
// is recomputable from the post tables at any time; the rollup tables are
// views, not sources of truth.
package rollup

import (
	"context"
	"time"

	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

// Result reports whether a rollup invocation wrote anything.
type Result string

const (
	ResultWritten Result = "written"
	ResultSkipped Result = "skipped"
)

// DefaultRollingWindowHours is how far back the scheduled recompute reaches.
// Engagement counters keep accruing long after an hour closes, so recent
// hours are recomputed on every tick.
const DefaultRollingWindowHours = 48

// Engine computes time-bucketed aggregates by re-querying the store. It
// holds no state of its own and is safe to run concurrently with ingestion.
type Engine struct {
	store  *store.Store
	logger logging.Logger
	now    func() time.Time
}

// NewEngine creates a rollup engine over the given store.
func NewEngine(st *store.Store, logger logging.Logger) *Engine {
	return &Engine{
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ComputeHourlyStat materializes the aggregate row for one hour. Without
// force an existing row wins; with force it is replaced. An hour with zero
// qualifying posts writes no row, and under force any stale row is removed.
func (e *Engine) ComputeHourlyStat(ctx context.Context, hourStart time.Time, force bool) (Result, error) {
	hourStart = hourStart.UTC().Truncate(time.Hour)

	stat, err := e.store.AggregateHour(ctx, hourStart)
	if err != nil {
		return ResultSkipped, err
	}

	if stat.PostCount == 0 {
		if force {
			if err := e.store.DeleteHourlyStat(ctx, hourStart); err != nil {
				return ResultSkipped, err
			}
		}
		e.logger.WithField("hour", hourStart).Debug("No posts in hour, nothing to roll up")
		return ResultSkipped, nil
	}

	stat.ComputedAt = e.now()
	written, err := e.store.WriteHourlyStat(ctx, stat, force)
	if err != nil {
		return ResultSkipped, err
	}
	if !written {
		return ResultSkipped, nil
	}

	e.logger.WithFields(logging.Fields{
		"hour":       hourStart,
		"post_count": stat.PostCount,
		"force":      force,
	}).Info("Hourly stat written")
	return ResultWritten, nil
}

// ComputeHashtagHourlyStats materializes the per-hashtag rows for one hour
// and returns how many rows were written. Under force, stale rows for
// hashtags that no longer qualify are cleared first.
func (e *Engine) ComputeHashtagHourlyStats(ctx context.Context, hourStart time.Time, force bool) (int, error) {
	hourStart = hourStart.UTC().Truncate(time.Hour)

	stats, err := e.store.AggregateHashtagHour(ctx, hourStart)
	if err != nil {
		return 0, err
	}

	if force {
		if err := e.store.DeleteHashtagHourlyStats(ctx, hourStart); err != nil {
			return 0, err
		}
	}

	written := 0
	computedAt := e.now()
	for i := range stats {
		stats[i].ComputedAt = computedAt
		ok, err := e.store.WriteHashtagHourlyStat(ctx, &stats[i], force)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}

	if written > 0 {
		e.logger.WithFields(logging.Fields{
			"hour":     hourStart,
			"hashtags": written,
		}).Info("Hashtag hourly stats written")
	}
	return written, nil
}

// RecomputeRolling force-recomputes the trailing window of hours, newest
// first. Per-hour failures are logged and do not stop the sweep.
func (e *Engine) RecomputeRolling(ctx context.Context, windowHours int) error {
	if windowHours <= 0 {
		windowHours = DefaultRollingWindowHours
	}

	currentHour := e.now().Truncate(time.Hour)
	for i := 0; i < windowHours; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		hour := currentHour.Add(-time.Duration(i) * time.Hour)

		if _, err := e.ComputeHourlyStat(ctx, hour, true); err != nil {
			e.logger.WithError(err).WithField("hour", hour).Error("Rolling hourly stat recompute failed")
			continue
		}
		if _, err := e.ComputeHashtagHourlyStats(ctx, hour, true); err != nil {
			e.logger.WithError(err).WithField("hour", hour).Error("Rolling hashtag stat recompute failed")
		}
	}
	return nil
}
