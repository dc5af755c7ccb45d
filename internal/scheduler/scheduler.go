// Package scheduler drives the periodic jobs. Cadence lives here; the jobs
// themselves are idempotent and callable from anywhere.
package scheduler

import (
	"context"
	"time"

	"github.com/cbattlegear/forkalytics/internal/jobs"
	"github.com/cbattlegear/forkalytics/internal/poller"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

// Config sets the cadence of each recurring job.
type Config struct {
	// SentimentInterval is how often a sentiment batch runs. Default 5m.
	SentimentInterval time.Duration

	// SentimentBatchSize caps each sweep. Zero uses the engine default.
	SentimentBatchSize int

	// RollingWindowHours is the force-recompute window for hourly stats.
	RollingWindowHours int

	// PollInterval is how often the engagement refresh sweep runs. Zero
	// disables polling (e.g. when no REST client is configured).
	PollInterval time.Duration

	// SummaryHourUTC is the UTC hour at which yesterday's summary runs.
	SummaryHourUTC int
}

// DefaultConfig mirrors the production cadence: sentiment every five
// minutes, stats just past the hour, summary at 01:00 UTC.
func DefaultConfig() Config {
	return Config{
		SentimentInterval:  5 * time.Minute,
		RollingWindowHours: 48,
		SummaryHourUTC:     1,
	}
}

// Scheduler runs the recurring jobs until stopped.
type Scheduler struct {
	cfg    Config
	runner *jobs.Runner
	poller *poller.Poller
	logger logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. p may be nil when engagement polling is
// disabled.
func New(cfg Config, runner *jobs.Runner, p *poller.Poller, logger logging.Logger) *Scheduler {
	if cfg.SentimentInterval <= 0 {
		cfg.SentimentInterval = 5 * time.Minute
	}
	if cfg.RollingWindowHours <= 0 {
		cfg.RollingWindowHours = 48
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		poller: p,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the job loops.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.logger.WithFields(logging.Fields{
		"sentiment_interval": s.cfg.SentimentInterval,
		"rolling_window":     s.cfg.RollingWindowHours,
	}).Info("Starting job scheduler")

	go s.runLoops(ctx)
}

// Stop cancels the loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping job scheduler")
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Scheduler) runLoops(ctx context.Context) {
	defer close(s.done)

	sentiment := time.NewTicker(s.cfg.SentimentInterval)
	defer sentiment.Stop()

	// Hourly work fires shortly after each hour closes so the closed hour
	// is complete when stats and topics run.
	hourly := time.NewTimer(untilNext(time.Now().UTC(), 5*time.Minute))
	defer hourly.Stop()

	daily := time.NewTimer(untilNextDaily(time.Now().UTC(), s.cfg.SummaryHourUTC))
	defer daily.Stop()

	var poll <-chan time.Time
	if s.poller != nil && s.cfg.PollInterval > 0 {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-sentiment.C:
			s.run(ctx, "sentiment", 10*time.Minute, func(ctx context.Context) error {
				return s.runner.AnalyzeSentimentBatch(ctx, s.cfg.SentimentBatchSize)
			})

		case <-hourly.C:
			hourly.Reset(untilNext(time.Now().UTC(), 5*time.Minute))
			s.run(ctx, "hourly_stats", 30*time.Minute, func(ctx context.Context) error {
				return s.runner.GenerateHourlyStatsRolling(ctx, s.cfg.RollingWindowHours)
			})
			s.run(ctx, "hourly_topics", 10*time.Minute, func(ctx context.Context) error {
				return s.runner.ExtractHourlyTopics(ctx, nil, false)
			})

		case <-daily.C:
			daily.Reset(untilNextDaily(time.Now().UTC(), s.cfg.SummaryHourUTC))
			s.run(ctx, "daily_summary", 10*time.Minute, func(ctx context.Context) error {
				return s.runner.GenerateDailySummary(ctx, nil, false)
			})

		case <-poll:
			s.run(ctx, "engagement_poll", 30*time.Minute, func(ctx context.Context) error {
				_, err := s.poller.Poll(ctx)
				return err
			})
		}
	}
}

// run executes one job with a bounded timeout. Failures are logged and the
// job waits for its next tick; nothing retries in a hot loop.
func (s *Scheduler) run(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) {
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(jobCtx); err != nil {
		s.logger.WithError(err).WithField("job", name).Error("Scheduled job failed")
		return
	}
	s.logger.WithField("job", name).Debug("Scheduled job finished")
}

// untilNext returns the duration until offset past the next hour boundary.
func untilNext(now time.Time, offset time.Duration) time.Duration {
	next := now.Truncate(time.Hour).Add(time.Hour).Add(offset)
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next.Sub(now)
}

// untilNextDaily returns the duration until the next occurrence of the
// given UTC hour.
func untilNextDaily(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
