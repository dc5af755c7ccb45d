// Package poller refreshes engagement counters for recent posts. Favourites
// and reblogs keep accruing long after a post streams in; the stream never
// re-delivers them, so the poller re-reads each post from the REST API.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/cbattlegear/forkalytics/internal/ingest"
	"github.com/cbattlegear/forkalytics/internal/mastodon"
	"github.com/cbattlegear/forkalytics/internal/normalize"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

const (
	// DefaultWindow is how far back a refresh sweep reaches.
	DefaultWindow = 48 * time.Hour

	// sweepLimit caps one sweep's API calls.
	sweepLimit = 200
)

// RecentLister supplies the ids a sweep should refresh, newest first.
type RecentLister interface {
	RecentPostIDs(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// Poller re-fetches every post created inside the refresh window and
// re-applies it through the upsert engine. A 404 from the API becomes a
// soft deletion; the post was removed upstream.
type Poller struct {
	client *mastodon.Client
	engine *ingest.Engine
	store  RecentLister
	window time.Duration
	logger logging.Logger
	now    func() time.Time
}

// New creates a poller. window <= 0 selects the default 48 hours.
func New(client *mastodon.Client, engine *ingest.Engine, st RecentLister, window time.Duration, logger logging.Logger) *Poller {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Poller{
		client: client,
		engine: engine,
		store:  st,
		window: window,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Poll runs one refresh sweep and returns how many posts were re-applied.
// Per-post failures are logged and the sweep continues; one flaky fetch
// must not starve the rest of the window.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.window)

	ids, err := p.store.RecentPostIDs(ctx, cutoff, sweepLimit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := p.refreshOne(ctx, id); err != nil {
			p.logger.WithError(err).WithField("post_id", id).Warn("Engagement refresh failed")
			continue
		}
		applied++
	}

	p.logger.WithFields(logging.Fields{
		"refreshed": applied,
		"selected":  len(ids),
		"window":    p.window,
	}).Info("Engagement refresh sweep complete")
	return applied, nil
}

func (p *Poller) refreshOne(ctx context.Context, id string) error {
	src, err := p.client.GetStatus(ctx, id)
	if errors.Is(err, mastodon.ErrNotFound) {
		// Deleted upstream since we stored it.
		_, err := p.engine.ApplyDeletion(ctx, id)
		return err
	}
	if err != nil {
		return err
	}
	if src.Reblog != nil {
		// Engagement belongs to the original post.
		return nil
	}

	result := normalize.Normalize(p.engine.InstanceID(), src, p.now())
	if result == nil {
		p.logger.WithField("post_id", id).Warn("Refreshed post did not normalize")
		return nil
	}
	_, err = p.engine.Apply(ctx, result)
	return err
}
