// Package backfill loads historical posts through REST pagination, for
// bootstrapping a fresh database or filling stream outages.
package backfill

import (
	"context"
	"time"

	"github.com/cbattlegear/forkalytics/internal/ingest"
	"github.com/cbattlegear/forkalytics/internal/mastodon"
	"github.com/cbattlegear/forkalytics/internal/normalize"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

const pageLimit = 40

// Backfiller pages the public timeline from newest to oldest and applies
// every post in the requested range through the upsert engine.
type Backfiller struct {
	client *mastodon.Client
	engine *ingest.Engine
	logger logging.Logger
	now    func() time.Time
}

// New creates a backfiller.
func New(client *mastodon.Client, engine *ingest.Engine, logger logging.Logger) *Backfiller {
	return &Backfiller{
		client: client,
		engine: engine,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run walks the timeline until it passes start, applying posts created in
// [start, end). Returns how many posts were applied. Pagination uses the
// API's max_id cursor from the Link header, falling back to the last post's
// id when the header is absent.
func (b *Backfiller) Run(ctx context.Context, start, end time.Time) (int, error) {
	applied := 0
	maxID := ""

	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		posts, next, err := b.client.PublicTimeline(ctx, mastodon.TimelineOptions{
			Local: true,
			Limit: pageLimit,
			MaxID: maxID,
		})
		if err != nil {
			return applied, err
		}
		if len(posts) == 0 {
			break
		}

		passedStart := false
		for i := range posts {
			src := &posts[i]
			created := src.CreatedAt.UTC()
			if created.Before(start) {
				passedStart = true
				break
			}
			if !created.Before(end) {
				continue
			}

			result := normalize.Normalize(b.engine.InstanceID(), src, b.now())
			if result == nil {
				b.logger.WithField("post_id", src.ID).Warn("Backfill post did not normalize")
				continue
			}
			if _, err := b.engine.Apply(ctx, result); err != nil {
				return applied, err
			}
			applied++
		}

		if passedStart {
			break
		}
		if next == "" {
			// Some servers omit the Link header; the last post's id is the
			// max_id cursor for the next older page.
			next = posts[len(posts)-1].ID
		}
		maxID = next
	}

	b.logger.WithFields(logging.Fields{
		"applied": applied,
		"start":   start,
		"end":     end,
	}).Info("Backfill complete")
	return applied, nil
}
