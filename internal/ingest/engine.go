// Package ingest applies normalized stream events to the store. One event
// is one transaction; a failure anywhere rolls the whole event back.
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cbattlegear/forkalytics/internal/event"
	"github.com/cbattlegear/forkalytics/internal/models"
	"github.com/cbattlegear/forkalytics/internal/normalize"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/database"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

// Outcome describes what an apply call did to the store.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeEdited  Outcome = "edited"
	OutcomeDeleted Outcome = "deleted"
	OutcomeSkipped Outcome = "skipped"
)

// Metrics holds the Prometheus instruments for the ingest pipeline.
type Metrics struct {
	EventsTotal   *prometheus.CounterVec
	ApplyDuration *prometheus.HistogramVec
}

// Engine is the upsert engine. It is safe to call with duplicate or
// out-of-order events; every mutation runs inside one transaction.
type Engine struct {
	db      *sql.DB
	store   *store.Store
	logger  logging.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewEngine creates an upsert engine over the given store. metrics may be nil.
func NewEngine(db *sql.DB, st *store.Store, logger logging.Logger, metrics *Metrics) *Engine {
	return &Engine{
		db:      db,
		store:   st,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// InstanceID returns the instance scope of the underlying store.
func (e *Engine) InstanceID() string {
	return e.store.InstanceID
}

// HandleEnvelope runs the full pipeline for one raw event: append to the
// raw log, decode, normalize, apply. Malformed payloads are logged and
// swallowed; store failures surface to the caller so the transport can
// decide whether to retry.
func (e *Engine) HandleEnvelope(ctx context.Context, env event.Envelope) error {
	start := e.now()

	eventID, err := e.store.AppendStreamEvent(ctx, string(env.Kind), env.Payload, start)
	if err != nil {
		return err
	}

	outcome, err := e.dispatch(ctx, env)
	if err != nil {
		if logErr := e.store.SetStreamEventError(ctx, eventID, err.Error()); logErr != nil {
			e.logger.WithError(logErr).Warn("Failed to record stream event error")
		}
		e.count(env.Kind, "error")
		return err
	}

	e.count(env.Kind, string(outcome))
	if e.metrics != nil {
		e.metrics.ApplyDuration.WithLabelValues(string(env.Kind)).Observe(time.Since(start).Seconds())
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, env event.Envelope) (Outcome, error) {
	switch env.Kind {
	case event.KindDelete:
		postID, err := env.DecodePostID()
		if err != nil {
			e.logger.WithError(err).Warn("Malformed delete payload")
			return OutcomeSkipped, nil
		}
		return e.ApplyDeletion(ctx, postID)

	case event.KindUpsert, event.KindEdit:
		src, err := env.DecodePost()
		if err != nil {
			e.logger.WithError(err).Warn("Malformed post payload")
			return OutcomeSkipped, nil
		}
		result := normalize.Normalize(e.store.InstanceID, src, e.now())
		if result == nil {
			e.logger.WithField("kind", env.Kind).Warn("Post payload did not normalize")
			return OutcomeSkipped, nil
		}
		return e.Apply(ctx, result)

	default:
		e.logger.WithField("kind", env.Kind).Warn("Unknown event kind")
		return OutcomeSkipped, nil
	}
}

// Apply upserts one normalized event. Idempotent: replaying the same input
// changes nothing except the metric snapshot time series, which is appended
// on every call by design.
func (e *Engine) Apply(ctx context.Context, result *normalize.Result) (Outcome, error) {
	outcome := OutcomeSkipped

	err := database.WithTransaction(ctx, e.db, func(tx *sql.Tx) error {
		now := e.now()

		if err := e.store.UpsertAccount(ctx, tx, result.Account); err != nil {
			return err
		}

		existing, err := e.store.GetPost(ctx, tx, result.Post.ID)
		if err != nil {
			return err
		}

		edited := false
		switch {
		case existing == nil:
			if err := e.store.InsertPost(ctx, tx, result.Post); err != nil {
				return err
			}
			outcome = OutcomeCreated
			edited = true // new post needs its associations written

		default:
			if editedAtChanged(existing.EditedAt, result.Post.EditedAt) {
				// Snapshot the superseded content before overwriting it.
				count, err := e.store.CountPostVersions(ctx, tx, existing.ID)
				if err != nil {
					return err
				}
				version := &models.PostVersion{
					PostID:      existing.ID,
					InstanceID:  existing.InstanceID,
					VersionSeq:  count + 1,
					Content:     existing.Content,
					ContentText: existing.ContentText,
					SpoilerText: existing.SpoilerText,
					EditedAt:    existing.EditedAt,
					CapturedAt:  now,
				}
				if err := e.store.InsertPostVersion(ctx, tx, version); err != nil {
					return err
				}
				edited = true
				outcome = OutcomeEdited
			} else {
				outcome = OutcomeUpdated
			}

			if err := e.store.UpdatePost(ctx, tx, result.Post); err != nil {
				return err
			}
		}

		snapshot := &models.PostMetricSnapshot{
			PostID:          result.Post.ID,
			InstanceID:      result.Post.InstanceID,
			ReblogsCount:    result.Post.ReblogsCount,
			FavouritesCount: result.Post.FavouritesCount,
			RepliesCount:    result.Post.RepliesCount,
			EngagementScore: result.Post.EngagementScore,
			CapturedAt:      now,
		}
		if err := e.store.InsertMetricSnapshot(ctx, tx, snapshot); err != nil {
			return err
		}

		if edited {
			if err := e.replaceAssociations(ctx, tx, result, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return OutcomeSkipped, err
	}
	return outcome, nil
}

// ApplyDeletion sets the soft-delete tombstone. A delete for an unknown or
// already-deleted post is a logged no-op.
func (e *Engine) ApplyDeletion(ctx context.Context, postID string) (Outcome, error) {
	outcome := OutcomeSkipped

	err := database.WithTransaction(ctx, e.db, func(tx *sql.Tx) error {
		deleted, err := e.store.SoftDeletePost(ctx, tx, postID, e.now())
		if err != nil {
			return err
		}
		if !deleted {
			e.logger.WithField("post_id", postID).Debug("Deletion for unknown or already-deleted post")
			return nil
		}
		outcome = OutcomeDeleted
		return nil
	})
	if err != nil {
		return OutcomeSkipped, err
	}
	return outcome, nil
}

func (e *Engine) replaceAssociations(ctx context.Context, tx *sql.Tx, result *normalize.Result, now time.Time) error {
	if err := e.store.DeletePostHashtags(ctx, tx, result.Post.ID); err != nil {
		return err
	}
	if err := e.store.DeletePostMentions(ctx, tx, result.Post.ID); err != nil {
		return err
	}
	for _, name := range result.Hashtags {
		hashtagID, err := e.store.GetOrCreateHashtag(ctx, tx, name, now)
		if err != nil {
			return err
		}
		if err := e.store.InsertPostHashtag(ctx, tx, result.Post.ID, hashtagID); err != nil {
			return err
		}
	}
	for i := range result.Mentions {
		if err := e.store.InsertPostMention(ctx, tx, &result.Mentions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) count(kind event.Kind, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.EventsTotal.WithLabelValues(string(kind), outcome).Inc()
}

// editedAtChanged compares the stored and incoming edited_at values. Going
// from null to a timestamp counts as an edit; null to null does not.
func editedAtChanged(stored, incoming sql.NullTime) bool {
	if stored.Valid != incoming.Valid {
		return true
	}
	if !stored.Valid {
		return false
	}
	return !stored.Time.Equal(incoming.Time)
}

// RawEnvelope parses raw transport bytes into an envelope. Used by both the
// websocket streamer and the Kafka source.
func RawEnvelope(data []byte) (event.Envelope, error) {
	var env event.Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
