package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cbattlegear/forkalytics/internal/models"
)

// GetPost fetches the current-state row for a post, or nil if the post has
// never been sighted.
func (s *Store) GetPost(ctx context.Context, q Querier, postID string) (*models.Post, error) {
	const query = `
		SELECT id, instance_id, account_id, uri, url, content, content_text,
		       spoiler_text, language, visibility, sensitive,
		       reblog_of_id, in_reply_to_id, in_reply_to_account_id,
		       reblogs_count, favourites_count, replies_count, engagement_score,
		       has_media, media_count, sentiment_analyzed,
		       created_at, edited_at, deleted_at, first_seen_at, last_seen_at
		FROM posts
		WHERE id = $1 AND instance_id = $2`

	var post models.Post
	err := q.QueryRowContext(ctx, query, postID, s.InstanceID).Scan(
		&post.ID, &post.InstanceID, &post.AccountID, &post.URI, &post.URL,
		&post.Content, &post.ContentText, &post.SpoilerText, &post.Language,
		&post.Visibility, &post.Sensitive,
		&post.ReblogOfID, &post.InReplyToID, &post.InReplyToAccountID,
		&post.ReblogsCount, &post.FavouritesCount, &post.RepliesCount, &post.EngagementScore,
		&post.HasMedia, &post.MediaCount, &post.SentimentAnalyzed,
		&post.CreatedAt, &post.EditedAt, &post.DeletedAt, &post.FirstSeenAt, &post.LastSeenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}
	return &post, nil
}

// InsertPost creates a new current-state row for a first-sighted post.
func (s *Store) InsertPost(ctx context.Context, q Querier, post *models.Post) error {
	const query = `
		INSERT INTO posts (
			id, instance_id, account_id, uri, url, content, content_text,
			spoiler_text, language, visibility, sensitive,
			reblog_of_id, in_reply_to_id, in_reply_to_account_id,
			reblogs_count, favourites_count, replies_count, engagement_score,
			has_media, media_count, sentiment_analyzed,
			created_at, edited_at, first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		          $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := q.ExecContext(ctx, query,
		post.ID, s.InstanceID, post.AccountID, post.URI, post.URL,
		post.Content, post.ContentText, post.SpoilerText, post.Language,
		post.Visibility, post.Sensitive,
		post.ReblogOfID, post.InReplyToID, post.InReplyToAccountID,
		post.ReblogsCount, post.FavouritesCount, post.RepliesCount, post.EngagementScore,
		post.HasMedia, post.MediaCount, post.SentimentAnalyzed,
		post.CreatedAt, post.EditedAt, post.FirstSeenAt, post.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", post.ID, err)
	}
	return nil
}

// UpdatePost overwrites the mutable current-state fields of an existing
// post. Soft-delete tombstones and first_seen_at are untouched.
func (s *Store) UpdatePost(ctx context.Context, q Querier, post *models.Post) error {
	const query = `
		UPDATE posts SET
			content = $3, content_text = $4, spoiler_text = $5, language = $6,
			visibility = $7, sensitive = $8,
			reblogs_count = $9, favourites_count = $10, replies_count = $11,
			engagement_score = $12, has_media = $13, media_count = $14,
			edited_at = $15, last_seen_at = $16
		WHERE id = $1 AND instance_id = $2`

	_, err := q.ExecContext(ctx, query,
		post.ID, s.InstanceID,
		post.Content, post.ContentText, post.SpoilerText, post.Language,
		post.Visibility, post.Sensitive,
		post.ReblogsCount, post.FavouritesCount, post.RepliesCount,
		post.EngagementScore, post.HasMedia, post.MediaCount,
		post.EditedAt, post.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("update post %s: %w", post.ID, err)
	}
	return nil
}

// SoftDeletePost sets the tombstone if it is not already set. Returns true
// when a row was tombstoned by this call.
func (s *Store) SoftDeletePost(ctx context.Context, q Querier, postID string, now time.Time) (bool, error) {
	const query = `
		UPDATE posts SET deleted_at = $3
		WHERE id = $1 AND instance_id = $2 AND deleted_at IS NULL`

	result, err := q.ExecContext(ctx, query, postID, s.InstanceID, now)
	if err != nil {
		return false, fmt.Errorf("soft delete post %s: %w", postID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete post %s: %w", postID, err)
	}
	return affected > 0, nil
}

// CountPostVersions returns how many history rows exist for a post. The next
// version_seq is this count plus one.
func (s *Store) CountPostVersions(ctx context.Context, q Querier, postID string) (int, error) {
	const query = `SELECT COUNT(*) FROM post_versions WHERE post_id = $1 AND instance_id = $2`

	var count int
	if err := q.QueryRowContext(ctx, query, postID, s.InstanceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count versions for post %s: %w", postID, err)
	}
	return count, nil
}

// InsertPostVersion appends one edit-history row.
func (s *Store) InsertPostVersion(ctx context.Context, q Querier, version *models.PostVersion) error {
	const query = `
		INSERT INTO post_versions (
			post_id, instance_id, version_seq, content, content_text,
			spoiler_text, edited_at, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := q.ExecContext(ctx, query,
		version.PostID, s.InstanceID, version.VersionSeq,
		version.Content, version.ContentText, version.SpoilerText,
		version.EditedAt, version.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("insert version %d for post %s: %w", version.VersionSeq, version.PostID, err)
	}
	return nil
}

// InsertMetricSnapshot appends one engagement time-series row.
func (s *Store) InsertMetricSnapshot(ctx context.Context, q Querier, snapshot *models.PostMetricSnapshot) error {
	const query = `
		INSERT INTO post_metric_snapshots (
			post_id, instance_id, reblogs_count, favourites_count,
			replies_count, engagement_score, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.ExecContext(ctx, query,
		snapshot.PostID, s.InstanceID,
		snapshot.ReblogsCount, snapshot.FavouritesCount, snapshot.RepliesCount,
		snapshot.EngagementScore, snapshot.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("insert metric snapshot for post %s: %w", snapshot.PostID, err)
	}
	return nil
}
